package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tourbook/internal/models"
	"tourbook/internal/repository"
	"tourbook/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingSweeper struct {
	calls   atomic.Int32
	release chan struct{}
}

func (s *blockingSweeper) ExpireHolds(context.Context) (int, error) {
	s.calls.Add(1)
	<-s.release
	return 3, nil
}

type fakeLocker struct {
	ok       bool
	err      error
	released atomic.Int32
	ttl      time.Duration
}

func (l *fakeLocker) TryLock(_ context.Context, _ string, ttl time.Duration) (func(), bool, error) {
	l.ttl = ttl
	return func() { l.released.Add(1) }, l.ok, l.err
}

func TestRunOnce_CoalescesConcurrentRuns(t *testing.T) {
	sweeper := &blockingSweeper{release: make(chan struct{})}
	job := NewHoldExpirationJob(sweeper, nil, time.Minute)

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := job.RunOnce(context.Background())
			assert.NoError(t, err)
			results[i] = n
		}(i)
	}

	require.Eventually(t, func() bool { return sweeper.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(sweeper.release)
	wg.Wait()

	assert.LessOrEqual(t, sweeper.calls.Load(), int32(5))
	for _, n := range results {
		assert.Equal(t, 3, n)
	}
}

func TestRunOnce_RespectsLease(t *testing.T) {
	sweeper := &blockingSweeper{release: make(chan struct{})}
	close(sweeper.release)

	held := &fakeLocker{ok: false}
	n, err := NewHoldExpirationJob(sweeper, held, time.Minute).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int32(0), sweeper.calls.Load())

	free := &fakeLocker{ok: true}
	n, err = NewHoldExpirationJob(sweeper, free, time.Minute).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int32(1), free.released.Load())
	assert.Equal(t, 5*time.Minute, free.ttl, "lease outlives a run longer than one interval")

	broken := &fakeLocker{err: errors.New("redis down")}
	_, err = NewHoldExpirationJob(sweeper, broken, time.Minute).RunOnce(context.Background())
	assert.Error(t, err)
}

func TestHoldExpirationJob_ReleasesSeats(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	now := time.Now().UTC()
	clock := func() time.Time { return now }
	svc := service.NewServices(service.Deps{Store: store}, service.Options{Now: clock})

	require.NoError(t, store.CreateTour(ctx, &models.Tour{ID: "t-1", Title: "Walk", StartDate: now.Add(48 * time.Hour), Capacity: 4}))
	expired := now.Add(-time.Second)
	require.NoError(t, store.WithTx(ctx, func(q repository.Queries) error {
		if _, err := q.DebitSeats(ctx, "t-1", 2); err != nil {
			return err
		}
		return q.CreateBooking(ctx, &models.Booking{
			ID: "b-1", TourID: "t-1", UserID: "u-1", TicketCount: 2,
			Status: models.StatusHolding, PaymentStatus: models.PaymentPending,
			PaymentMethod: models.PaymentTransfer, ExpiresAt: &expired,
		})
	}))

	job := NewHoldExpirationJob(svc.Expiry, nil, time.Hour)
	job.Start(ctx)
	require.Eventually(t, func() bool {
		tour, err := store.GetTour(ctx, "t-1")
		return err == nil && tour.BookedCount == 0
	}, time.Second, 5*time.Millisecond)
	job.Stop()

	b, err := store.GetBooking(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, b.Status)
}

func TestTourCompletionJob(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	now := time.Now().UTC()
	svc := service.NewServices(service.Deps{Store: store}, service.Options{Now: func() time.Time { return now }})
	require.NoError(t, store.CreateTour(ctx, &models.Tour{ID: "t-1", Title: "Past", StartDate: now.Add(-time.Hour), Capacity: 4}))

	n, err := NewTourCompletionJob(svc.Expiry, nil, time.Hour).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
