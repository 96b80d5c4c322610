package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"tourbook/internal/auth"
	apperrors "tourbook/internal/errors"
	"tourbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserve_CreatesHold(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 5)

	res, err := f.svc.Reservations.Reserve(userCtx("alice"), tour.ID, 2)
	require.NoError(t, err)
	assert.False(t, res.Resumed)
	assert.Equal(t, f.clock.Now().Add(15*time.Minute), res.ExpiresAt)
	assert.Equal(t, 2, f.booked(t, tour.ID))

	b, err := f.store.GetBooking(context.Background(), res.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusHolding, b.Status)
	assert.Equal(t, models.PaymentPending, b.PaymentStatus)
	assert.Equal(t, "Canal Cruise", b.TourTitle)
	assert.Equal(t, int64(2500), b.TourPrice)
	assert.Equal(t, "alice@example.com", b.UserEmail)
	assert.Equal(t, 1, f.events.count(models.EventBookingReserved))
}

func TestReserve_ResumesLiveHold(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 5)

	first, err := f.svc.Reservations.Reserve(userCtx("alice"), tour.ID, 2)
	require.NoError(t, err)

	again, err := f.svc.Reservations.Reserve(userCtx("alice"), tour.ID, 2)
	require.NoError(t, err)
	assert.True(t, again.Resumed)
	assert.Equal(t, first.BookingID, again.BookingID)
	assert.Equal(t, 2, f.booked(t, tour.ID))

	_, err = f.svc.Reservations.Reserve(userCtx("alice"), tour.ID, 3)
	assert.ErrorIs(t, err, apperrors.ErrHoldExists)

	hold, err := f.svc.Reservations.ActiveHold(userCtx("alice"), tour.ID)
	require.NoError(t, err)
	assert.Equal(t, first.BookingID, hold.ID)

	_, err = f.svc.Reservations.ActiveHold(userCtx("bob"), tour.ID)
	assert.ErrorIs(t, err, apperrors.ErrBookingNotFound)
}

func TestReserve_Rejections(t *testing.T) {
	f := newFixture(t, Options{})
	open := f.tour(t, 2)

	cancelled := f.tour(t, 2)
	cancelled.Cancelled = true
	require.NoError(t, f.store.UpdateTour(context.Background(), cancelled))

	past := f.tour(t, 2)
	past.StartDate = f.clock.Now().Add(-time.Hour)
	require.NoError(t, f.store.UpdateTour(context.Background(), past))

	tests := []struct {
		name    string
		ctx     context.Context
		tourID  string
		tickets int
		want    error
	}{
		{"no identity", context.Background(), open.ID, 1, apperrors.ErrUnauthorized},
		{"unsynced user", userCtx("mallory"), open.ID, 1, apperrors.ErrUnauthorized},
		{"zero tickets", userCtx("alice"), open.ID, 0, apperrors.ErrValidation},
		{"over capacity", userCtx("alice"), open.ID, 3, apperrors.ErrCapacityExceeded},
		{"unknown tour", userCtx("alice"), "nope", 1, apperrors.ErrTourNotFound},
		{"cancelled tour", userCtx("alice"), cancelled.ID, 1, apperrors.ErrTourCancelled},
		{"started tour", userCtx("alice"), past.ID, 1, apperrors.ErrTourEnded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Reservations.Reserve(tt.ctx, tt.tourID, tt.tickets)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 0, f.booked(t, open.ID))
}

func TestReserve_ConcurrentLastSeat(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 1)

	const buyers = 20
	for i := 0; i < buyers; i++ {
		id := fmt.Sprintf("buyer-%d", i)
		require.NoError(t, f.store.UpsertUser(context.Background(), &models.User{ID: id, Email: id + "@example.com"}))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		refused   int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := auth.ContextWithIdentity(context.Background(), auth.Identity{UserID: fmt.Sprintf("buyer-%d", i)})
			_, err := f.svc.Reservations.Reserve(ctx, tour.ID, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, apperrors.ErrCapacityExceeded):
				refused++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, buyers-1, refused)
	assert.Equal(t, 1, f.booked(t, tour.ID))
	f.assertLedger(t, tour.ID)
}

func TestConfirm_Transfer(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 5)
	res, err := f.svc.Reservations.Reserve(userCtx("alice"), tour.ID, 2)
	require.NoError(t, err)

	b, err := f.svc.Reservations.Confirm(userCtx("alice"), res.BookingID, transferRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, b.Status)
	assert.Equal(t, models.PaymentReviewing, b.PaymentStatus)
	assert.Nil(t, b.ExpiresAt)
	assert.Equal(t, "+49 30 1234567", *b.ContactNumber)
	assert.Equal(t, 2, f.booked(t, tour.ID))

	_, err = f.svc.Reservations.Confirm(userCtx("alice"), res.BookingID, transferRequest())
	assert.ErrorIs(t, err, apperrors.ErrAlreadyProcessed)
}

func TestConfirm_Validation(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 5)
	res, err := f.svc.Reservations.Reserve(userCtx("alice"), tour.ID, 1)
	require.NoError(t, err)

	noContact := transferRequest()
	noContact.ContactNumber = "  "
	noProof := transferRequest()
	noProof.ProofImageID = nil
	noRefund := transferRequest()
	noRefund.RefundDetails = nil
	badMethod := transferRequest()
	badMethod.PaymentMethod = "cash"

	for name, req := range map[string]models.ConfirmBookingRequest{
		"missing contact": noContact,
		"missing proof":   noProof,
		"missing refund":  noRefund,
		"unknown method":  badMethod,
	} {
		_, err := f.svc.Reservations.Confirm(userCtx("alice"), res.BookingID, req)
		assert.ErrorIs(t, err, apperrors.ErrValidation, name)
	}

	_, err = f.svc.Reservations.Confirm(userCtx("bob"), res.BookingID, transferRequest())
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.svc.Reservations.Confirm(userCtx("alice"), "missing", transferRequest())
	assert.ErrorIs(t, err, apperrors.ErrBookingNotFound)
}

func TestConfirm_CardWithoutProofStaysPending(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 5)
	res, err := f.svc.Reservations.Reserve(userCtx("alice"), tour.ID, 1)
	require.NoError(t, err)

	b, err := f.svc.Reservations.Confirm(userCtx("alice"), res.BookingID, models.ConfirmBookingRequest{
		PaymentMethod: models.PaymentCard,
		ContactNumber: "555",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, b.PaymentStatus)
}

func TestConfirm_AtDeadlineIsExpired(t *testing.T) {
	f := newFixture(t, Options{HoldDuration: 10 * time.Minute})
	tour := f.tour(t, 5)
	res, err := f.svc.Reservations.Reserve(userCtx("alice"), tour.ID, 1)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)

	_, err = f.svc.Reservations.Confirm(userCtx("alice"), res.BookingID, transferRequest())
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExpired)
	assert.Equal(t, 1, f.booked(t, tour.ID))

	incomplete := transferRequest()
	incomplete.ContactNumber = ""
	incomplete.ProofImageID = nil
	_, err = f.svc.Reservations.Confirm(userCtx("alice"), res.BookingID, incomplete)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExpired, "hold state is reported before missing fields")

	_, err = f.svc.Expiry.ExpireHolds(context.Background())
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.svc.Expiry.ExpireHolds(context.Background())
	require.NoError(t, err)
	_, err = f.svc.Reservations.Confirm(userCtx("alice"), res.BookingID, incomplete)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExpired)
}

func TestExpireHolds_StrictDeadline(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 5)
	res, err := f.svc.Reservations.Reserve(userCtx("alice"), tour.ID, 3)
	require.NoError(t, err)

	f.clock.Advance(15 * time.Minute)
	n, err := f.svc.Expiry.ExpireHolds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 3, f.booked(t, tour.ID))

	f.clock.Advance(time.Nanosecond)
	n, err = f.svc.Expiry.ExpireHolds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, f.booked(t, tour.ID))

	b, err := f.store.GetBooking(context.Background(), res.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, b.Status)
	assert.Equal(t, models.PaymentExpired, b.PaymentStatus)
	assert.Nil(t, b.ExpiresAt)
	assert.Equal(t, 1, f.events.count(models.EventBookingExpired))

	n, err = f.svc.Expiry.ExpireHolds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestExpireHolds_LeavesConfirmedBookings(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 5)
	res, err := f.svc.Reservations.Reserve(userCtx("alice"), tour.ID, 2)
	require.NoError(t, err)
	_, err = f.svc.Reservations.Confirm(userCtx("alice"), res.BookingID, transferRequest())
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	n, err := f.svc.Expiry.ExpireHolds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 2, f.booked(t, tour.ID))
}

func TestExpireHolds_RacesConfirm(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 20)

	const holds = 10
	ids := make([]string, holds)
	for i := 0; i < holds; i++ {
		user := fmt.Sprintf("buyer-%d", i)
		require.NoError(t, f.store.UpsertUser(context.Background(), &models.User{ID: user, Email: user + "@example.com"}))
		res, err := f.svc.Reservations.Reserve(userCtx(user), tour.ID, 1)
		require.NoError(t, err)
		ids[i] = res.BookingID
		f.clock.Advance(time.Second)
	}

	// holds 0..4 are past their deadline, 5..9 still open
	f.clock.Advance(15*time.Minute - 5500*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < holds; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Reservations.Confirm(userCtx(fmt.Sprintf("buyer-%d", i)), ids[i], transferRequest())
			if err != nil {
				assert.ErrorIs(t, err, apperrors.ErrAlreadyExpired)
			}
		}(i)
	}
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Expiry.ExpireHolds(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err := f.svc.Expiry.ExpireHolds(context.Background())
	require.NoError(t, err)

	for i, id := range ids {
		b, err := f.store.GetBooking(context.Background(), id)
		require.NoError(t, err)
		if i < holds/2 {
			assert.Equal(t, models.StatusExpired, b.Status, "booking %d", i)
		} else {
			assert.Equal(t, models.StatusPending, b.Status, "booking %d", i)
		}
	}
	assert.Equal(t, holds/2, f.events.count(models.EventBookingExpired))
	assert.Equal(t, holds/2, f.booked(t, tour.ID))
	f.assertLedger(t, tour.ID)
}

func TestCompleteTours(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 5)

	f.clock.Advance(73 * time.Hour)
	n, err := f.svc.Expiry.CompleteTours(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.store.GetTour(context.Background(), tour.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)
}

func TestCancel_ByOwner(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 10)

	hold, err := f.svc.Reservations.Reserve(userCtx("alice"), tour.ID, 2)
	require.NoError(t, err)
	b, err := f.svc.Bookings.Cancel(userCtx("alice"), hold.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, b.Status)

	pending, err := f.svc.Reservations.Reserve(userCtx("bob"), tour.ID, 3)
	require.NoError(t, err)
	_, err = f.svc.Reservations.Confirm(userCtx("bob"), pending.BookingID, transferRequest())
	require.NoError(t, err)

	_, err = f.svc.Bookings.Cancel(userCtx("alice"), pending.BookingID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	b, err = f.svc.Bookings.Cancel(userCtx("bob"), pending.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, b.Status)
	assert.Equal(t, models.PaymentCancelled, b.PaymentStatus)
	assert.Equal(t, 0, f.booked(t, tour.ID))

	_, err = f.svc.Bookings.Cancel(userCtx("bob"), pending.BookingID)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyProcessed)
}

func TestCancel_ConfirmedDependsOnPolicy(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 10)
	b := f.confirmed(t, "alice", tour.ID, 2)

	_, err := f.svc.Bookings.Cancel(userCtx("alice"), b.ID)
	assert.ErrorIs(t, err, apperrors.ErrCancellationNotAllowed)

	lenient := newFixture(t, Options{AllowConfirmedCancel: true})
	tour = lenient.tour(t, 10)
	b = lenient.confirmed(t, "alice", tour.ID, 2)

	got, err := lenient.svc.Bookings.Cancel(userCtx("alice"), b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Equal(t, 0, lenient.booked(t, tour.ID))
}
