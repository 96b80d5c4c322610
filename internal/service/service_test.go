package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"tourbook/internal/auth"
	"tourbook/internal/external"
	"tourbook/internal/models"
	"tourbook/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Publish(subject string, _ interface{}) error {
	r.mu.Lock()
	r.events = append(r.events, subject)
	r.mu.Unlock()
	return nil
}

func (r *recorder) count(subject string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == subject {
			n++
		}
	}
	return n
}

type fakeImages struct {
	mu       sync.Mutex
	released []string
}

func (f *fakeImages) DisplayURL(id string) string { return "https://img.test/" + id }

func (f *fakeImages) Release(_ context.Context, ids []string) error {
	f.mu.Lock()
	f.released = append(f.released, ids...)
	f.mu.Unlock()
	return nil
}

type fakeGateway struct {
	sessions  int
	cancelled []string
}

func (g *fakeGateway) CreateCheckout(_ context.Context, in external.CheckoutRequest) (*external.PaymentInitResponse, error) {
	g.sessions++
	return &external.PaymentInitResponse{
		Success:    true,
		PaymentID:  "pay-" + in.OrderID,
		OrderID:    in.OrderID,
		Amount:     in.UnitAmount,
		PaymentURL: "https://pay.test/" + in.OrderID,
	}, nil
}

func (g *fakeGateway) CancelPayment(_ context.Context, paymentID, _ string) error {
	g.cancelled = append(g.cancelled, paymentID)
	return nil
}

func (g *fakeGateway) VerifyNotification(_, _, _, token string) bool { return token == "valid" }

type fixture struct {
	svc      *Services
	store    *repository.MemoryStore
	events   *recorder
	images   *fakeImages
	payments *fakeGateway
	clock    *clock
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		store:    repository.NewMemoryStore(),
		events:   &recorder{},
		images:   &fakeImages{},
		payments: &fakeGateway{},
		clock:    &clock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)},
	}
	opts.Now = f.clock.Now
	f.svc = NewServices(Deps{
		Store:     f.store,
		Publisher: f.events,
		Images:    f.images,
		Payments:  f.payments,
	}, opts)

	for _, id := range []string{"alice", "bob"} {
		require.NoError(t, f.store.UpsertUser(context.Background(), &models.User{
			ID: id, Email: id + "@example.com", Name: id, Role: models.RoleCustomer,
		}))
	}
	return f
}

func (f *fixture) tour(t *testing.T, capacity int) *models.Tour {
	t.Helper()
	cover := "cover-" + t.Name()
	tour := &models.Tour{
		ID:              uuid.New().String(),
		Title:           "Canal Cruise",
		Price:           2500,
		StartDate:       f.clock.Now().Add(72 * time.Hour),
		Capacity:        capacity,
		CoverImageID:    &cover,
		GalleryImageIDs: []string{"gallery-1"},
	}
	require.NoError(t, f.store.CreateTour(context.Background(), tour))
	return tour
}

func (f *fixture) booked(t *testing.T, tourID string) int {
	t.Helper()
	tour, err := f.store.GetTour(context.Background(), tourID)
	require.NoError(t, err)
	return tour.BookedCount
}

// assertLedger checks booked count against the seat-holding bookings
func (f *fixture) assertLedger(t *testing.T, tourID string) {
	t.Helper()
	bookings, err := f.store.ListBookings(context.Background(), repository.BookingFilter{TourID: tourID})
	require.NoError(t, err)
	held := 0
	for _, b := range bookings {
		if b.Status.HoldsSeats() {
			held += b.TicketCount
		}
	}
	assert.Equal(t, held, f.booked(t, tourID))
}

func userCtx(id string) context.Context {
	return auth.ContextWithIdentity(context.Background(), auth.Identity{
		UserID: id, Role: models.RoleCustomer, Email: id + "@example.com", Name: id,
	})
}

func adminCtx() context.Context {
	return auth.ContextWithIdentity(context.Background(), auth.Identity{
		UserID: "admin", Role: models.RoleAdmin,
	})
}

func transferRequest() models.ConfirmBookingRequest {
	proof, refund := "receipt-1", "IBAN DE00 1234"
	return models.ConfirmBookingRequest{
		PaymentMethod: models.PaymentTransfer,
		ProofImageID:  &proof,
		RefundDetails: &refund,
		ContactNumber: "+49 30 1234567",
	}
}

// confirmed walks a fresh booking through reserve, confirm and approve
func (f *fixture) confirmed(t *testing.T, user, tourID string, tickets int) *models.Booking {
	t.Helper()
	res, err := f.svc.Reservations.Reserve(userCtx(user), tourID, tickets)
	require.NoError(t, err)
	_, err = f.svc.Reservations.Confirm(userCtx(user), res.BookingID, transferRequest())
	require.NoError(t, err)
	b, err := f.svc.Admin.VerifyPayment(adminCtx(), res.BookingID, true)
	require.NoError(t, err)
	return b
}
