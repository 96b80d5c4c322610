package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "tourbook/internal/errors"
	"tourbook/internal/models"
)

// MemoryStore keeps everything in process. Transactions are serialized by one
// mutex and work on a copy that replaces the live data only on success.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemData()}
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(q Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(work); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) view(fn func(d *memData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (s *MemoryStore) update(ctx context.Context, fn func(d *memData) error) error {
	return s.WithTx(ctx, func(q Queries) error {
		return fn(q.(*memData))
	})
}

func (s *MemoryStore) CreateTour(ctx context.Context, tour *models.Tour) error {
	return s.update(ctx, func(d *memData) error { return d.CreateTour(ctx, tour) })
}

func (s *MemoryStore) GetTour(ctx context.Context, id string) (t *models.Tour, err error) {
	err = s.view(func(d *memData) error { t, err = d.GetTour(ctx, id); return err })
	return t, err
}

func (s *MemoryStore) LockTour(ctx context.Context, id string) (*models.Tour, error) {
	return s.GetTour(ctx, id)
}

func (s *MemoryStore) UpdateTour(ctx context.Context, tour *models.Tour) error {
	return s.update(ctx, func(d *memData) error { return d.UpdateTour(ctx, tour) })
}

func (s *MemoryStore) DeleteTour(ctx context.Context, id string) error {
	return s.update(ctx, func(d *memData) error { return d.DeleteTour(ctx, id) })
}

func (s *MemoryStore) ListTours(ctx context.Context) (tours []models.Tour, err error) {
	err = s.view(func(d *memData) error { tours, err = d.ListTours(ctx); return err })
	return tours, err
}

func (s *MemoryStore) ListUpcomingTours(ctx context.Context, now time.Time) (tours []models.Tour, err error) {
	err = s.view(func(d *memData) error { tours, err = d.ListUpcomingTours(ctx, now); return err })
	return tours, err
}

func (s *MemoryStore) MarkToursCompleted(ctx context.Context, now time.Time) (n int, err error) {
	err = s.update(ctx, func(d *memData) error { n, err = d.MarkToursCompleted(ctx, now); return err })
	return n, err
}

func (s *MemoryStore) DebitSeats(ctx context.Context, tourID string, n int) (booked int, err error) {
	err = s.update(ctx, func(d *memData) error { booked, err = d.DebitSeats(ctx, tourID, n); return err })
	return booked, err
}

func (s *MemoryStore) CreditSeats(ctx context.Context, tourID string, n int) (booked int, err error) {
	err = s.update(ctx, func(d *memData) error { booked, err = d.CreditSeats(ctx, tourID, n); return err })
	return booked, err
}

func (s *MemoryStore) CreateBooking(ctx context.Context, b *models.Booking) error {
	return s.update(ctx, func(d *memData) error { return d.CreateBooking(ctx, b) })
}

func (s *MemoryStore) GetBooking(ctx context.Context, id string) (b *models.Booking, err error) {
	err = s.view(func(d *memData) error { b, err = d.GetBooking(ctx, id); return err })
	return b, err
}

func (s *MemoryStore) LockBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.GetBooking(ctx, id)
}

func (s *MemoryStore) GetBookingByPaymentID(ctx context.Context, paymentID string) (b *models.Booking, err error) {
	err = s.view(func(d *memData) error { b, err = d.GetBookingByPaymentID(ctx, paymentID); return err })
	return b, err
}

func (s *MemoryStore) UpdateBooking(ctx context.Context, b *models.Booking) error {
	return s.update(ctx, func(d *memData) error { return d.UpdateBooking(ctx, b) })
}

func (s *MemoryStore) FindActiveHold(ctx context.Context, tourID, userID string, now time.Time) (b *models.Booking, err error) {
	err = s.view(func(d *memData) error { b, err = d.FindActiveHold(ctx, tourID, userID, now); return err })
	return b, err
}

func (s *MemoryStore) ListBookings(ctx context.Context, filter BookingFilter) (out []models.Booking, err error) {
	err = s.view(func(d *memData) error { out, err = d.ListBookings(ctx, filter); return err })
	return out, err
}

func (s *MemoryStore) ListExpiredHolds(ctx context.Context, now time.Time, limit int) (out []models.Booking, err error) {
	err = s.view(func(d *memData) error { out, err = d.ListExpiredHolds(ctx, now, limit); return err })
	return out, err
}

func (s *MemoryStore) CountBookingsByStatus(ctx context.Context, tourID string) (counts map[models.BookingStatus]int, err error) {
	err = s.view(func(d *memData) error { counts, err = d.CountBookingsByStatus(ctx, tourID); return err })
	return counts, err
}

func (s *MemoryStore) UpsertUser(ctx context.Context, user *models.User) error {
	return s.update(ctx, func(d *memData) error { return d.UpsertUser(ctx, user) })
}

func (s *MemoryStore) GetUser(ctx context.Context, id string) (u *models.User, err error) {
	err = s.view(func(d *memData) error { u, err = d.GetUser(ctx, id); return err })
	return u, err
}

// memData implements Queries without locking; MemoryStore owns the mutex.
// Stored values are never mutated in place so clones may share slices.
type memData struct {
	tours    map[string]models.Tour
	bookings map[string]models.Booking
	users    map[string]models.User
}

func newMemData() *memData {
	return &memData{
		tours:    make(map[string]models.Tour),
		bookings: make(map[string]models.Booking),
		users:    make(map[string]models.User),
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		tours:    make(map[string]models.Tour, len(d.tours)),
		bookings: make(map[string]models.Booking, len(d.bookings)),
		users:    make(map[string]models.User, len(d.users)),
	}
	for k, v := range d.tours {
		c.tours[k] = v
	}
	for k, v := range d.bookings {
		c.bookings[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	return c
}

func copyTour(t models.Tour) models.Tour {
	if t.CoverImageID != nil {
		v := *t.CoverImageID
		t.CoverImageID = &v
	}
	t.GalleryImageIDs = append([]string{}, t.GalleryImageIDs...)
	return t
}

func copyBooking(b models.Booking) models.Booking {
	b.PaymentID = copyString(b.PaymentID)
	b.ProofImageID = copyString(b.ProofImageID)
	b.RefundDetails = copyString(b.RefundDetails)
	b.ContactNumber = copyString(b.ContactNumber)
	b.AdminRefundProofID = copyString(b.AdminRefundProofID)
	if b.ExpiresAt != nil {
		v := *b.ExpiresAt
		b.ExpiresAt = &v
	}
	b.RedeemedTickets = append([]int{}, b.RedeemedTickets...)
	return b
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func (d *memData) CreateTour(_ context.Context, tour *models.Tour) error {
	d.tours[tour.ID] = copyTour(*tour)
	return nil
}

func (d *memData) GetTour(_ context.Context, id string) (*models.Tour, error) {
	t, ok := d.tours[id]
	if !ok {
		return nil, ErrNotFound
	}
	t = copyTour(t)
	return &t, nil
}

func (d *memData) LockTour(ctx context.Context, id string) (*models.Tour, error) {
	return d.GetTour(ctx, id)
}

func (d *memData) UpdateTour(_ context.Context, tour *models.Tour) error {
	cur, ok := d.tours[tour.ID]
	if !ok {
		return ErrNotFound
	}
	next := copyTour(*tour)
	next.BookedCount = cur.BookedCount
	next.CreatedAt = cur.CreatedAt
	d.tours[tour.ID] = next
	return nil
}

func (d *memData) DeleteTour(_ context.Context, id string) error {
	if _, ok := d.tours[id]; !ok {
		return ErrNotFound
	}
	delete(d.tours, id)
	return nil
}

func (d *memData) ListTours(_ context.Context) ([]models.Tour, error) {
	tours := []models.Tour{}
	for _, t := range d.tours {
		tours = append(tours, copyTour(t))
	}
	sort.Slice(tours, func(i, j int) bool { return tours[i].StartDate.After(tours[j].StartDate) })
	return tours, nil
}

func (d *memData) ListUpcomingTours(_ context.Context, now time.Time) ([]models.Tour, error) {
	tours := []models.Tour{}
	for _, t := range d.tours {
		if !t.Cancelled && !t.IsCompleted && t.StartDate.After(now) {
			tours = append(tours, copyTour(t))
		}
	}
	sort.Slice(tours, func(i, j int) bool { return tours[i].StartDate.Before(tours[j].StartDate) })
	return tours, nil
}

func (d *memData) MarkToursCompleted(_ context.Context, now time.Time) (int, error) {
	n := 0
	for id, t := range d.tours {
		if !t.IsCompleted && !t.StartDate.After(now) {
			t.IsCompleted = true
			t.UpdatedAt = now
			d.tours[id] = t
			n++
		}
	}
	return n, nil
}

func (d *memData) DebitSeats(_ context.Context, tourID string, n int) (int, error) {
	t, ok := d.tours[tourID]
	if !ok {
		return 0, ErrNotFound
	}
	if t.BookedCount+n > t.Capacity {
		return 0, apperrors.ErrCapacityExceeded
	}
	t.BookedCount += n
	d.tours[tourID] = t
	return t.BookedCount, nil
}

func (d *memData) CreditSeats(_ context.Context, tourID string, n int) (int, error) {
	t, ok := d.tours[tourID]
	if !ok {
		return 0, ErrNotFound
	}
	t.BookedCount -= n
	if t.BookedCount < 0 {
		t.BookedCount = 0
	}
	d.tours[tourID] = t
	return t.BookedCount, nil
}

func (d *memData) CreateBooking(_ context.Context, b *models.Booking) error {
	d.bookings[b.ID] = copyBooking(*b)
	return nil
}

func (d *memData) GetBooking(_ context.Context, id string) (*models.Booking, error) {
	b, ok := d.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	b = copyBooking(b)
	return &b, nil
}

func (d *memData) LockBooking(ctx context.Context, id string) (*models.Booking, error) {
	return d.GetBooking(ctx, id)
}

func (d *memData) GetBookingByPaymentID(_ context.Context, paymentID string) (*models.Booking, error) {
	for _, b := range d.bookings {
		if b.PaymentID != nil && *b.PaymentID == paymentID {
			b = copyBooking(b)
			return &b, nil
		}
	}
	return nil, ErrNotFound
}

func (d *memData) UpdateBooking(_ context.Context, b *models.Booking) error {
	cur, ok := d.bookings[b.ID]
	if !ok {
		return ErrNotFound
	}
	next := copyBooking(*b)
	// immutable after creation
	next.TourID = cur.TourID
	next.UserID = cur.UserID
	next.TicketCount = cur.TicketCount
	next.TourTitle = cur.TourTitle
	next.TourDate = cur.TourDate
	next.TourPrice = cur.TourPrice
	next.UserName = cur.UserName
	next.UserEmail = cur.UserEmail
	next.CreatedAt = cur.CreatedAt
	d.bookings[b.ID] = next
	return nil
}

func (d *memData) FindActiveHold(_ context.Context, tourID, userID string, now time.Time) (*models.Booking, error) {
	var found *models.Booking
	for _, b := range d.bookings {
		if b.TourID != tourID || b.UserID != userID || b.Status != models.StatusHolding {
			continue
		}
		if b.ExpiresAt == nil || !b.ExpiresAt.After(now) {
			continue
		}
		if found == nil || b.CreatedAt.After(found.CreatedAt) {
			c := copyBooking(b)
			found = &c
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (d *memData) ListBookings(_ context.Context, filter BookingFilter) ([]models.Booking, error) {
	out := []models.Booking{}
	for _, b := range d.bookings {
		if filter.TourID != "" && b.TourID != filter.TourID {
			continue
		}
		if filter.UserID != "" && b.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if filter.PaymentStatus != "" && b.PaymentStatus != filter.PaymentStatus {
			continue
		}
		out = append(out, copyBooking(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (d *memData) ListExpiredHolds(_ context.Context, now time.Time, limit int) ([]models.Booking, error) {
	out := []models.Booking{}
	for _, b := range d.bookings {
		if b.Status == models.StatusHolding && b.ExpiresAt != nil && b.ExpiresAt.Before(now) {
			out = append(out, copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (d *memData) CountBookingsByStatus(_ context.Context, tourID string) (map[models.BookingStatus]int, error) {
	counts := make(map[models.BookingStatus]int)
	for _, b := range d.bookings {
		if b.TourID == tourID {
			counts[b.Status]++
		}
	}
	return counts, nil
}

func (d *memData) UpsertUser(_ context.Context, user *models.User) error {
	if cur, ok := d.users[user.ID]; ok {
		user.CreatedAt = cur.CreatedAt
	} else {
		user.CreatedAt = user.UpdatedAt
	}
	d.users[user.ID] = *user
	return nil
}

func (d *memData) GetUser(_ context.Context, id string) (*models.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}
