package service

import (
	"context"
	"fmt"

	"tourbook/internal/auth"
	apperrors "tourbook/internal/errors"
	"tourbook/internal/models"
	"tourbook/internal/repository"
)

type BookingService struct {
	*base
}

// ListMine returns the caller's bookings, newest first
func (s *BookingService) ListMine(ctx context.Context) ([]models.Booking, error) {
	id, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	bookings, err := s.store.ListBookings(ctx, repository.BookingFilter{UserID: id.UserID})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// ListAll is the admin view, optionally narrowed to one payment status
func (s *BookingService) ListAll(ctx context.Context, paymentStatus string) ([]models.Booking, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	ps := models.PaymentStatus(paymentStatus)
	if ps != "" && !ps.Valid() {
		return nil, apperrors.Validation("unknown payment status %q", paymentStatus)
	}
	bookings, err := s.store.ListBookings(ctx, repository.BookingFilter{PaymentStatus: ps})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

func (s *BookingService) ListByTour(ctx context.Context, tourID string) ([]models.Booking, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	if _, err := s.store.GetTour(ctx, tourID); err != nil {
		return nil, tourErr(err)
	}
	bookings, err := s.store.ListBookings(ctx, repository.BookingFilter{TourID: tourID})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// Get returns a booking to its owner or to an admin, with proof links
func (s *BookingService) Get(ctx context.Context, bookingID string) (*models.BookingDetailResponse, error) {
	id, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, bookingErr(err)
	}
	if b.UserID != id.UserID && !id.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}
	return &models.BookingDetailResponse{
		Booking:        *b,
		ProofImageURL:  s.displayURL(b.ProofImageID),
		RefundProofURL: s.displayURL(b.AdminRefundProofID),
	}, nil
}

// Cancel withdraws a booking on behalf of its owner or an admin. A hold
// expires, a pending or (when allowed) confirmed booking is cancelled, and
// the seats go back to the tour.
func (s *BookingService) Cancel(ctx context.Context, bookingID string) (*models.Booking, error) {
	id, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var (
		booking  *models.Booking
		wasHold  bool
		released bool
	)

	err = s.store.WithTx(ctx, func(q repository.Queries) error {
		b, _, err := lockBooking(ctx, q, bookingID)
		if err != nil {
			return err
		}
		if b.UserID != id.UserID && !id.IsAdmin() {
			return apperrors.ErrForbidden
		}
		if b.Status == models.StatusConfirmed && !s.opts.AllowConfirmedCancel && !id.IsAdmin() {
			return apperrors.ErrCancellationNotAllowed
		}

		wasHold = b.Status == models.StatusHolding
		t, err := transition(ctx, q, b, models.TriggerUserCancel, now)
		if err != nil {
			return err
		}
		booking, released = b, t.ReleasesSeats
		return nil
	})
	if err != nil {
		return nil, err
	}

	if wasHold {
		s.voidCheckout(ctx, booking, "booking cancelled")
	}

	s.publishBooking(ctx, models.EventBookingCancelled, booking, id.UserID, "cancelled by user")
	if released {
		s.invalidateTours(ctx)
	}
	return booking, nil
}

// AuditTrail returns the recorded transitions of a booking
func (s *BookingService) AuditTrail(ctx context.Context, bookingID string) ([]models.AuditEntry, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	if _, err := s.store.GetBooking(ctx, bookingID); err != nil {
		return nil, bookingErr(err)
	}
	if s.audit == nil {
		return []models.AuditEntry{}, nil
	}
	entries, err := s.audit.BookingHistory(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to read booking history: %w", err)
	}
	return entries, nil
}
