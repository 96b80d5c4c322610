package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "tourbook/internal/errors"
	"tourbook/internal/models"
	"tourbook/internal/repository"
)

func debit(ctx context.Context, q repository.Queries, tourID string, n int) error {
	if n < 1 {
		return apperrors.Validation("ticket count must be at least 1")
	}
	if _, err := q.DebitSeats(ctx, tourID, n); err != nil {
		return tourErr(err)
	}
	return nil
}

func credit(ctx context.Context, q repository.Queries, tourID string, n int) error {
	if n < 1 {
		return apperrors.Validation("ticket count must be at least 1")
	}
	if _, err := q.CreditSeats(ctx, tourID, n); err != nil {
		return fmt.Errorf("failed to credit seats: %w", tourErr(err))
	}
	return nil
}

// transition applies trigger, credits the tour when the edge releases seats and persists the booking
func transition(ctx context.Context, q repository.Queries, b *models.Booking, trigger models.Trigger, now time.Time) (models.Transition, error) {
	t, err := b.Apply(trigger)
	if err != nil {
		return t, err
	}
	if t.ReleasesSeats {
		if err := credit(ctx, q, b.TourID, b.TicketCount); err != nil {
			return t, err
		}
	}
	b.UpdatedAt = now
	if err := q.UpdateBooking(ctx, b); err != nil {
		return t, fmt.Errorf("failed to update booking: %w", err)
	}
	return t, nil
}

// lockBooking locks the owning tour row before the booking row so every
// transaction acquires locks in the same order. tour is nil once deleted.
func lockBooking(ctx context.Context, q repository.Queries, bookingID string) (*models.Booking, *models.Tour, error) {
	peek, err := q.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, bookingErr(err)
	}

	tour, err := q.LockTour(ctx, peek.TourID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, fmt.Errorf("failed to lock tour: %w", err)
	}

	b, err := q.LockBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, bookingErr(err)
	}
	return b, tour, nil
}

func tourErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.ErrTourNotFound
	}
	return err
}

func bookingErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.ErrBookingNotFound
	}
	return err
}
