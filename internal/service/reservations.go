package service

import (
	"context"
	"errors"
	"fmt"

	"tourbook/internal/auth"
	apperrors "tourbook/internal/errors"
	"tourbook/internal/logger"
	"tourbook/internal/models"
	"tourbook/internal/repository"

	"github.com/google/uuid"
)

type ReservationService struct {
	*base
}

// Reserve debits ticketCount seats and opens a hold for the caller. A live
// hold of the same size on the same tour is returned instead of a new one.
func (s *ReservationService) Reserve(ctx context.Context, tourID string, ticketCount int) (*models.ReserveResponse, error) {
	id, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if ticketCount < 1 {
		s.metrics.Reservation("invalid")
		return nil, apperrors.Validation("ticket count must be at least 1")
	}

	now := s.now()
	var (
		booking *models.Booking
		resumed bool
	)

	err = s.store.WithTx(ctx, func(q repository.Queries) error {
		tour, err := q.LockTour(ctx, tourID)
		if err != nil {
			return tourErr(err)
		}
		if err := tour.Bookable(now); err != nil {
			return err
		}

		hold, err := q.FindActiveHold(ctx, tourID, id.UserID, now)
		switch {
		case err == nil:
			if hold.TicketCount != ticketCount {
				return apperrors.ErrHoldExists
			}
			booking, resumed = hold, true
			return nil
		case !errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("failed to look up hold: %w", err)
		}

		user, err := q.GetUser(ctx, id.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: user profile not synced", apperrors.ErrUnauthorized)
			}
			return fmt.Errorf("failed to get user: %w", err)
		}

		if err := debit(ctx, q, tourID, ticketCount); err != nil {
			return err
		}

		expiresAt := now.Add(s.opts.HoldDuration)
		booking = &models.Booking{
			ID:              uuid.New().String(),
			TourID:          tour.ID,
			UserID:          user.ID,
			TicketCount:     ticketCount,
			TourTitle:       tour.Title,
			TourDate:        tour.StartDate,
			TourPrice:       tour.Price,
			UserName:        user.DisplayName(),
			UserEmail:       user.Email,
			Status:          models.StatusHolding,
			PaymentMethod:   models.PaymentTransfer,
			PaymentStatus:   models.PaymentPending,
			ExpiresAt:       &expiresAt,
			RedeemedTickets: []int{},
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := q.CreateBooking(ctx, booking); err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}
		return nil
	})
	if err != nil {
		s.metrics.Reservation(reservationOutcome(err))
		return nil, err
	}

	if resumed {
		s.metrics.Reservation("resumed")
		logger.WithContext(ctx).Info("Resumed active hold",
			"booking_id", booking.ID,
			"tour_id", tourID)
	} else {
		s.metrics.Reservation("created")
		s.publishBooking(ctx, models.EventBookingReserved, booking, id.UserID, "")
		s.invalidateTours(ctx)
	}

	return &models.ReserveResponse{
		BookingID:   booking.ID,
		ExpiresAt:   *booking.ExpiresAt,
		TicketCount: booking.TicketCount,
		Resumed:     resumed,
	}, nil
}

// ActiveHold returns the caller's unexpired hold on the tour
func (s *ReservationService) ActiveHold(ctx context.Context, tourID string) (*models.Booking, error) {
	id, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	hold, err := s.store.FindActiveHold(ctx, tourID, id.UserID, s.now())
	if err != nil {
		return nil, bookingErr(err)
	}
	return hold, nil
}

func reservationOutcome(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, apperrors.ErrTourCancelled), errors.Is(err, apperrors.ErrTourEnded):
		return "tour_unavailable"
	case errors.Is(err, apperrors.ErrTourNotFound):
		return "not_found"
	case errors.Is(err, apperrors.ErrHoldExists):
		return "hold_exists"
	case errors.Is(err, apperrors.ErrUnauthorized):
		return "unauthorized"
	}
	return "error"
}
