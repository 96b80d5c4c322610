package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tourbook/internal/auth"
	apperrors "tourbook/internal/errors"
	"tourbook/internal/logger"
	"tourbook/internal/models"
	"tourbook/internal/repository"
)

// AdminService holds the operator-only lifecycle operations
type AdminService struct {
	*base
}

// VerifyPayment approves or rejects a pending booking. Rejection returns the
// seats to the tour. A second decision on the same booking fails.
func (s *AdminService) VerifyPayment(ctx context.Context, bookingID string, approve bool) (*models.Booking, error) {
	admin, err := auth.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	trigger, subject, decision := models.TriggerReject, models.EventBookingRejected, "reject"
	if approve {
		trigger, subject, decision = models.TriggerApprove, models.EventBookingConfirmed, "approve"
	}

	now := s.now()
	var booking *models.Booking

	err = s.store.WithTx(ctx, func(q repository.Queries) error {
		b, _, err := lockBooking(ctx, q, bookingID)
		if err != nil {
			return err
		}
		if b.Status.IsTerminal() || b.PaymentStatus.Decided() {
			return apperrors.ErrAlreadyProcessed
		}
		if _, err := transition(ctx, q, b, trigger, now); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Adjudication(decision)
	s.publishBooking(ctx, subject, booking, admin.UserID, "")
	if !approve {
		s.invalidateTours(ctx)
	}

	logger.WithContext(ctx).Info("Payment verified",
		"booking_id", booking.ID,
		"decision", decision)

	return booking, nil
}

// CancelTour marks the tour cancelled. Open holds are expired and credited
// in the same transaction; pending payments block the cancellation.
func (s *AdminService) CancelTour(ctx context.Context, tourID string) (*models.Tour, error) {
	admin, err := auth.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var (
		tour     *models.Tour
		released []*models.Booking
	)

	err = s.store.WithTx(ctx, func(q repository.Queries) error {
		t, err := q.LockTour(ctx, tourID)
		if err != nil {
			return tourErr(err)
		}
		if t.Cancelled {
			return apperrors.ErrAlreadyProcessed
		}

		counts, err := q.CountBookingsByStatus(ctx, tourID)
		if err != nil {
			return fmt.Errorf("failed to count bookings: %w", err)
		}
		if counts[models.StatusPending] > 0 {
			return apperrors.ErrPendingBookings
		}

		holds, err := q.ListBookings(ctx, repository.BookingFilter{TourID: tourID, Status: models.StatusHolding})
		if err != nil {
			return fmt.Errorf("failed to list holds: %w", err)
		}
		for i := range holds {
			b, err := q.LockBooking(ctx, holds[i].ID)
			if err != nil {
				return bookingErr(err)
			}
			if _, err := transition(ctx, q, b, models.TriggerTourCancelled, now); err != nil {
				return err
			}
			released = append(released, b)
		}

		t.Cancelled = true
		t.UpdatedAt = now
		if err := q.UpdateTour(ctx, t); err != nil {
			return fmt.Errorf("failed to update tour: %w", err)
		}

		tour, err = q.GetTour(ctx, tourID)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, b := range released {
		s.voidCheckout(ctx, b, "tour cancelled")
		s.publishBooking(ctx, models.EventBookingExpired, b, admin.UserID, "tour cancelled")
	}
	s.publishTour(ctx, models.EventTourCancelled, tour, admin.UserID, nil)
	s.invalidateTours(ctx)

	logger.WithContext(ctx).Info("Tour cancelled",
		"tour_id", tourID,
		"released_holds", len(released))

	return tour, nil
}

// ProcessRefund records the admin's refund proof on a confirmed booking of a
// cancelled tour. Seats are not credited again.
func (s *AdminService) ProcessRefund(ctx context.Context, bookingID, proofImageID string) (*models.Booking, error) {
	admin, err := auth.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	proof := strings.TrimSpace(proofImageID)
	if proof == "" {
		return nil, apperrors.Validation("refund proof is required")
	}

	now := s.now()
	var booking *models.Booking

	err = s.store.WithTx(ctx, func(q repository.Queries) error {
		b, tour, err := lockBooking(ctx, q, bookingID)
		if err != nil {
			return err
		}
		if b.Status == models.StatusRefunded {
			return apperrors.ErrAlreadyProcessed
		}
		if tour == nil || !tour.Cancelled {
			return apperrors.ErrTourNotCancelled
		}

		b.AdminRefundProofID = &proof
		if _, err := transition(ctx, q, b, models.TriggerRefund, now); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishBooking(ctx, models.EventBookingRefunded, booking, admin.UserID, "")
	return booking, nil
}

// DeleteTour removes a tour whose bookings are all cancelled, expired or
// rejected. Image references of the tour and its bookings are released
// after the row is gone.
func (s *AdminService) DeleteTour(ctx context.Context, tourID string) error {
	admin, err := auth.RequireAdmin(ctx)
	if err != nil {
		return err
	}

	var (
		tour   *models.Tour
		images []string
	)

	err = s.store.WithTx(ctx, func(q repository.Queries) error {
		t, err := q.LockTour(ctx, tourID)
		if err != nil {
			return tourErr(err)
		}

		bookings, err := q.ListBookings(ctx, repository.BookingFilter{TourID: tourID})
		if err != nil {
			return fmt.Errorf("failed to list bookings: %w", err)
		}

		images = append(images, t.ImageIDs()...)
		for i := range bookings {
			if !bookings[i].Status.AllowsTourDeletion() {
				return apperrors.ErrActiveBookings
			}
			images = append(images, bookings[i].ImageIDs()...)
		}

		if err := q.DeleteTour(ctx, tourID); err != nil {
			return tourErr(err)
		}
		tour = t
		return nil
	})
	if err != nil {
		return err
	}

	if s.images != nil && len(images) > 0 {
		if err := s.images.Release(ctx, images); err != nil {
			logger.WithContext(ctx).Error("Failed to release tour images",
				"error", err,
				"tour_id", tourID,
				"images", len(images))
		}
	}

	s.publishTour(ctx, models.EventTourDeleted, tour, admin.UserID, images)
	s.invalidateTours(ctx)
	return nil
}

// ValidateTicket redeems one ticket ordinal of a confirmed booking
func (s *AdminService) ValidateTicket(ctx context.Context, bookingID string, ticketNumber int) (*models.TicketValidationResponse, error) {
	admin, err := auth.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var booking *models.Booking

	err = s.store.WithTx(ctx, func(q repository.Queries) error {
		b, err := q.LockBooking(ctx, bookingID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.InvalidRedemption("booking not found")
			}
			return err
		}
		if b.Status != models.StatusConfirmed {
			return apperrors.InvalidRedemption(fmt.Sprintf("booking is %s", b.Status))
		}
		if ticketNumber < 1 || ticketNumber > b.TicketCount {
			return apperrors.InvalidRedemption(fmt.Sprintf("ticket number must be between 1 and %d", b.TicketCount))
		}
		if b.IsRedeemed(ticketNumber) {
			return apperrors.ErrAlreadyRedeemed
		}

		b.RedeemedTickets = append(b.RedeemedTickets, ticketNumber)
		b.UpdatedAt = now
		if err := q.UpdateBooking(ctx, b); err != nil {
			return fmt.Errorf("failed to record redemption: %w", err)
		}
		booking = b
		return nil
	})
	if err != nil {
		s.metrics.Redemption(redemptionOutcome(err))
		return nil, err
	}
	s.metrics.Redemption("redeemed")

	ev := models.NewBookingEvent(models.EventTicketRedeemed, booking, admin.UserID, "", now)
	ev.TicketNumber = ticketNumber
	s.publish(ctx, models.EventTicketRedeemed, ev)

	return &models.TicketValidationResponse{
		BookingID:       booking.ID,
		TicketNumber:    ticketNumber,
		TicketCount:     booking.TicketCount,
		TourID:          booking.TourID,
		TourTitle:       booking.TourTitle,
		TourDate:        booking.TourDate,
		UserName:        booking.UserName,
		RedeemedTickets: booking.RedeemedTickets,
	}, nil
}

// ValidateTicketCode redeems a scanned "<bookingId>-<ticketNumber>" code
func (s *AdminService) ValidateTicketCode(ctx context.Context, code string) (*models.TicketValidationResponse, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	bookingID, n, err := ParseTicketCode(code)
	if err != nil {
		s.metrics.Redemption("invalid")
		return nil, err
	}
	return s.ValidateTicket(ctx, bookingID, n)
}

func redemptionOutcome(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrAlreadyRedeemed):
		return "already_redeemed"
	case errors.Is(err, apperrors.ErrInvalidRedemption):
		return "invalid"
	}
	return "error"
}
