package service

import (
	"context"
	"strings"

	"tourbook/internal/auth"
	apperrors "tourbook/internal/errors"
	"tourbook/internal/models"
	"tourbook/internal/repository"
)

// Confirm submits payment details for a live hold and moves it to pending.
// Seats stay debited; the hold deadline is cleared.
func (s *ReservationService) Confirm(ctx context.Context, bookingID string, req models.ConfirmBookingRequest) (*models.Booking, error) {
	id, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	contact := strings.TrimSpace(req.ContactNumber)
	proof := trimmed(req.ProofImageID)
	refund := trimmed(req.RefundDetails)

	now := s.now()
	var booking *models.Booking

	err = s.store.WithTx(ctx, func(q repository.Queries) error {
		b, tour, err := lockBooking(ctx, q, bookingID)
		if err != nil {
			return err
		}
		if b.UserID != id.UserID {
			return apperrors.ErrForbidden
		}

		switch {
		case b.Status == models.StatusExpired, b.HoldLapsed(now):
			return apperrors.ErrAlreadyExpired
		case b.Status != models.StatusHolding:
			return apperrors.ErrAlreadyProcessed
		case tour != nil && tour.Cancelled:
			return apperrors.ErrTourCancelled
		}

		if contact == "" {
			return apperrors.Validation("contact number is required")
		}
		if !req.PaymentMethod.Valid() {
			return apperrors.Validation("unsupported payment method %q", req.PaymentMethod)
		}
		if req.PaymentMethod == models.PaymentTransfer {
			if proof == nil {
				return apperrors.Validation("payment proof is required for bank transfers")
			}
			if refund == nil {
				return apperrors.Validation("refund details are required for bank transfers")
			}
		}

		if _, err := b.Apply(models.TriggerSubmitPayment); err != nil {
			return err
		}
		b.PaymentMethod = req.PaymentMethod
		b.ProofImageID = proof
		b.RefundDetails = refund
		b.ContactNumber = &contact
		if proof != nil {
			b.PaymentStatus = models.PaymentReviewing
		}
		b.UpdatedAt = now

		if err := q.UpdateBooking(ctx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishBooking(ctx, models.EventBookingSubmitted, booking, id.UserID, "")
	return booking, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
