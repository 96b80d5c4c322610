package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tourbook/internal/auth"
	apperrors "tourbook/internal/errors"
	"tourbook/internal/external"
	"tourbook/internal/logger"
	"tourbook/internal/models"
	"tourbook/internal/repository"
)

// ErrPaymentsDisabled is returned when no card gateway is configured
var ErrPaymentsDisabled = errors.New("card payments are not configured")

// CheckoutService drives card payments through the hosted gateway
type CheckoutService struct {
	*base
}

// Start opens a gateway session for a live hold. The gateway is called
// outside the transaction; the hold is re-checked before the session id is
// stored.
func (s *CheckoutService) Start(ctx context.Context, bookingID string) (*models.CheckoutResponse, error) {
	id, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if s.payments == nil {
		return nil, ErrPaymentsDisabled
	}

	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, bookingErr(err)
	}
	if b.UserID != id.UserID {
		return nil, apperrors.ErrForbidden
	}
	if err := holdIsOpen(b, s.now()); err != nil {
		return nil, err
	}

	session, err := s.payments.CreateCheckout(ctx, external.CheckoutRequest{
		OrderID:     b.ID,
		UnitAmount:  b.TourPrice,
		Quantity:    b.TicketCount,
		Description: b.TourTitle,
		Email:       b.UserEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start checkout: %w", err)
	}

	err = s.store.WithTx(ctx, func(q repository.Queries) error {
		locked, _, err := lockBooking(ctx, q, bookingID)
		if err != nil {
			return err
		}
		if err := holdIsOpen(locked, s.now()); err != nil {
			return err
		}
		locked.PaymentMethod = models.PaymentCard
		locked.PaymentID = &session.PaymentID
		locked.UpdatedAt = s.now()
		return q.UpdateBooking(ctx, locked)
	})
	if err != nil {
		if cerr := s.payments.CancelPayment(ctx, session.PaymentID, "hold no longer open"); cerr != nil {
			logger.WithContext(ctx).Warn("Failed to cancel orphaned checkout session",
				"error", cerr,
				"payment_id", session.PaymentID)
		}
		return nil, err
	}

	logger.WithContext(ctx).Info("Checkout session opened",
		"booking_id", bookingID,
		"payment_id", session.PaymentID)

	return &models.CheckoutResponse{
		BookingID:  bookingID,
		PaymentID:  session.PaymentID,
		PaymentURL: session.PaymentURL,
	}, nil
}

// HandleNotification applies a signed gateway webhook. A completed payment
// submits and approves the booking in one step; a failed one releases the
// hold. Repeated notifications are no-ops.
func (s *CheckoutService) HandleNotification(ctx context.Context, n models.PaymentNotificationPayload) error {
	if s.payments == nil {
		return ErrPaymentsDisabled
	}
	if !s.payments.VerifyNotification(n.PaymentID, n.Status, n.Timestamp, n.Token) {
		return fmt.Errorf("%w: invalid notification token", apperrors.ErrUnauthorized)
	}

	b, err := s.store.GetBookingByPaymentID(ctx, n.PaymentID)
	if err != nil {
		return bookingErr(err)
	}

	log := logger.WithContext(ctx).With("booking_id", b.ID, "payment_id", n.PaymentID, "status", n.Status)

	switch strings.ToUpper(n.Status) {
	case external.PaymentStatusCompleted, external.PaymentStatusConfirmed:
		return s.settle(ctx, b.ID, log)
	case external.PaymentStatusFailed, external.PaymentStatusCancelled, external.PaymentStatusExpired:
		return s.abandon(ctx, b.ID, log)
	}

	log.Info("Ignoring intermediate payment status")
	return nil
}

func (s *CheckoutService) settle(ctx context.Context, bookingID string, log *slog.Logger) error {
	now := s.now()
	var (
		booking *models.Booking
		changed bool
	)

	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		b, _, err := lockBooking(ctx, q, bookingID)
		if err != nil {
			return err
		}
		switch b.Status {
		case models.StatusConfirmed:
			return nil
		case models.StatusHolding:
			if b.HoldLapsed(now) {
				return apperrors.ErrAlreadyExpired
			}
			if _, err := b.Apply(models.TriggerSubmitPayment); err != nil {
				return err
			}
			b.PaymentMethod = models.PaymentCard
		case models.StatusExpired:
			return apperrors.ErrAlreadyExpired
		}
		if _, err := transition(ctx, q, b, models.TriggerApprove, now); err != nil {
			return err
		}
		booking, changed = b, true
		return nil
	})
	if err != nil {
		return err
	}
	if !changed {
		log.Info("Duplicate payment notification")
		return nil
	}

	s.metrics.Adjudication("card")
	s.publishBooking(ctx, models.EventBookingConfirmed, booking, "", "card payment completed")
	log.Info("Card payment settled")
	return nil
}

func (s *CheckoutService) abandon(ctx context.Context, bookingID string, log *slog.Logger) error {
	now := s.now()
	var booking *models.Booking

	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		b, _, err := lockBooking(ctx, q, bookingID)
		if err != nil {
			return err
		}
		if b.Status != models.StatusHolding {
			return nil
		}
		if _, err := transition(ctx, q, b, models.TriggerUserCancel, now); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return err
	}
	if booking == nil {
		log.Info("Payment failure for a booking that is no longer held")
		return nil
	}

	s.publishBooking(ctx, models.EventBookingExpired, booking, "", "card payment failed")
	s.invalidateTours(ctx)
	log.Info("Hold released after failed payment")
	return nil
}

func holdIsOpen(b *models.Booking, now time.Time) error {
	switch {
	case b.Status == models.StatusExpired, b.HoldLapsed(now):
		return apperrors.ErrAlreadyExpired
	case b.Status != models.StatusHolding:
		return apperrors.ErrAlreadyProcessed
	}
	return nil
}
