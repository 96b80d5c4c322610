package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tourbook/internal/logger"
	"tourbook/internal/models"
	"tourbook/internal/repository"
)

const expiryBatchSize = 500

var errHoldStillLive = errors.New("hold no longer expirable")

// ExpiryService releases lapsed holds and closes finished tours
type ExpiryService struct {
	*base
}

// ExpireHolds moves every holding booking whose deadline passed to expired
// and credits its seats. Each hold gets its own transaction and is re-read
// under lock, so a racing confirm wins or loses cleanly.
func (s *ExpiryService) ExpireHolds(ctx context.Context) (int, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveSweep(time.Since(started)) }()

	now := s.now()
	holds, err := s.store.ListExpiredHolds(ctx, now, expiryBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired holds: %w", err)
	}

	expired := 0
	for i := range holds {
		if ctx.Err() != nil {
			break
		}
		b, err := s.expireOne(ctx, holds[i].ID, now)
		if err != nil {
			if !errors.Is(err, errHoldStillLive) {
				logger.WithContext(ctx).Error("Failed to expire hold",
					"error", err,
					"booking_id", holds[i].ID)
			}
			continue
		}
		expired++
		s.voidCheckout(ctx, b, "hold elapsed")
		s.publishBooking(ctx, models.EventBookingExpired, b, "", "hold elapsed")
	}

	if expired > 0 {
		s.metrics.HoldsExpired(expired)
		s.invalidateTours(ctx)
		logger.WithContext(ctx).Info("Expired holds released",
			"count", expired,
			"candidates", len(holds))
	}

	return expired, nil
}

func (s *ExpiryService) expireOne(ctx context.Context, bookingID string, now time.Time) (*models.Booking, error) {
	var booking *models.Booking
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		b, _, err := lockBooking(ctx, q, bookingID)
		if err != nil {
			return err
		}
		if b.Status != models.StatusHolding || b.ExpiresAt == nil || !b.ExpiresAt.Before(now) {
			return errHoldStillLive
		}
		if _, err := transition(ctx, q, b, models.TriggerHoldElapsed, now); err != nil {
			return err
		}
		booking = b
		return nil
	})
	return booking, err
}

// CompleteTours flags tours whose start date has passed
func (s *ExpiryService) CompleteTours(ctx context.Context) (int, error) {
	n, err := s.store.MarkToursCompleted(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to complete tours: %w", err)
	}
	if n > 0 {
		s.metrics.ToursCompleted(n)
		s.invalidateTours(ctx)
		logger.WithContext(ctx).Info("Tours marked completed", "count", n)
	}
	return n, nil
}
