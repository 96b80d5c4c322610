package service

import (
	"context"
	"testing"
	"time"

	apperrors "tourbook/internal/errors"
	"tourbook/internal/external"
	"tourbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notification(paymentID, status string) models.PaymentNotificationPayload {
	return models.PaymentNotificationPayload{
		PaymentID: paymentID,
		Status:    status,
		Timestamp: "2026-05-01T10:05:00Z",
		Token:     "valid",
	}
}

func TestCheckout_CompletedPaymentConfirms(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 5)
	res, err := f.svc.Reservations.Reserve(userCtx("alice"), tour.ID, 2)
	require.NoError(t, err)

	_, err = f.svc.Checkout.Start(userCtx("bob"), res.BookingID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	session, err := f.svc.Checkout.Start(userCtx("alice"), res.BookingID)
	require.NoError(t, err)
	assert.Equal(t, "pay-"+res.BookingID, session.PaymentID)
	assert.Equal(t, "https://pay.test/"+res.BookingID, session.PaymentURL)

	bad := notification(session.PaymentID, external.PaymentStatusCompleted)
	bad.Token = "forged"
	assert.ErrorIs(t, f.svc.Checkout.HandleNotification(context.Background(), bad), apperrors.ErrUnauthorized)

	n := notification(session.PaymentID, external.PaymentStatusCompleted)
	require.NoError(t, f.svc.Checkout.HandleNotification(context.Background(), n))

	b, err := f.store.GetBooking(context.Background(), res.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, b.Status)
	assert.Equal(t, models.PaymentPaid, b.PaymentStatus)
	assert.Equal(t, models.PaymentCard, b.PaymentMethod)
	assert.Nil(t, b.ExpiresAt)
	assert.Equal(t, 2, f.booked(t, tour.ID))

	require.NoError(t, f.svc.Checkout.HandleNotification(context.Background(), n), "duplicates are ignored")
	assert.Equal(t, 1, f.events.count(models.EventBookingConfirmed))
}

func TestCheckout_FailedPaymentReleasesHold(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 5)
	res, err := f.svc.Reservations.Reserve(userCtx("alice"), tour.ID, 3)
	require.NoError(t, err)
	session, err := f.svc.Checkout.Start(userCtx("alice"), res.BookingID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Checkout.HandleNotification(context.Background(),
		notification(session.PaymentID, external.PaymentStatusFailed)))

	b, err := f.store.GetBooking(context.Background(), res.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, b.Status)
	assert.Equal(t, 0, f.booked(t, tour.ID))
}

func TestCheckout_LapsedHold(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 5)
	res, err := f.svc.Reservations.Reserve(userCtx("alice"), tour.ID, 1)
	require.NoError(t, err)
	session, err := f.svc.Checkout.Start(userCtx("alice"), res.BookingID)
	require.NoError(t, err)

	f.clock.Advance(15 * time.Minute)

	_, err = f.svc.Checkout.Start(userCtx("alice"), res.BookingID)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExpired)

	err = f.svc.Checkout.HandleNotification(context.Background(),
		notification(session.PaymentID, external.PaymentStatusCompleted))
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExpired)
	assert.Equal(t, 1, f.payments.sessions)
}

func TestCheckout_CancelVoidsSession(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 5)
	res, err := f.svc.Reservations.Reserve(userCtx("alice"), tour.ID, 1)
	require.NoError(t, err)
	session, err := f.svc.Checkout.Start(userCtx("alice"), res.BookingID)
	require.NoError(t, err)

	_, err = f.svc.Bookings.Cancel(userCtx("alice"), res.BookingID)
	require.NoError(t, err)
	assert.Equal(t, []string{session.PaymentID}, f.payments.cancelled)

	err = f.svc.Checkout.HandleNotification(context.Background(), notification("unknown", external.PaymentStatusCompleted))
	assert.ErrorIs(t, err, apperrors.ErrBookingNotFound)
}

func TestCheckout_SweptHoldVoidsSession(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 5)
	res, err := f.svc.Reservations.Reserve(userCtx("alice"), tour.ID, 2)
	require.NoError(t, err)
	session, err := f.svc.Checkout.Start(userCtx("alice"), res.BookingID)
	require.NoError(t, err)

	f.clock.Advance(16 * time.Minute)
	n, err := f.svc.Expiry.ExpireHolds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{session.PaymentID}, f.payments.cancelled)
	assert.Equal(t, 0, f.booked(t, tour.ID))

	err = f.svc.Checkout.HandleNotification(context.Background(),
		notification(session.PaymentID, external.PaymentStatusCompleted))
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExpired)
}

func TestCheckout_TourCancelVoidsSession(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 5)
	card, err := f.svc.Reservations.Reserve(userCtx("alice"), tour.ID, 1)
	require.NoError(t, err)
	session, err := f.svc.Checkout.Start(userCtx("alice"), card.BookingID)
	require.NoError(t, err)
	_, err = f.svc.Reservations.Reserve(userCtx("bob"), tour.ID, 1)
	require.NoError(t, err)

	_, err = f.svc.Admin.CancelTour(adminCtx(), tour.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{session.PaymentID}, f.payments.cancelled, "holds without a session are not sent to the gateway")
	assert.Equal(t, 0, f.booked(t, tour.ID))
}
