package service

import (
	"context"
	"sync"
	"testing"

	apperrors "tourbook/internal/errors"
	"tourbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyPayment_SecondDecisionFails(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 5)
	b := f.confirmed(t, "alice", tour.ID, 2)
	assert.Equal(t, models.StatusConfirmed, b.Status)
	assert.Equal(t, models.PaymentPaid, b.PaymentStatus)

	_, err := f.svc.Admin.VerifyPayment(adminCtx(), b.ID, false)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyProcessed)
	_, err = f.svc.Admin.VerifyPayment(adminCtx(), b.ID, true)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyProcessed)
	assert.Equal(t, 2, f.booked(t, tour.ID))
}

func TestVerifyPayment_RejectCredits(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 5)
	res, err := f.svc.Reservations.Reserve(userCtx("alice"), tour.ID, 4)
	require.NoError(t, err)

	_, err = f.svc.Admin.VerifyPayment(adminCtx(), res.BookingID, true)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition, "holds cannot be adjudicated")

	_, err = f.svc.Reservations.Confirm(userCtx("alice"), res.BookingID, transferRequest())
	require.NoError(t, err)

	_, err = f.svc.Admin.VerifyPayment(userCtx("alice"), res.BookingID, true)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	b, err := f.svc.Admin.VerifyPayment(adminCtx(), res.BookingID, false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, b.Status)
	assert.Equal(t, models.PaymentRejected, b.PaymentStatus)
	assert.Equal(t, 0, f.booked(t, tour.ID))
	assert.Equal(t, 1, f.events.count(models.EventBookingRejected))
}

func TestLedgerHoldsAcrossLifecycle(t *testing.T) {
	f := newFixture(t, Options{AllowConfirmedCancel: true})
	tour := f.tour(t, 20)

	confirmed := f.confirmed(t, "alice", tour.ID, 3)
	f.assertLedger(t, tour.ID)

	hold, err := f.svc.Reservations.Reserve(userCtx("bob"), tour.ID, 4)
	require.NoError(t, err)
	f.assertLedger(t, tour.ID)

	_, err = f.svc.Reservations.Confirm(userCtx("bob"), hold.BookingID, transferRequest())
	require.NoError(t, err)
	_, err = f.svc.Admin.VerifyPayment(adminCtx(), hold.BookingID, false)
	require.NoError(t, err)
	f.assertLedger(t, tour.ID)

	_, err = f.svc.Bookings.Cancel(userCtx("alice"), confirmed.ID)
	require.NoError(t, err)
	f.assertLedger(t, tour.ID)
	assert.Equal(t, 0, f.booked(t, tour.ID))
}

func TestCancelTour(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 10)

	pending, err := f.svc.Reservations.Reserve(userCtx("alice"), tour.ID, 2)
	require.NoError(t, err)
	_, err = f.svc.Reservations.Confirm(userCtx("alice"), pending.BookingID, transferRequest())
	require.NoError(t, err)

	_, err = f.svc.Admin.CancelTour(adminCtx(), tour.ID)
	assert.ErrorIs(t, err, apperrors.ErrPendingBookings)

	_, err = f.svc.Admin.VerifyPayment(adminCtx(), pending.BookingID, true)
	require.NoError(t, err)
	hold, err := f.svc.Reservations.Reserve(userCtx("bob"), tour.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, f.booked(t, tour.ID))

	got, err := f.svc.Admin.CancelTour(adminCtx(), tour.ID)
	require.NoError(t, err)
	assert.True(t, got.Cancelled)
	assert.Equal(t, 2, got.BookedCount)

	b, err := f.store.GetBooking(context.Background(), hold.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, b.Status)

	_, err = f.svc.Admin.CancelTour(adminCtx(), tour.ID)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyProcessed)

	_, err = f.svc.Reservations.Reserve(userCtx("bob"), tour.ID, 1)
	assert.ErrorIs(t, err, apperrors.ErrTourCancelled)
}

func TestProcessRefund(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 10)
	b := f.confirmed(t, "alice", tour.ID, 2)

	_, err := f.svc.Admin.ProcessRefund(adminCtx(), b.ID, "refund-proof")
	assert.ErrorIs(t, err, apperrors.ErrTourNotCancelled)

	_, err = f.svc.Admin.ProcessRefund(adminCtx(), b.ID, " ")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.Admin.CancelTour(adminCtx(), tour.ID)
	require.NoError(t, err)

	got, err := f.svc.Admin.ProcessRefund(adminCtx(), b.ID, "refund-proof")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, got.Status)
	assert.Equal(t, models.PaymentRefunded, got.PaymentStatus)
	assert.Equal(t, "refund-proof", *got.AdminRefundProofID)
	assert.Equal(t, 2, f.booked(t, tour.ID), "refunds do not credit seats again")

	_, err = f.svc.Admin.ProcessRefund(adminCtx(), b.ID, "refund-proof")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyProcessed)
}

func TestDeleteTour(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 10)

	res, err := f.svc.Reservations.Reserve(userCtx("alice"), tour.ID, 2)
	require.NoError(t, err)
	_, err = f.svc.Reservations.Confirm(userCtx("alice"), res.BookingID, transferRequest())
	require.NoError(t, err)

	err = f.svc.Admin.DeleteTour(adminCtx(), tour.ID)
	assert.ErrorIs(t, err, apperrors.ErrActiveBookings)

	_, err = f.svc.Admin.VerifyPayment(adminCtx(), res.BookingID, false)
	require.NoError(t, err)

	require.NoError(t, f.svc.Admin.DeleteTour(adminCtx(), tour.ID))
	_, err = f.store.GetTour(context.Background(), tour.ID)
	assert.Error(t, err)

	assert.ElementsMatch(t, []string{*tour.CoverImageID, "gallery-1", "receipt-1"}, f.images.released)
	assert.Equal(t, 1, f.events.count(models.EventTourDeleted))

	err = f.svc.Admin.DeleteTour(adminCtx(), tour.ID)
	assert.ErrorIs(t, err, apperrors.ErrTourNotFound)
}

func TestDeleteTour_RefundedBlocks(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 10)
	b := f.confirmed(t, "alice", tour.ID, 1)
	_, err := f.svc.Admin.CancelTour(adminCtx(), tour.ID)
	require.NoError(t, err)
	_, err = f.svc.Admin.ProcessRefund(adminCtx(), b.ID, "refund-proof")
	require.NoError(t, err)

	err = f.svc.Admin.DeleteTour(adminCtx(), tour.ID)
	assert.ErrorIs(t, err, apperrors.ErrActiveBookings)
}

func TestValidateTicket(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 10)
	b := f.confirmed(t, "alice", tour.ID, 3)

	res, err := f.svc.Admin.ValidateTicketCode(adminCtx(), TicketCode(b.ID, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, res.TicketNumber)
	assert.Equal(t, []int{2}, res.RedeemedTickets)
	assert.Equal(t, "Canal Cruise", res.TourTitle)

	_, err = f.svc.Admin.ValidateTicketCode(adminCtx(), TicketCode(b.ID, 2))
	assert.ErrorIs(t, err, apperrors.ErrAlreadyRedeemed)

	res, err = f.svc.Admin.ValidateTicket(adminCtx(), b.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, res.RedeemedTickets)

	for _, n := range []int{0, 4, -1} {
		_, err = f.svc.Admin.ValidateTicket(adminCtx(), b.ID, n)
		assert.ErrorIs(t, err, apperrors.ErrInvalidRedemption, n)
	}

	_, err = f.svc.Admin.ValidateTicket(adminCtx(), "missing", 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRedemption)

	hold, err := f.svc.Reservations.Reserve(userCtx("bob"), tour.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.Admin.ValidateTicket(adminCtx(), hold.BookingID, 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRedemption)

	_, err = f.svc.Admin.ValidateTicketCode(userCtx("alice"), TicketCode(b.ID, 1))
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestParseTicketCode(t *testing.T) {
	id := "3f2b8c1e-7d4a-4f5e-9a6b-1c2d3e4f5a6b"
	tests := []struct {
		code   string
		wantID string
		wantN  int
		ok     bool
	}{
		{id + "-1", id, 1, true},
		{id + "-12", id, 12, true},
		{" " + id + "-3 ", id, 3, true},
		{id, "", 0, false},
		{id + "-", "", 0, false},
		{"-4", "", 0, false},
		{"nohyphen", "", 0, false},
		{id + "-two", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			gotID, gotN, err := ParseTicketCode(tt.code)
			if !tt.ok {
				assert.ErrorIs(t, err, apperrors.ErrInvalidRedemption)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, gotID)
			assert.Equal(t, tt.wantN, gotN)
		})
	}
}

func TestValidateTicket_ConcurrentScans(t *testing.T) {
	f := newFixture(t, Options{})
	tour := f.tour(t, 10)
	b := f.confirmed(t, "alice", tour.ID, 2)
	code := TicketCode(b.ID, 1)

	const scanners = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		repeated int
	)
	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Admin.ValidateTicketCode(adminCtx(), code)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case assert.ErrorIs(t, err, apperrors.ErrAlreadyRedeemed):
				repeated++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, admitted)
	assert.Equal(t, scanners-1, repeated)

	stored, err := f.store.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, stored.RedeemedTickets)
	assert.Equal(t, 1, f.events.count(models.EventTicketRedeemed))
}
