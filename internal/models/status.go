package models

import (
	"fmt"

	apperrors "tourbook/internal/errors"
)

// BookingStatus is the lifecycle state of a booking
type BookingStatus string

const (
	StatusHolding   BookingStatus = "holding"
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusExpired   BookingStatus = "expired"
	StatusRejected  BookingStatus = "rejected"
	StatusRefunded  BookingStatus = "refunded"
)

// Valid reports whether s is one of the known states
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusHolding, StatusPending, StatusConfirmed,
		StatusCancelled, StatusExpired, StatusRejected, StatusRefunded:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusExpired, StatusRejected, StatusRefunded:
		return true
	}
	return false
}

// HoldsSeats reports whether bookings in this state are counted in the tour's bookedCount
func (s BookingStatus) HoldsSeats() bool {
	switch s {
	case StatusHolding, StatusPending, StatusConfirmed:
		return true
	}
	return false
}

// AllowsTourDeletion reports whether a booking in this state lets its tour be deleted
func (s BookingStatus) AllowsTourDeletion() bool {
	switch s {
	case StatusCancelled, StatusExpired, StatusRejected:
		return true
	}
	return false
}

// PaymentMethod is how the customer pays for a booking
type PaymentMethod string

const (
	PaymentTransfer PaymentMethod = "transfer"
	PaymentCard     PaymentMethod = "card"
)

// Valid reports whether m is a supported payment method
func (m PaymentMethod) Valid() bool {
	return m == PaymentTransfer || m == PaymentCard
}

// PaymentStatus is the finer-grained payment sub-state; the admin queue filters on reviewing.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentReviewing PaymentStatus = "reviewing"
	PaymentPaid      PaymentStatus = "paid"
	PaymentRejected  PaymentStatus = "rejected"
	PaymentExpired   PaymentStatus = "expired"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Valid reports whether p is a known payment status
func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentReviewing, PaymentPaid, PaymentRejected,
		PaymentExpired, PaymentCancelled, PaymentRefunded:
		return true
	}
	return false
}

// Decided reports whether an admin or the gateway has already ruled on the payment
func (p PaymentStatus) Decided() bool {
	return p == PaymentPaid || p == PaymentRejected
}

// Trigger is an event that drives a booking transition
type Trigger string

const (
	TriggerSubmitPayment Trigger = "submit_payment"
	TriggerHoldElapsed   Trigger = "hold_elapsed"
	TriggerUserCancel    Trigger = "user_cancel"
	TriggerTourCancelled Trigger = "tour_cancelled"
	TriggerApprove       Trigger = "approve"
	TriggerReject        Trigger = "reject"
	TriggerRefund        Trigger = "refund"
)

// Transition describes the outcome of applying a trigger to a state
type Transition struct {
	From          BookingStatus
	Trigger       Trigger
	To            BookingStatus
	PaymentStatus PaymentStatus
	// ReleasesSeats is set when the tour must be credited by the booking's ticketCount
	ReleasesSeats bool
}

var transitions = map[BookingStatus]map[Trigger]Transition{
	StatusHolding: {
		// payment status for submissions depends on whether proof was attached
		TriggerSubmitPayment: {To: StatusPending, PaymentStatus: PaymentPending},
		TriggerHoldElapsed:   {To: StatusExpired, PaymentStatus: PaymentExpired, ReleasesSeats: true},
		TriggerUserCancel:    {To: StatusExpired, PaymentStatus: PaymentCancelled, ReleasesSeats: true},
		TriggerTourCancelled: {To: StatusExpired, PaymentStatus: PaymentCancelled, ReleasesSeats: true},
	},
	StatusPending: {
		TriggerApprove:    {To: StatusConfirmed, PaymentStatus: PaymentPaid},
		TriggerReject:     {To: StatusRejected, PaymentStatus: PaymentRejected, ReleasesSeats: true},
		TriggerUserCancel: {To: StatusCancelled, PaymentStatus: PaymentCancelled, ReleasesSeats: true},
	},
	StatusConfirmed: {
		TriggerRefund:     {To: StatusRefunded, PaymentStatus: PaymentRefunded},
		TriggerUserCancel: {To: StatusCancelled, PaymentStatus: PaymentCancelled, ReleasesSeats: true},
	},
}

// NextTransition looks up the transition for trigger from the given state.
// Terminal states fail with ErrAlreadyProcessed, unknown edges with ErrInvalidTransition.
func NextTransition(from BookingStatus, trigger Trigger) (Transition, error) {
	if from.IsTerminal() {
		return Transition{}, fmt.Errorf("%w: booking is %s", apperrors.ErrAlreadyProcessed, from)
	}
	edges, ok := transitions[from]
	if !ok {
		return Transition{}, fmt.Errorf("%w: unknown state %q", apperrors.ErrInvalidTransition, from)
	}
	t, ok := edges[trigger]
	if !ok {
		return Transition{}, fmt.Errorf("%w: cannot %s a %s booking",
			apperrors.ErrInvalidTransition, trigger, from)
	}
	t.From = from
	t.Trigger = trigger
	return t, nil
}

// Apply moves the booking along trigger and returns the transition taken.
// Leaving holding always clears the hold deadline.
func (b *Booking) Apply(trigger Trigger) (Transition, error) {
	t, err := NextTransition(b.Status, trigger)
	if err != nil {
		return Transition{}, err
	}
	b.Status = t.To
	b.PaymentStatus = t.PaymentStatus
	if t.From == StatusHolding {
		b.ExpiresAt = nil
	}
	return t, nil
}
