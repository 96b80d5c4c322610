package errors

import (
	"errors"
	"fmt"
)

var ErrUnauthorized = errors.New("user is not authorized")
var ErrForbidden = errors.New("operation is forbidden for user")

// Inventory and tour state
var (
	ErrTourNotFound     = errors.New("tour not found")
	ErrCapacityExceeded = errors.New("not enough seats left on this tour")
	ErrTourCancelled    = errors.New("tour has been cancelled")
	ErrTourEnded        = errors.New("tour has already started or ended")
	ErrTourNotCancelled = errors.New("tour is not cancelled")
	ErrPendingBookings  = errors.New("tour has bookings awaiting payment review")
	ErrActiveBookings   = errors.New("tour still has active or paid bookings")
)

// Booking lifecycle
var (
	ErrBookingNotFound        = errors.New("booking not found")
	ErrAlreadyProcessed       = errors.New("booking has already been processed")
	ErrAlreadyExpired         = errors.New("booking hold has expired")
	ErrInvalidTransition      = errors.New("booking cannot move to the requested state")
	ErrHoldExists             = errors.New("you already hold seats on this tour")
	ErrCancellationNotAllowed = errors.New("confirmed bookings cannot be cancelled")
	ErrValidation             = errors.New("validation error")
)

// Ticket redemption
var (
	ErrInvalidRedemption = errors.New("invalid ticket")
	ErrAlreadyRedeemed   = errors.New("ticket already redeemed")
)

// Validation wraps ErrValidation with a message meant for display.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// InvalidRedemption wraps ErrInvalidRedemption with the reason the scan was refused.
func InvalidRedemption(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRedemption, reason)
}

// IsDomain reports whether err belongs to the user-facing taxonomy.
func IsDomain(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var domainErrors = []error{
	ErrUnauthorized, ErrForbidden,
	ErrTourNotFound, ErrCapacityExceeded, ErrTourCancelled, ErrTourEnded, ErrTourNotCancelled,
	ErrPendingBookings, ErrActiveBookings,
	ErrBookingNotFound, ErrAlreadyProcessed, ErrAlreadyExpired, ErrInvalidTransition,
	ErrHoldExists, ErrCancellationNotAllowed, ErrValidation,
	ErrInvalidRedemption, ErrAlreadyRedeemed,
}
