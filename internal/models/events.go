package models

import "time"

// NATS subjects
const (
	EventBookingReserved  = "booking.reserved"
	EventBookingSubmitted = "booking.submitted"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingRejected  = "booking.rejected"
	EventBookingExpired   = "booking.expired"
	EventBookingCancelled = "booking.cancelled"
	EventBookingRefunded  = "booking.refunded"
	EventTicketRedeemed   = "ticket.redeemed"

	EventTourCreated   = "tour.created"
	EventTourUpdated   = "tour.updated"
	EventTourCancelled = "tour.cancelled"
	EventTourDeleted   = "tour.deleted"
)

// BookingSubjects lists every booking lifecycle subject the audit consumer follows
var BookingSubjects = []string{
	EventBookingReserved,
	EventBookingSubmitted,
	EventBookingConfirmed,
	EventBookingRejected,
	EventBookingExpired,
	EventBookingCancelled,
	EventBookingRefunded,
	EventTicketRedeemed,
}

// TourSubjects lists every tour lifecycle subject the audit consumer follows
var TourSubjects = []string{
	EventTourCreated,
	EventTourUpdated,
	EventTourCancelled,
	EventTourDeleted,
}

// BookingEvent is published after every committed booking transition
type BookingEvent struct {
	Type          string        `json:"type"`
	BookingID     string        `json:"booking_id"`
	TourID        string        `json:"tour_id"`
	UserID        string        `json:"user_id"`
	TicketCount   int           `json:"ticket_count"`
	Status        BookingStatus `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	TicketNumber  int           `json:"ticket_number,omitempty"`
	ActorID       string        `json:"actor_id,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// NewBookingEvent snapshots the booking state for publishing
func NewBookingEvent(eventType string, b *Booking, actorID, reason string, at time.Time) BookingEvent {
	return BookingEvent{
		Type:          eventType,
		BookingID:     b.ID,
		TourID:        b.TourID,
		UserID:        b.UserID,
		TicketCount:   b.TicketCount,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		ActorID:       actorID,
		Reason:        reason,
		Timestamp:     at,
	}
}

// TourEvent is published after tour catalog changes
type TourEvent struct {
	Type        string    `json:"type"`
	TourID      string    `json:"tour_id"`
	Capacity    int       `json:"capacity"`
	BookedCount int       `json:"booked_count"`
	ActorID     string    `json:"actor_id,omitempty"`
	ImageIDs    []string  `json:"image_ids,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
