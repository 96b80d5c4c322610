package models

import (
	"time"

	apperrors "tourbook/internal/errors"
)

// Role is the authorization role carried by a user's token
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// User represents a user in the system
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName falls back to the email when no name was synced
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Tour is a scheduled tour with a finite number of seats
type Tour struct {
	ID              string    `json:"id" db:"id"`
	Title           string    `json:"title" db:"title"`
	Description     string    `json:"description" db:"description"`
	Price           int64     `json:"price" db:"price"`
	StartDate       time.Time `json:"start_date" db:"start_date"`
	Capacity        int       `json:"capacity" db:"capacity"`
	BookedCount     int       `json:"booked_count" db:"booked_count"`
	CoverImageID    *string   `json:"cover_image_id,omitempty" db:"cover_image_id"`
	GalleryImageIDs []string  `json:"gallery_image_ids" db:"gallery_image_ids"`
	Cancelled       bool      `json:"cancelled" db:"cancelled"`
	IsCompleted     bool      `json:"is_completed" db:"is_completed"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Available returns the number of seats that can still be debited
func (t *Tour) Available() int {
	if t.BookedCount >= t.Capacity {
		return 0
	}
	return t.Capacity - t.BookedCount
}

// Bookable reports whether new reservations may be taken at the given instant
func (t *Tour) Bookable(now time.Time) error {
	if t.Cancelled {
		return apperrors.ErrTourCancelled
	}
	if t.IsCompleted || !t.StartDate.After(now) {
		return apperrors.ErrTourEnded
	}
	return nil
}

// ImageIDs lists every storage reference owned by the tour
func (t *Tour) ImageIDs() []string {
	ids := make([]string, 0, len(t.GalleryImageIDs)+1)
	if t.CoverImageID != nil && *t.CoverImageID != "" {
		ids = append(ids, *t.CoverImageID)
	}
	for _, id := range t.GalleryImageIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Booking is one customer's attempt to acquire seats on a tour.
// Tour and user fields are snapshots taken at reservation time and are
// never refreshed from the live rows.
type Booking struct {
	ID          string `json:"id" db:"id"`
	TourID      string `json:"tour_id" db:"tour_id"`
	UserID      string `json:"user_id" db:"user_id"`
	TicketCount int    `json:"ticket_count" db:"ticket_count"`

	TourTitle string    `json:"tour_title" db:"tour_title"`
	TourDate  time.Time `json:"tour_date" db:"tour_date"`
	TourPrice int64     `json:"tour_price" db:"tour_price"`
	UserName  string    `json:"user_name" db:"user_name"`
	UserEmail string    `json:"user_email" db:"user_email"`

	Status        BookingStatus `json:"status" db:"status"`
	PaymentMethod PaymentMethod `json:"payment_method" db:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status" db:"payment_status"`
	PaymentID     *string       `json:"payment_id,omitempty" db:"payment_id"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty" db:"expires_at"`

	ProofImageID       *string `json:"proof_image_id,omitempty" db:"proof_image_id"`
	RefundDetails      *string `json:"refund_details,omitempty" db:"refund_details"`
	ContactNumber      *string `json:"contact_number,omitempty" db:"contact_number"`
	AdminRefundProofID *string `json:"admin_refund_proof_id,omitempty" db:"admin_refund_proof_id"`

	RedeemedTickets []int     `json:"redeemed_tickets" db:"redeemed_tickets"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// TotalAmount is the snapshot price multiplied by the seats held
func (b *Booking) TotalAmount() int64 {
	return b.TourPrice * int64(b.TicketCount)
}

// HoldLapsed reports whether a holding booking can no longer be confirmed
func (b *Booking) HoldLapsed(now time.Time) bool {
	return b.Status == StatusHolding && b.ExpiresAt != nil && !now.Before(*b.ExpiresAt)
}

// IsRedeemed reports whether the ticket ordinal has already been scanned
func (b *Booking) IsRedeemed(ticketNumber int) bool {
	for _, n := range b.RedeemedTickets {
		if n == ticketNumber {
			return true
		}
	}
	return false
}

// ImageIDs lists the user and admin supplied storage references
func (b *Booking) ImageIDs() []string {
	var ids []string
	if b.ProofImageID != nil && *b.ProofImageID != "" {
		ids = append(ids, *b.ProofImageID)
	}
	if b.AdminRefundProofID != nil && *b.AdminRefundProofID != "" {
		ids = append(ids, *b.AdminRefundProofID)
	}
	return ids
}
