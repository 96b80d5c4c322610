package models

import (
	"time"
)

// CreateTourRequest - модель для создания тура
type CreateTourRequest struct {
	Title           string    `json:"title" binding:"required"`
	Description     string    `json:"description"`
	Price           int64     `json:"price"`
	StartDate       time.Time `json:"start_date" binding:"required"`
	Capacity        int       `json:"capacity" binding:"required"`
	CoverImageID    *string   `json:"cover_image_id,omitempty"`
	GalleryImageIDs []string  `json:"gallery_image_ids,omitempty"`
}

// UpdateTourRequest - частичное обновление тура, nil поля не меняются
type UpdateTourRequest struct {
	Title           *string    `json:"title,omitempty"`
	Description     *string    `json:"description,omitempty"`
	Price           *int64     `json:"price,omitempty"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	Capacity        *int       `json:"capacity,omitempty"`
	CoverImageID    *string    `json:"cover_image_id,omitempty"`
	GalleryImageIDs []string   `json:"gallery_image_ids,omitempty"`
}

// TourResponse - тур с подписанными ссылками на изображения
type TourResponse struct {
	Tour
	Available        int      `json:"available"`
	CoverImageURL    string   `json:"cover_image_url,omitempty"`
	GalleryImageURLs []string `json:"gallery_image_urls,omitempty"`
}

// ReserveRequest - модель для резервирования мест
type ReserveRequest struct {
	TicketCount int `json:"ticket_count"`
}

// ReserveResponse - модель ответа при резервировании
type ReserveResponse struct {
	BookingID   string    `json:"booking_id"`
	ExpiresAt   time.Time `json:"expires_at"`
	TicketCount int       `json:"ticket_count"`
	Resumed     bool      `json:"resumed"`
}

// ConfirmBookingRequest - модель для подтверждения оплаты пользователем
type ConfirmBookingRequest struct {
	PaymentMethod PaymentMethod `json:"payment_method" binding:"required"`
	ProofImageID  *string       `json:"proof_image_id,omitempty"`
	RefundDetails *string       `json:"refund_details,omitempty"`
	ContactNumber string        `json:"contact_number"`
}

// VerifyPaymentRequest - решение администратора по оплате
type VerifyPaymentRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject"`
}

// Approve reports whether the admin accepted the payment
func (r VerifyPaymentRequest) Approve() bool {
	return r.Decision == "approve"
}

// RefundRequest - модель для возврата средств
type RefundRequest struct {
	ProofImageID string `json:"proof_image_id"`
}

// ValidateTicketRequest - модель для проверки билета на входе.
// Либо Code, либо пара BookingID + TicketNumber.
type ValidateTicketRequest struct {
	Code         string `json:"code,omitempty"`
	BookingID    string `json:"booking_id,omitempty"`
	TicketNumber int    `json:"ticket_number,omitempty"`
}

// TicketValidationResponse - результат проверки билета
type TicketValidationResponse struct {
	BookingID       string    `json:"booking_id"`
	TicketNumber    int       `json:"ticket_number"`
	TicketCount     int       `json:"ticket_count"`
	TourID          string    `json:"tour_id"`
	TourTitle       string    `json:"tour_title"`
	TourDate        time.Time `json:"tour_date"`
	UserName        string    `json:"user_name"`
	RedeemedTickets []int     `json:"redeemed_tickets"`
}

// BookingDetailResponse - бронирование для администратора со ссылками на чеки
type BookingDetailResponse struct {
	Booking
	ProofImageURL  string `json:"proof_image_url,omitempty"`
	RefundProofURL string `json:"refund_proof_url,omitempty"`
}

// CheckoutResponse - модель ответа при создании платежной сессии
type CheckoutResponse struct {
	BookingID  string `json:"booking_id"`
	PaymentID  string `json:"payment_id"`
	PaymentURL string `json:"payment_url"`
}

// PaymentNotificationPayload - модель для webhook уведомлений от платежного шлюза
type PaymentNotificationPayload struct {
	PaymentID string                 `json:"paymentId" binding:"required"`
	OrderID   string                 `json:"orderId"`
	Status    string                 `json:"status" binding:"required"`
	TeamSlug  string                 `json:"teamSlug"`
	Token     string                 `json:"token"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// AnalyticsResponse - модель ответа аналитики для тура
type AnalyticsResponse struct {
	TourID            string  `json:"tour_id"`
	Capacity          int     `json:"capacity"`
	BookedCount       int     `json:"booked_count"`
	SeatsSold         int     `json:"seats_sold"`
	ConfirmedBookings int     `json:"confirmed_bookings"`
	Revenue           int64   `json:"revenue"`
	OccupancyPercent  float64 `json:"occupancy_percent"`
}

// AuditEntry - запись истории бронирования из Elasticsearch
type AuditEntry struct {
	Type          string        `json:"type"`
	Status        BookingStatus `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	ActorID       string        `json:"actor_id,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	TicketNumber  int           `json:"ticket_number,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}
