package service

import (
	"context"
	"time"

	"tourbook/internal/external"
	"tourbook/internal/logger"
	"tourbook/internal/messaging"
	"tourbook/internal/metrics"
	"tourbook/internal/models"
	"tourbook/internal/repository"
)

// ImageStore resolves and releases opaque image references
type ImageStore interface {
	DisplayURL(imageID string) string
	Release(ctx context.Context, imageIDs []string) error
}

// PaymentGateway is the hosted card checkout provider
type PaymentGateway interface {
	CreateCheckout(ctx context.Context, in external.CheckoutRequest) (*external.PaymentInitResponse, error)
	CancelPayment(ctx context.Context, paymentID, reason string) error
	VerifyNotification(paymentID, status, timestamp, token string) bool
}

// TourCache holds the public upcoming-tours listing
type TourCache interface {
	GetUpcomingTours(ctx context.Context) ([]byte, error)
	SetUpcomingTours(ctx context.Context, tours interface{})
	InvalidateTours(ctx context.Context)
}

// AuditLog answers booking history lookups
type AuditLog interface {
	BookingHistory(ctx context.Context, bookingID string) ([]models.AuditEntry, error)
}

// Options tunes booking lifecycle behavior
type Options struct {
	HoldDuration         time.Duration
	AllowConfirmedCancel bool
	// Now is the clock every service reads; tests pin it
	Now func() time.Time
}

// Deps are the collaborators shared by all services. Only Store is required.
type Deps struct {
	Store     repository.Store
	Publisher messaging.Publisher
	Images    ImageStore
	Payments  PaymentGateway
	Cache     TourCache
	Audit     AuditLog
	Metrics   *metrics.Metrics
}

type Services struct {
	Tours        *TourService
	Reservations *ReservationService
	Bookings     *BookingService
	Admin        *AdminService
	Checkout     *CheckoutService
	Users        *UserService
	Expiry       *ExpiryService
}

func NewServices(deps Deps, opts Options) *Services {
	if opts.HoldDuration <= 0 {
		opts.HoldDuration = 15 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.Publisher == nil {
		deps.Publisher = messaging.NopPublisher{}
	}

	b := &base{
		store:    deps.Store,
		events:   deps.Publisher,
		images:   deps.Images,
		payments: deps.Payments,
		cache:    deps.Cache,
		audit:    deps.Audit,
		metrics:  deps.Metrics,
		opts:     opts,
	}

	return &Services{
		Tours:        &TourService{b},
		Reservations: &ReservationService{b},
		Bookings:     &BookingService{b},
		Admin:        &AdminService{b},
		Checkout:     &CheckoutService{b},
		Users:        &UserService{b},
		Expiry:       &ExpiryService{b},
	}
}

// base carries the collaborators every service needs
type base struct {
	store    repository.Store
	events   messaging.Publisher
	images   ImageStore
	payments PaymentGateway
	cache    TourCache
	audit    AuditLog
	metrics  *metrics.Metrics
	opts     Options
}

func (b *base) now() time.Time {
	return b.opts.Now().UTC()
}

// publishBooking runs after commit; a lost event never fails the operation
func (b *base) publishBooking(ctx context.Context, subject string, booking *models.Booking, actorID, reason string) {
	ev := models.NewBookingEvent(subject, booking, actorID, reason, b.now())
	b.publish(ctx, subject, ev)
}

func (b *base) publishTour(ctx context.Context, subject string, tour *models.Tour, actorID string, images []string) {
	ev := models.TourEvent{
		Type:        subject,
		TourID:      tour.ID,
		Capacity:    tour.Capacity,
		BookedCount: tour.BookedCount,
		ActorID:     actorID,
		ImageIDs:    images,
		Timestamp:   b.now(),
	}
	b.publish(ctx, subject, ev)
}

func (b *base) publish(ctx context.Context, subject string, data interface{}) {
	if err := b.events.Publish(subject, data); err != nil {
		logger.WithContext(ctx).Error("Failed to publish event",
			"error", err,
			"event_type", subject)
	}
}

func (b *base) invalidateTours(ctx context.Context) {
	if b.cache != nil {
		b.cache.InvalidateTours(ctx)
	}
}

// voidCheckout cancels the gateway session of a card hold that was released
// without being paid, so a late completion cannot charge for returned seats
func (b *base) voidCheckout(ctx context.Context, booking *models.Booking, reason string) {
	if b.payments == nil || booking.PaymentMethod != models.PaymentCard || booking.PaymentID == nil {
		return
	}
	if err := b.payments.CancelPayment(ctx, *booking.PaymentID, reason); err != nil {
		logger.WithContext(ctx).Warn("Failed to cancel checkout session",
			"error", err,
			"booking_id", booking.ID,
			"payment_id", *booking.PaymentID)
	}
}

func (b *base) displayURL(imageID *string) string {
	if b.images == nil || imageID == nil {
		return ""
	}
	return b.images.DisplayURL(*imageID)
}
