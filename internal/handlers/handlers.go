package handlers

import (
	"errors"
	"net/http"

	apperrors "tourbook/internal/errors"
	"tourbook/internal/logger"
	"tourbook/internal/service"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	services *service.Services
}

func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{services: services}
}

// errorStatus сопоставляет доменные ошибки с HTTP статусами и кодами
var errorStatus = []struct {
	err    error
	status int
	code   string
}{
	{apperrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{apperrors.ErrForbidden, http.StatusForbidden, "forbidden"},
	{apperrors.ErrTourNotFound, http.StatusNotFound, "tour_not_found"},
	{apperrors.ErrBookingNotFound, http.StatusNotFound, "booking_not_found"},
	{apperrors.ErrValidation, http.StatusBadRequest, "validation_error"},
	{apperrors.ErrInvalidRedemption, http.StatusUnprocessableEntity, "invalid_redemption"},
	{apperrors.ErrAlreadyRedeemed, http.StatusConflict, "already_redeemed"},
	{apperrors.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
	{apperrors.ErrTourCancelled, http.StatusConflict, "tour_cancelled"},
	{apperrors.ErrTourEnded, http.StatusConflict, "tour_ended"},
	{apperrors.ErrTourNotCancelled, http.StatusConflict, "tour_not_cancelled"},
	{apperrors.ErrAlreadyProcessed, http.StatusConflict, "already_processed"},
	{apperrors.ErrAlreadyExpired, http.StatusConflict, "already_expired"},
	{apperrors.ErrPendingBookings, http.StatusConflict, "pending_bookings"},
	{apperrors.ErrActiveBookings, http.StatusConflict, "active_bookings"},
	{apperrors.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{apperrors.ErrHoldExists, http.StatusConflict, "hold_exists"},
	{apperrors.ErrCancellationNotAllowed, http.StatusConflict, "cancellation_not_allowed"},
	{service.ErrPaymentsDisabled, http.StatusServiceUnavailable, "payments_disabled"},
}

// fail отвечает ошибкой. Неизвестные ошибки логируются и скрываются за общим сообщением.
func (h *Handlers) fail(c *gin.Context, err error, message string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{"error": err.Error(), "code": e.code})
			return
		}
	}
	// Доменная ошибка без собственного кода все равно отдается клиенту как конфликт
	if apperrors.IsDomain(err) {
		logger.WithContext(c.Request.Context()).Warn("Unmapped domain error", "error", err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "conflict"})
		return
	}

	logger.WithContext(c.Request.Context()).Error(message, "error", err)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": message})
}

func (h *Handlers) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "validation_error"})
}
