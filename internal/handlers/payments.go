package handlers

import (
	"net/http"

	"tourbook/internal/logger"
	"tourbook/internal/models"

	"github.com/gin-gonic/gin"
)

// OnPaymentUpdates - POST /api/payments/notifications
// Принимать уведомления от платежного шлюза
func (h *Handlers) OnPaymentUpdates(c *gin.Context) {
	var notification models.PaymentNotificationPayload
	if err := c.ShouldBindJSON(&notification); err != nil {
		h.badRequest(c, err)
		return
	}

	if err := h.services.Checkout.HandleNotification(c.Request.Context(), notification); err != nil {
		logger.WithContext(c.Request.Context()).Warn("Payment notification not applied",
			"error", err,
			"payment_id", notification.PaymentID,
			"status", notification.Status)
		h.fail(c, err, "Failed to handle notification")
		return
	}

	c.Status(http.StatusOK)
}
