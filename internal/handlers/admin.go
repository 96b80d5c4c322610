package handlers

import (
	"net/http"

	"tourbook/internal/models"

	"github.com/gin-gonic/gin"
)

// AdminListBookings - GET /api/admin/bookings?payment_status=reviewing
func (h *Handlers) AdminListBookings(c *gin.Context) {
	bookings, err := h.services.Bookings.ListAll(c.Request.Context(), c.Query("payment_status"))
	if err != nil {
		h.fail(c, err, "Failed to list bookings")
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// AdminGetBooking - GET /api/admin/bookings/:id
// Бронирование со ссылками на чек и подтверждение возврата
func (h *Handlers) AdminGetBooking(c *gin.Context) {
	booking, err := h.services.Bookings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "Failed to get booking")
		return
	}
	c.JSON(http.StatusOK, booking)
}

// BookingAudit - GET /api/admin/bookings/:id/audit
func (h *Handlers) BookingAudit(c *gin.Context) {
	entries, err := h.services.Bookings.AuditTrail(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "Failed to load booking history")
		return
	}
	c.JSON(http.StatusOK, entries)
}

// VerifyPayment - PATCH /api/admin/bookings/:id/verify
// Подтвердить или отклонить оплату
func (h *Handlers) VerifyPayment(c *gin.Context) {
	var req models.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	booking, err := h.services.Admin.VerifyPayment(c.Request.Context(), c.Param("id"), req.Approve())
	if err != nil {
		h.fail(c, err, "Failed to verify payment")
		return
	}
	c.JSON(http.StatusOK, booking)
}

// RefundBooking - PATCH /api/admin/bookings/:id/refund
func (h *Handlers) RefundBooking(c *gin.Context) {
	var req models.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	booking, err := h.services.Admin.ProcessRefund(c.Request.Context(), c.Param("id"), req.ProofImageID)
	if err != nil {
		h.fail(c, err, "Failed to process refund")
		return
	}
	c.JSON(http.StatusOK, booking)
}

// ValidateTicket - POST /api/admin/tickets/validate
// Проверка билета на входе: по коду или по паре booking_id + ticket_number
func (h *Handlers) ValidateTicket(c *gin.Context) {
	var req models.ValidateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	var (
		res *models.TicketValidationResponse
		err error
	)
	if req.Code != "" {
		res, err = h.services.Admin.ValidateTicketCode(c.Request.Context(), req.Code)
	} else {
		res, err = h.services.Admin.ValidateTicket(c.Request.Context(), req.BookingID, req.TicketNumber)
	}
	if err != nil {
		h.fail(c, err, "Failed to validate ticket")
		return
	}
	c.JSON(http.StatusOK, res)
}
