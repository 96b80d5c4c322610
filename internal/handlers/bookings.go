package handlers

import (
	"net/http"

	"tourbook/internal/models"

	"github.com/gin-gonic/gin"
)

// Reserve - POST /api/tours/:id/reservations
// Зарезервировать места; повторный запрос возвращает действующий холд
func (h *Handlers) Reserve(c *gin.Context) {
	var req models.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	res, err := h.services.Reservations.Reserve(c.Request.Context(), c.Param("id"), req.TicketCount)
	if err != nil {
		h.fail(c, err, "Failed to reserve seats")
		return
	}

	status := http.StatusCreated
	if res.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, res)
}

// ActiveHold - GET /api/tours/:id/reservations/active
func (h *Handlers) ActiveHold(c *gin.Context) {
	hold, err := h.services.Reservations.ActiveHold(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "Failed to get reservation")
		return
	}
	c.JSON(http.StatusOK, hold)
}

// ListBookings - GET /api/bookings
// Бронирования текущего пользователя
func (h *Handlers) ListBookings(c *gin.Context) {
	bookings, err := h.services.Bookings.ListMine(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to list bookings")
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// ConfirmBooking - PATCH /api/bookings/:id/confirm
// Передать данные об оплате по холду
func (h *Handlers) ConfirmBooking(c *gin.Context) {
	var req models.ConfirmBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	booking, err := h.services.Reservations.Confirm(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.fail(c, err, "Failed to confirm booking")
		return
	}
	c.JSON(http.StatusOK, booking)
}

// CancelBooking - PATCH /api/bookings/:id/cancel
// Отменить бронирование
func (h *Handlers) CancelBooking(c *gin.Context) {
	booking, err := h.services.Bookings.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "Failed to cancel booking")
		return
	}
	c.JSON(http.StatusOK, booking)
}

// Checkout - POST /api/bookings/:id/checkout
// Открыть платежную сессию для оплаты картой
func (h *Handlers) Checkout(c *gin.Context) {
	res, err := h.services.Checkout.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "Failed to start checkout")
		return
	}
	c.JSON(http.StatusOK, res)
}

// SyncUser - POST /api/users/sync
func (h *Handlers) SyncUser(c *gin.Context) {
	user, err := h.services.Users.Sync(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to sync user")
		return
	}
	c.JSON(http.StatusOK, user)
}

// CurrentUser - GET /api/users/me
func (h *Handlers) CurrentUser(c *gin.Context) {
	user, err := h.services.Users.Current(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to get user")
		return
	}
	c.JSON(http.StatusOK, user)
}
