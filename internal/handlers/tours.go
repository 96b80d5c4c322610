package handlers

import (
	"net/http"

	"tourbook/internal/models"

	"github.com/gin-gonic/gin"
)

// ListTours - GET /api/tours
// Предстоящие туры для витрины
func (h *Handlers) ListTours(c *gin.Context) {
	tours, err := h.services.Tours.ListUpcoming(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to list tours")
		return
	}
	c.JSON(http.StatusOK, tours)
}

// GetTour - GET /api/tours/:id
func (h *Handlers) GetTour(c *gin.Context) {
	tour, err := h.services.Tours.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "Failed to get tour")
		return
	}
	c.JSON(http.StatusOK, tour)
}

// CreateTour - POST /api/admin/tours
// Создать тур
func (h *Handlers) CreateTour(c *gin.Context) {
	var req models.CreateTourRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	tour, err := h.services.Tours.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, "Failed to create tour")
		return
	}
	c.JSON(http.StatusCreated, tour)
}

// AdminListTours - GET /api/admin/tours
// Все туры, включая отмененные и завершенные
func (h *Handlers) AdminListTours(c *gin.Context) {
	tours, err := h.services.Tours.List(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to list tours")
		return
	}
	c.JSON(http.StatusOK, tours)
}

// UpdateTour - PATCH /api/admin/tours/:id
func (h *Handlers) UpdateTour(c *gin.Context) {
	var req models.UpdateTourRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	tour, err := h.services.Tours.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.fail(c, err, "Failed to update tour")
		return
	}
	c.JSON(http.StatusOK, tour)
}

// CancelTour - PATCH /api/admin/tours/:id/cancel
// Отменить тур; активные холды освобождаются
func (h *Handlers) CancelTour(c *gin.Context) {
	tour, err := h.services.Admin.CancelTour(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "Failed to cancel tour")
		return
	}
	c.JSON(http.StatusOK, tour)
}

// DeleteTour - DELETE /api/admin/tours/:id
func (h *Handlers) DeleteTour(c *gin.Context) {
	if err := h.services.Admin.DeleteTour(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, "Failed to delete tour")
		return
	}
	c.Status(http.StatusNoContent)
}

// TourAnalytics - GET /api/admin/tours/:id/analytics
func (h *Handlers) TourAnalytics(c *gin.Context) {
	analytics, err := h.services.Tours.Analytics(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "Failed to load analytics")
		return
	}
	c.JSON(http.StatusOK, analytics)
}

// TourBookings - GET /api/admin/tours/:id/bookings
func (h *Handlers) TourBookings(c *gin.Context) {
	bookings, err := h.services.Bookings.ListByTour(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "Failed to list bookings")
		return
	}
	c.JSON(http.StatusOK, bookings)
}
