package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"tourbook/internal/app"
	"tourbook/internal/config"
	"tourbook/internal/handlers"
	"tourbook/internal/metrics"
	"tourbook/internal/middleware"
	"tourbook/internal/service"

	"github.com/gin-gonic/gin"
)

// Server представляет HTTP сервер API
type Server struct {
	router *gin.Engine
	config *config.Config
	app    *app.App
	http   *http.Server
}

// RouterConfig - зависимости роутера; Health может быть nil
type RouterConfig struct {
	Services       *service.Services
	Metrics        *metrics.Metrics
	JWTSecret      string
	RequestTimeout time.Duration
	Health         func(ctx context.Context) (map[string]string, bool)
}

// NewServer создает новый экземпляр сервера
func NewServer(cfg *config.Config) (*Server, error) {
	gin.SetMode(cfg.GinMode)

	a, err := app.New(cfg)
	if err != nil {
		return nil, err
	}

	router := NewRouter(RouterConfig{
		Services:       a.Services,
		Metrics:        a.Metrics,
		JWTSecret:      cfg.Auth.JWTSecret,
		RequestTimeout: cfg.RequestTimeout,
		Health:         a.Health,
	})

	return &Server{
		router: router,
		config: cfg,
		app:    a,
		http: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// NewRouter собирает middleware и все маршруты API
func NewRouter(rc RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics(rc.Metrics))
	router.Use(middleware.Timeout(rc.RequestTimeout))

	h := handlers.NewHandlers(rc.Services)

	router.GET("/health", healthCheck(rc.Health))
	if rc.Metrics != nil {
		router.GET("/metrics", gin.WrapH(rc.Metrics.Handler()))
	}

	api := router.Group("/api")
	api.Use(middleware.Authenticate(rc.JWTSecret))
	{
		// Публичные маршруты
		api.GET("/tours", h.ListTours)
		api.GET("/tours/:id", h.GetTour)

		// Webhook платежного шлюза подписан токеном, а не JWT
		api.POST("/payments/notifications", h.OnPaymentUpdates)

		user := api.Group("")
		user.Use(middleware.RequireUser())
		{
			user.POST("/users/sync", h.SyncUser)
			user.GET("/users/me", h.CurrentUser)

			user.POST("/tours/:id/reservations", h.Reserve)
			user.GET("/tours/:id/reservations/active", h.ActiveHold)

			user.GET("/bookings", h.ListBookings)
			user.PATCH("/bookings/:id/confirm", h.ConfirmBooking)
			user.PATCH("/bookings/:id/cancel", h.CancelBooking)
			user.POST("/bookings/:id/checkout", h.Checkout)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.RequireAdmin())
		{
			admin.POST("/tours", h.CreateTour)
			admin.GET("/tours", h.AdminListTours)
			admin.PATCH("/tours/:id", h.UpdateTour)
			admin.PATCH("/tours/:id/cancel", h.CancelTour)
			admin.DELETE("/tours/:id", h.DeleteTour)
			admin.GET("/tours/:id/analytics", h.TourAnalytics)
			admin.GET("/tours/:id/bookings", h.TourBookings)

			admin.GET("/bookings", h.AdminListBookings)
			admin.GET("/bookings/:id", h.AdminGetBooking)
			admin.GET("/bookings/:id/audit", h.BookingAudit)
			admin.PATCH("/bookings/:id/verify", h.VerifyPayment)
			admin.PATCH("/bookings/:id/refund", h.RefundBooking)

			admin.POST("/tickets/validate", h.ValidateTicket)
		}
	}

	return router
}

// healthCheck обрабатывает health check запросы
func healthCheck(check func(ctx context.Context) (map[string]string, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"status":  "ok",
			"service": "tourbook-api",
		}
		if check == nil {
			c.JSON(http.StatusOK, body)
			return
		}

		deps, healthy := check(c.Request.Context())
		body["dependencies"] = deps
		if !healthy {
			body["status"] = "degraded"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		c.JSON(http.StatusOK, body)
	}
}

// Run запускает HTTP сервер и блокируется до отмены ctx
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "port", s.config.Port)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// GetRouter возвращает роутер для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Cleanup закрывает соединения
func (s *Server) Cleanup() error {
	return s.app.Close()
}
