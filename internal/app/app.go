package app

import (
	"context"
	"fmt"
	"log/slog"

	"tourbook/internal/cache"
	"tourbook/internal/config"
	"tourbook/internal/database"
	"tourbook/internal/external"
	"tourbook/internal/messaging"
	"tourbook/internal/metrics"
	"tourbook/internal/repository"
	"tourbook/internal/search"
	"tourbook/internal/service"
	"tourbook/internal/storage"
)

// App holds the connections shared by the api and consumers processes
type App struct {
	Config   *config.Config
	DB       *database.DB
	Store    repository.Store
	NATS     *messaging.NATSClient
	Redis    *cache.RedisClient
	Search   *search.ElasticsearchClient
	Storage  *storage.Client
	Payments *external.PaymentClient
	Metrics  *metrics.Metrics
	Services *service.Services
}

// New connects the storage backend and the optional integrations.
// NATS, Redis and Elasticsearch degrade to disabled when unreachable.
func New(cfg *config.Config) (*App, error) {
	a := &App{
		Config:  cfg,
		Storage: storage.NewClient(cfg.Storage),
		Metrics: metrics.New(),
	}

	switch cfg.StorageDriver {
	case "memory":
		slog.Warn("Using in-memory store; data is lost on restart")
		a.Store = repository.NewMemoryStore()
	case "postgres":
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		db.ValidateConnectionPool()
		a.DB = db
		a.Store = repository.NewPostgresStore(db)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	if cfg.NATS.Enabled {
		nc, err := messaging.NewNATSClient(cfg.NATS)
		if err != nil {
			slog.Warn("NATS unavailable, events will not be published", "error", err)
		} else {
			a.NATS = nc
		}
	}

	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			slog.Warn("Redis unavailable, running without cache", "error", err)
		} else {
			a.Redis = rc
		}
	}

	esCfg := config.LoadElasticsearchConfig()
	if esCfg.Enabled {
		es, err := search.NewElasticsearchClient(esCfg)
		if err != nil {
			slog.Warn("Elasticsearch unavailable, audit trail disabled", "error", err)
		} else {
			a.Search = es
		}
	}

	if cfg.Payment.TeamSlug != "" {
		a.Payments = external.NewPaymentClient(cfg.Payment)
	}

	a.Services = service.NewServices(a.deps(), service.Options{
		HoldDuration:         cfg.Booking.HoldDuration,
		AllowConfirmedCancel: cfg.Booking.AllowConfirmedCancel,
	})

	return a, nil
}

// deps keeps absent integrations as untyped nil interfaces
func (a *App) deps() service.Deps {
	d := service.Deps{
		Store:   a.Store,
		Images:  a.Storage,
		Metrics: a.Metrics,
	}
	if a.NATS != nil {
		d.Publisher = a.NATS
	}
	if a.Redis != nil {
		d.Cache = a.Redis
	}
	if a.Search != nil {
		d.Audit = a.Search
	}
	if a.Payments != nil {
		d.Payments = a.Payments
	}
	return d
}

// Health reports per-dependency status
func (a *App) Health(ctx context.Context) (map[string]string, bool) {
	status := map[string]string{"store": "ok"}
	healthy := true

	if a.DB != nil {
		hc := a.DB.HealthCheck(ctx)
		if hc.Status != "healthy" {
			status["store"] = hc.Error
			healthy = false
		}
	}
	if a.Search != nil {
		if err := a.Search.HealthCheck(ctx); err != nil {
			status["elasticsearch"] = err.Error()
		} else {
			status["elasticsearch"] = "ok"
		}
	}
	status["nats"] = enabled(a.NATS != nil)
	status["redis"] = enabled(a.Redis != nil)
	return status, healthy
}

func enabled(ok bool) string {
	if ok {
		return "ok"
	}
	return "disabled"
}

// Close releases connections in reverse order of creation
func (a *App) Close() error {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			slog.Error("Error closing Redis connection", "error", err)
		}
	}
	if a.NATS != nil {
		if err := a.NATS.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}
	return nil
}
