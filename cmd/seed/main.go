package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"tourbook/internal/app"
	"tourbook/internal/auth"
	"tourbook/internal/config"
	"tourbook/internal/logger"
	"tourbook/internal/models"

	"github.com/google/uuid"
)

var (
	tourCount = flag.Int("tours", 5, "Number of demo tours to create")
	dryRun    = flag.Bool("dry-run", false, "Show what would be created without making changes")
	tokenOnly = flag.Bool("token-only", false, "Only print an admin token")
)

var titles = []string{
	"Old Town Walking Tour",
	"Canal Cruise at Sunset",
	"Mountain Lakes Day Trip",
	"Street Food Evening",
	"Museum Quarter Highlights",
	"Vineyard Tasting Ride",
	"Castle and Gardens",
	"Night Photography Walk",
}

// TourSeeder fills a fresh environment with bookable tours
type TourSeeder struct {
	app   *app.App
	admin auth.Identity
	rng   *rand.Rand
}

func main() {
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	admin := auth.Identity{
		UserID: "admin-" + uuid.NewString()[:8],
		Role:   models.RoleAdmin,
		Email:  "admin@tourbook.local",
		Name:   "Seed Admin",
	}

	token, err := auth.NewToken(cfg.Auth.JWTSecret, admin, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Fatal("Failed to sign admin token", "error", err)
	}
	fmt.Println(token)

	if *tokenOnly {
		return
	}

	a, err := app.New(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize application", "error", err)
	}
	defer a.Close()

	seeder := &TourSeeder{
		app:   a,
		admin: admin,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := seeder.Seed(context.Background(), *tourCount); err != nil {
		slog.Error("Failed to seed tours", "error", err)
		os.Exit(1)
	}

	slog.Info("Seeding completed successfully!")
}

// Seed syncs the admin account and creates count tours spread over the next weeks
func (s *TourSeeder) Seed(ctx context.Context, count int) error {
	ctx = auth.ContextWithIdentity(ctx, s.admin)

	if *dryRun {
		for i := 0; i < count; i++ {
			req := s.tour(i)
			slog.Info("[DRY RUN] Would create tour",
				"title", req.Title,
				"capacity", req.Capacity,
				"price", req.Price,
				"start_date", req.StartDate)
		}
		return nil
	}

	if _, err := s.app.Services.Users.Sync(ctx); err != nil {
		return fmt.Errorf("failed to sync admin user: %w", err)
	}

	for i := 0; i < count; i++ {
		tour, err := s.app.Services.Tours.Create(ctx, s.tour(i))
		if err != nil {
			return fmt.Errorf("failed to create tour %d: %w", i+1, err)
		}
		slog.Info("Created tour", "tour_id", tour.ID, "title", tour.Title, "capacity", tour.Capacity)
	}

	return nil
}

func (s *TourSeeder) tour(i int) models.CreateTourRequest {
	days := 3 + i*4 + s.rng.Intn(3)
	start := time.Now().UTC().Truncate(time.Hour).Add(time.Duration(days) * 24 * time.Hour)

	return models.CreateTourRequest{
		Title:       titles[i%len(titles)],
		Description: "Guided group tour with a local host.",
		Price:       int64(1500 + s.rng.Intn(20)*250),
		StartDate:   start,
		Capacity:    10 + s.rng.Intn(31),
	}
}
