package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"tourbook/internal/auth"
	"tourbook/internal/cache"
	apperrors "tourbook/internal/errors"
	"tourbook/internal/logger"
	"tourbook/internal/models"
	"tourbook/internal/repository"

	"github.com/google/uuid"
)

type TourService struct {
	*base
}

func (s *TourService) Create(ctx context.Context, req models.CreateTourRequest) (*models.Tour, error) {
	admin, err := auth.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	tour := &models.Tour{
		ID:              uuid.New().String(),
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		Price:           req.Price,
		StartDate:       req.StartDate.UTC(),
		Capacity:        req.Capacity,
		CoverImageID:    trimmed(req.CoverImageID),
		GalleryImageIDs: nonEmpty(req.GalleryImageIDs),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := validateTour(tour); err != nil {
		return nil, err
	}
	if !tour.StartDate.After(now) {
		return nil, apperrors.Validation("start date must be in the future")
	}

	if err := s.store.CreateTour(ctx, tour); err != nil {
		return nil, fmt.Errorf("failed to create tour: %w", err)
	}

	s.publishTour(ctx, models.EventTourCreated, tour, admin.UserID, nil)
	s.invalidateTours(ctx)
	return tour, nil
}

// Update edits catalog fields. Booked count never changes here and
// existing booking snapshots keep the old title, date and price.
func (s *TourService) Update(ctx context.Context, tourID string, req models.UpdateTourRequest) (*models.Tour, error) {
	admin, err := auth.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var (
		tour    *models.Tour
		dropped []string
	)

	err = s.store.WithTx(ctx, func(q repository.Queries) error {
		t, err := q.LockTour(ctx, tourID)
		if err != nil {
			return tourErr(err)
		}
		if t.Cancelled {
			return apperrors.ErrTourCancelled
		}
		before := t.ImageIDs()

		if req.Title != nil {
			t.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			t.Description = *req.Description
		}
		if req.Price != nil {
			t.Price = *req.Price
		}
		if req.StartDate != nil {
			if !req.StartDate.After(now) {
				return apperrors.Validation("start date must be in the future")
			}
			t.StartDate = req.StartDate.UTC()
		}
		if req.Capacity != nil {
			if *req.Capacity < t.BookedCount {
				return apperrors.Validation("capacity %d is below the %d seats already booked", *req.Capacity, t.BookedCount)
			}
			t.Capacity = *req.Capacity
		}
		if req.CoverImageID != nil {
			t.CoverImageID = trimmed(req.CoverImageID)
		}
		if req.GalleryImageIDs != nil {
			t.GalleryImageIDs = nonEmpty(req.GalleryImageIDs)
		}
		if err := validateTour(t); err != nil {
			return err
		}

		t.UpdatedAt = now
		if err := q.UpdateTour(ctx, t); err != nil {
			return fmt.Errorf("failed to update tour: %w", err)
		}
		tour = t
		dropped = difference(before, t.ImageIDs())
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.images != nil && len(dropped) > 0 {
		if err := s.images.Release(ctx, dropped); err != nil {
			logger.WithContext(ctx).Error("Failed to release replaced images",
				"error", err,
				"tour_id", tourID)
		}
	}

	s.publishTour(ctx, models.EventTourUpdated, tour, admin.UserID, dropped)
	s.invalidateTours(ctx)
	return tour, nil
}

func (s *TourService) Get(ctx context.Context, tourID string) (*models.TourResponse, error) {
	tour, err := s.store.GetTour(ctx, tourID)
	if err != nil {
		return nil, tourErr(err)
	}
	resp := s.present(tour)
	return &resp, nil
}

// List returns the whole catalog including cancelled and completed tours
func (s *TourService) List(ctx context.Context) ([]models.TourResponse, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	tours, err := s.store.ListTours(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tours: %w", err)
	}
	return s.presentAll(tours), nil
}

// ListUpcoming is the public catalog, served from cache when available
func (s *TourService) ListUpcoming(ctx context.Context) ([]models.TourResponse, error) {
	if s.cache != nil {
		raw, err := s.cache.GetUpcomingTours(ctx)
		if err == nil {
			var cached []models.TourResponse
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			logger.WithContext(ctx).Warn("Tour cache read failed", "error", err)
		}
	}

	tours, err := s.store.ListUpcomingTours(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming tours: %w", err)
	}
	result := s.presentAll(tours)

	if s.cache != nil {
		s.cache.SetUpcomingTours(ctx, result)
	}
	return result, nil
}

// Analytics summarizes confirmed sales of one tour
func (s *TourService) Analytics(ctx context.Context, tourID string) (*models.AnalyticsResponse, error) {
	if _, err := auth.RequireAdmin(ctx); err != nil {
		return nil, err
	}

	tour, err := s.store.GetTour(ctx, tourID)
	if err != nil {
		return nil, tourErr(err)
	}
	confirmed, err := s.store.ListBookings(ctx, repository.BookingFilter{TourID: tourID, Status: models.StatusConfirmed})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	resp := &models.AnalyticsResponse{
		TourID:            tour.ID,
		Capacity:          tour.Capacity,
		BookedCount:       tour.BookedCount,
		ConfirmedBookings: len(confirmed),
	}
	for i := range confirmed {
		resp.SeatsSold += confirmed[i].TicketCount
		resp.Revenue += confirmed[i].TotalAmount()
	}
	if tour.Capacity > 0 {
		resp.OccupancyPercent = math.Round(float64(tour.BookedCount)/float64(tour.Capacity)*10000) / 100
	}
	return resp, nil
}

func (s *TourService) present(t *models.Tour) models.TourResponse {
	resp := models.TourResponse{
		Tour:          *t,
		Available:     t.Available(),
		CoverImageURL: s.displayURL(t.CoverImageID),
	}
	if s.images != nil {
		for _, id := range t.GalleryImageIDs {
			resp.GalleryImageURLs = append(resp.GalleryImageURLs, s.images.DisplayURL(id))
		}
	}
	return resp
}

func (s *TourService) presentAll(tours []models.Tour) []models.TourResponse {
	result := make([]models.TourResponse, len(tours))
	for i := range tours {
		result[i] = s.present(&tours[i])
	}
	return result
}

func validateTour(t *models.Tour) error {
	switch {
	case t.Title == "":
		return apperrors.Validation("title is required")
	case t.Capacity < 1:
		return apperrors.Validation("capacity must be at least 1")
	case t.Price < 0:
		return apperrors.Validation("price must not be negative")
	}
	return nil
}

func nonEmpty(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// difference returns the ids in a that are missing from b
func difference(a, b []string) []string {
	keep := make(map[string]struct{}, len(b))
	for _, id := range b {
		keep[id] = struct{}{}
	}
	var out []string
	for _, id := range a {
		if _, ok := keep[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
