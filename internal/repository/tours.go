package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "tourbook/internal/errors"
	"tourbook/internal/models"

	"github.com/lib/pq"
)

type TourRepository struct {
	db dbtx
}

func NewTourRepository(db dbtx) *TourRepository {
	return &TourRepository{db: db}
}

const tourColumns = `id, title, description, price, start_date, capacity, booked_count,
	cover_image_id, gallery_image_ids, cancelled, is_completed, created_at, updated_at`

func scanTour(row rowScanner) (*models.Tour, error) {
	var t models.Tour
	var gallery pq.StringArray
	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Price,
		&t.StartDate,
		&t.Capacity,
		&t.BookedCount,
		&t.CoverImageID,
		&gallery,
		&t.Cancelled,
		&t.IsCompleted,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.GalleryImageIDs = []string(gallery)
	return &t, nil
}

func (r *TourRepository) CreateTour(ctx context.Context, tour *models.Tour) error {
	query := `
		INSERT INTO tours (id, title, description, price, start_date, capacity, booked_count,
		                   cover_image_id, gallery_image_ids, cancelled, is_completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.ExecContext(ctx, query,
		tour.ID,
		tour.Title,
		tour.Description,
		tour.Price,
		tour.StartDate,
		tour.Capacity,
		tour.BookedCount,
		tour.CoverImageID,
		pq.Array(nonNilStrings(tour.GalleryImageIDs)),
		tour.Cancelled,
		tour.IsCompleted,
		tour.CreatedAt,
		tour.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tour: %w", err)
	}
	return nil
}

func (r *TourRepository) GetTour(ctx context.Context, id string) (*models.Tour, error) {
	query := `SELECT ` + tourColumns + ` FROM tours WHERE id = $1`
	t, err := scanTour(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

func (r *TourRepository) LockTour(ctx context.Context, id string) (*models.Tour, error) {
	query := `SELECT ` + tourColumns + ` FROM tours WHERE id = $1 FOR UPDATE`
	t, err := scanTour(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

func (r *TourRepository) UpdateTour(ctx context.Context, tour *models.Tour) error {
	query := `
		UPDATE tours
		SET title = $2, description = $3, price = $4, start_date = $5, capacity = $6,
		    cover_image_id = $7, gallery_image_ids = $8, cancelled = $9, is_completed = $10,
		    updated_at = $11
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		tour.ID,
		tour.Title,
		tour.Description,
		tour.Price,
		tour.StartDate,
		tour.Capacity,
		tour.CoverImageID,
		pq.Array(nonNilStrings(tour.GalleryImageIDs)),
		tour.Cancelled,
		tour.IsCompleted,
		tour.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update tour: %w", err)
	}
	return requireAffected(res)
}

func (r *TourRepository) DeleteTour(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tours WHERE id = $1`, id)
	if err != nil {
		return notFound(err)
	}
	return requireAffected(res)
}

func (r *TourRepository) ListTours(ctx context.Context) ([]models.Tour, error) {
	query := `SELECT ` + tourColumns + ` FROM tours ORDER BY start_date DESC`
	return r.queryTours(ctx, query)
}

func (r *TourRepository) ListUpcomingTours(ctx context.Context, now time.Time) ([]models.Tour, error) {
	query := `
		SELECT ` + tourColumns + `
		FROM tours
		WHERE cancelled = FALSE AND is_completed = FALSE AND start_date > $1
		ORDER BY start_date ASC`
	return r.queryTours(ctx, query, now)
}

func (r *TourRepository) queryTours(ctx context.Context, query string, args ...interface{}) ([]models.Tour, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tours: %w", err)
	}
	defer rows.Close()

	tours := []models.Tour{}
	for rows.Next() {
		t, err := scanTour(rows)
		if err != nil {
			return nil, err
		}
		tours = append(tours, *t)
	}

	return tours, rows.Err()
}

func (r *TourRepository) MarkToursCompleted(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE tours
		SET is_completed = TRUE, updated_at = $1
		WHERE is_completed = FALSE AND start_date <= $1`

	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to mark tours completed: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *TourRepository) DebitSeats(ctx context.Context, tourID string, n int) (int, error) {
	query := `
		UPDATE tours
		SET booked_count = booked_count + $2
		WHERE id = $1 AND booked_count + $2 <= capacity
		RETURNING booked_count`

	var booked int
	err := r.db.QueryRowContext(ctx, query, tourID, n).Scan(&booked)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := r.GetTour(ctx, tourID); err != nil {
			return 0, err
		}
		return 0, apperrors.ErrCapacityExceeded
	}
	if err != nil {
		return 0, notFound(err)
	}
	return booked, nil
}

func (r *TourRepository) CreditSeats(ctx context.Context, tourID string, n int) (int, error) {
	query := `
		UPDATE tours
		SET booked_count = GREATEST(booked_count - $2, 0)
		WHERE id = $1
		RETURNING booked_count`

	var booked int
	if err := r.db.QueryRowContext(ctx, query, tourID, n).Scan(&booked); err != nil {
		return 0, notFound(err)
	}
	return booked, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
