package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tourbook/internal/models"

	"github.com/lib/pq"
)

type BookingRepository struct {
	db dbtx
}

func NewBookingRepository(db dbtx) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, tour_id, user_id, ticket_count, tour_title, tour_date, tour_price,
	user_name, user_email, status, payment_method, payment_status, payment_id, expires_at,
	proof_image_id, refund_details, contact_number, admin_refund_proof_id, redeemed_tickets,
	created_at, updated_at`

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var redeemed pq.Int64Array
	err := row.Scan(
		&b.ID,
		&b.TourID,
		&b.UserID,
		&b.TicketCount,
		&b.TourTitle,
		&b.TourDate,
		&b.TourPrice,
		&b.UserName,
		&b.UserEmail,
		&b.Status,
		&b.PaymentMethod,
		&b.PaymentStatus,
		&b.PaymentID,
		&b.ExpiresAt,
		&b.ProofImageID,
		&b.RefundDetails,
		&b.ContactNumber,
		&b.AdminRefundProofID,
		&redeemed,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.RedeemedTickets = make([]int, len(redeemed))
	for i, n := range redeemed {
		b.RedeemedTickets[i] = int(n)
	}
	return &b, nil
}

func redeemedArray(tickets []int) pq.Int64Array {
	arr := make(pq.Int64Array, len(tickets))
	for i, n := range tickets {
		arr[i] = int64(n)
	}
	return arr
}

func (r *BookingRepository) CreateBooking(ctx context.Context, b *models.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

	_, err := r.db.ExecContext(ctx, query,
		b.ID,
		b.TourID,
		b.UserID,
		b.TicketCount,
		b.TourTitle,
		b.TourDate,
		b.TourPrice,
		b.UserName,
		b.UserEmail,
		b.Status,
		b.PaymentMethod,
		b.PaymentStatus,
		b.PaymentID,
		b.ExpiresAt,
		b.ProofImageID,
		b.RefundDetails,
		b.ContactNumber,
		b.AdminRefundProofID,
		redeemedArray(b.RedeemedTickets),
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func (r *BookingRepository) LockBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	b, err := scanBooking(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

// GetBookingByPaymentID retrieves a booking by checkout session id
func (r *BookingRepository) GetBookingByPaymentID(ctx context.Context, paymentID string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE payment_id = $1`
	b, err := scanBooking(r.db.QueryRowContext(ctx, query, paymentID))
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

// UpdateBooking writes the mutable lifecycle columns; ids, ticket count and snapshots never change
func (r *BookingRepository) UpdateBooking(ctx context.Context, b *models.Booking) error {
	query := `
		UPDATE bookings
		SET status = $2, payment_method = $3, payment_status = $4, payment_id = $5,
		    expires_at = $6, proof_image_id = $7, refund_details = $8, contact_number = $9,
		    admin_refund_proof_id = $10, redeemed_tickets = $11, updated_at = $12
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		b.ID,
		b.Status,
		b.PaymentMethod,
		b.PaymentStatus,
		b.PaymentID,
		b.ExpiresAt,
		b.ProofImageID,
		b.RefundDetails,
		b.ContactNumber,
		b.AdminRefundProofID,
		redeemedArray(b.RedeemedTickets),
		b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	return requireAffected(res)
}

func (r *BookingRepository) FindActiveHold(ctx context.Context, tourID, userID string, now time.Time) (*models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE tour_id = $1 AND user_id = $2 AND status = 'holding' AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1`

	b, err := scanBooking(r.db.QueryRowContext(ctx, query, tourID, userID, now))
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func (r *BookingRepository) ListBookings(ctx context.Context, filter BookingFilter) ([]models.Booking, error) {
	var where []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if filter.TourID != "" {
		add("tour_id = $%d", filter.TourID)
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.PaymentStatus != "" {
		add("payment_status = $%d", filter.PaymentStatus)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	return r.queryBookings(ctx, query, args...)
}

// ListExpiredHolds retrieves holds whose deadline has passed, oldest first
func (r *BookingRepository) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'holding' AND expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $2`

	return r.queryBookings(ctx, query, now, limit)
}

func (r *BookingRepository) queryBookings(ctx context.Context, query string, args ...interface{}) ([]models.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	bookings := []models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}

	return bookings, rows.Err()
}

func (r *BookingRepository) CountBookingsByStatus(ctx context.Context, tourID string) (map[models.BookingStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM bookings WHERE tour_id = $1 GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query, tourID)
	if err != nil {
		return nil, notFound(err)
	}
	defer rows.Close()

	counts := make(map[models.BookingStatus]int)
	for rows.Next() {
		var status models.BookingStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}

	return counts, rows.Err()
}
