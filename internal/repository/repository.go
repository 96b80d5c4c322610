package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tourbook/internal/database"
	"tourbook/internal/models"

	"github.com/lib/pq"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// BookingFilter narrows ListBookings; zero fields do not filter
type BookingFilter struct {
	TourID        string
	UserID        string
	Status        models.BookingStatus
	PaymentStatus models.PaymentStatus
}

// Queries is the set of reads and writes the services run, inside or outside a transaction
type Queries interface {
	CreateTour(ctx context.Context, tour *models.Tour) error
	GetTour(ctx context.Context, id string) (*models.Tour, error)
	// LockTour reads the tour and holds its row lock until the transaction ends
	LockTour(ctx context.Context, id string) (*models.Tour, error)
	// UpdateTour writes every column except booked_count, which only DebitSeats and CreditSeats touch
	UpdateTour(ctx context.Context, tour *models.Tour) error
	DeleteTour(ctx context.Context, id string) error
	ListTours(ctx context.Context) ([]models.Tour, error)
	ListUpcomingTours(ctx context.Context, now time.Time) ([]models.Tour, error)
	MarkToursCompleted(ctx context.Context, now time.Time) (int, error)
	// DebitSeats adds n to booked_count if it fits, returning the new count or ErrCapacityExceeded
	DebitSeats(ctx context.Context, tourID string, n int) (int, error)
	// CreditSeats subtracts n from booked_count, flooring at zero
	CreditSeats(ctx context.Context, tourID string, n int) (int, error)

	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	LockBooking(ctx context.Context, id string) (*models.Booking, error)
	GetBookingByPaymentID(ctx context.Context, paymentID string) (*models.Booking, error)
	UpdateBooking(ctx context.Context, booking *models.Booking) error
	FindActiveHold(ctx context.Context, tourID, userID string, now time.Time) (*models.Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]models.Booking, error)
	// ListExpiredHolds returns holding bookings whose expiresAt is strictly before now
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.Booking, error)
	CountBookingsByStatus(ctx context.Context, tourID string) (map[models.BookingStatus]int, error)

	UpsertUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Store is the single source of truth for tours, bookings and users
type Store interface {
	Queries
	// WithTx runs fn atomically; any error rolls back every write fn made
	WithTx(ctx context.Context, fn func(q Queries) error) error
	Close() error
}

// dbtx is satisfied by both *sql.DB and *sql.Tx
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Repositories struct {
	Tours    *TourRepository
	Bookings *BookingRepository
	Users    *UserRepository
}

func newRepositories(db dbtx) *Repositories {
	return &Repositories{
		Tours:    NewTourRepository(db),
		Bookings: NewBookingRepository(db),
		Users:    NewUserRepository(db),
	}
}

// postgresQueries satisfies Queries by composing the per-entity repositories
type postgresQueries struct {
	*TourRepository
	*BookingRepository
	*UserRepository
}

func newPostgresQueries(db dbtx) postgresQueries {
	r := newRepositories(db)
	return postgresQueries{r.Tours, r.Bookings, r.Users}
}

// PostgresStore is the production Store backed by lib/pq
type PostgresStore struct {
	postgresQueries
	db *database.DB
}

func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{
		postgresQueries: newPostgresQueries(db.DB),
		db:              db,
	}
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(q Queries) error) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(newPostgresQueries(tx))
	})
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// notFound maps missing rows and malformed UUID keys to ErrNotFound
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "22P02" {
		return ErrNotFound
	}
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
