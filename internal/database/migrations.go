package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createUsersTable,
		createToursTable,
		createBookingsTable,
		createToursUpcomingIndex,
		createBookingsTourIndex,
		createBookingsUserIndex,
		createBookingsHoldIndex,
		createBookingsPaymentIndex,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
    id VARCHAR(255) PRIMARY KEY,
    email VARCHAR(255) NOT NULL DEFAULT '',
    name VARCHAR(255) NOT NULL DEFAULT '',
    role VARCHAR(20) NOT NULL DEFAULT 'customer',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (role IN ('admin', 'customer'))
);`

const createToursTable = `
CREATE TABLE IF NOT EXISTS tours (
    id UUID PRIMARY KEY,
    title VARCHAR(500) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    price BIGINT NOT NULL DEFAULT 0,
    start_date TIMESTAMPTZ NOT NULL,
    capacity INTEGER NOT NULL,
    booked_count INTEGER NOT NULL DEFAULT 0,
    cover_image_id VARCHAR(255),
    gallery_image_ids TEXT[] NOT NULL DEFAULT '{}',
    cancelled BOOLEAN NOT NULL DEFAULT FALSE,
    is_completed BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (price >= 0),
    CHECK (capacity >= 1),
    CHECK (booked_count >= 0 AND booked_count <= capacity)
);`

// bookings keep tour_id without a foreign key: they outlive deleted tours
const createBookingsTable = `
CREATE TABLE IF NOT EXISTS bookings (
    id UUID PRIMARY KEY,
    tour_id UUID NOT NULL,
    user_id VARCHAR(255) NOT NULL,
    ticket_count INTEGER NOT NULL,
    tour_title VARCHAR(500) NOT NULL,
    tour_date TIMESTAMPTZ NOT NULL,
    tour_price BIGINT NOT NULL,
    user_name VARCHAR(255) NOT NULL DEFAULT '',
    user_email VARCHAR(255) NOT NULL DEFAULT '',
    status VARCHAR(20) NOT NULL DEFAULT 'holding',
    payment_method VARCHAR(20) NOT NULL DEFAULT 'transfer',
    payment_status VARCHAR(20) NOT NULL DEFAULT 'pending',
    payment_id VARCHAR(255),
    expires_at TIMESTAMPTZ,
    proof_image_id VARCHAR(255),
    refund_details TEXT,
    contact_number VARCHAR(50),
    admin_refund_proof_id VARCHAR(255),
    redeemed_tickets INTEGER[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (ticket_count >= 1),
    CHECK (status IN ('holding', 'pending', 'confirmed', 'cancelled', 'expired', 'rejected', 'refunded')),
    CHECK (payment_method IN ('transfer', 'card')),
    CHECK (payment_status IN ('pending', 'reviewing', 'paid', 'rejected', 'expired', 'cancelled', 'refunded')),
    CHECK (status = 'holding' OR expires_at IS NULL)
);`

const createToursUpcomingIndex = `
CREATE INDEX IF NOT EXISTS tours_start_date_idx
ON tours (start_date) WHERE cancelled = FALSE AND is_completed = FALSE;`

const createBookingsTourIndex = `
CREATE INDEX IF NOT EXISTS bookings_tour_status_idx ON bookings (tour_id, status);`

const createBookingsUserIndex = `
CREATE INDEX IF NOT EXISTS bookings_user_idx ON bookings (user_id, created_at DESC);`

const createBookingsHoldIndex = `
CREATE INDEX IF NOT EXISTS bookings_hold_expiry_idx
ON bookings (expires_at) WHERE status = 'holding';`

const createBookingsPaymentIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS bookings_payment_id_idx
ON bookings (payment_id) WHERE payment_id IS NOT NULL;`
