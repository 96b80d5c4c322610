package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"deadlock", fmt.Errorf("failed to lock tour: %w", &pq.Error{Code: "40P01"}), true},
		{"check violation", &pq.Error{Code: "23514"}, false},
		{"bad connection", errors.New("driver: bad connection"), true},
		{"context cancelled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableError(tt.err))
		})
	}
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "tourbook", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=tourbook sslmode=disable", cfg.DSN())
}
