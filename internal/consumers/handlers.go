package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"tourbook/internal/models"

	"github.com/nats-io/stan.go"
)

// Indexer persists lifecycle events for the audit trail
type Indexer interface {
	IndexBookingEvent(ctx context.Context, ev models.BookingEvent) error
	IndexTourEvent(ctx context.Context, ev models.TourEvent) error
}

// errPoison marks payloads that will never decode; they are acked and dropped
type errPoison struct{ err error }

func (e errPoison) Error() string { return e.err.Error() }

type Handlers struct {
	indexer Indexer
	timeout time.Duration
}

func NewHandlers(indexer Indexer) *Handlers {
	return &Handlers{indexer: indexer, timeout: 10 * time.Second}
}

func (h *Handlers) BookingEvent(data []byte) error {
	var ev models.BookingEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return errPoison{fmt.Errorf("failed to unmarshal booking event: %w", err)}
	}
	if ev.BookingID == "" {
		return errPoison{fmt.Errorf("booking event %q without booking id", ev.Type)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	return h.indexer.IndexBookingEvent(ctx, ev)
}

func (h *Handlers) TourEvent(data []byte) error {
	var ev models.TourEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return errPoison{fmt.Errorf("failed to unmarshal tour event: %w", err)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	return h.indexer.IndexTourEvent(ctx, ev)
}

// ack adapts fn to a manual-ack subscription. Indexing failures leave the
// message unacked so NATS Streaming redelivers it.
func ack(subject string, fn func([]byte) error) stan.MsgHandler {
	return func(m *stan.Msg) {
		err := fn(m.Data)
		if err != nil {
			if _, poison := err.(errPoison); !poison {
				slog.Error("Failed to index event, awaiting redelivery",
					"error", err,
					"subject", subject,
					"sequence", m.Sequence)
				return
			}
			slog.Error("Dropping undecodable event",
				"error", err,
				"subject", subject,
				"sequence", m.Sequence)
		}
		if err := m.Ack(); err != nil {
			slog.Error("Failed to ack message", "error", err, "subject", subject)
		}
	}
}
