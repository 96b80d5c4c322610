package consumers

import (
	"context"
	"log/slog"

	"tourbook/internal/messaging"
	"tourbook/internal/models"

	"github.com/nats-io/stan.go"
)

const queueGroup = "audit"

// ConsumerService feeds the audit index from lifecycle events
type ConsumerService struct {
	nats     *messaging.NATSClient
	handlers *Handlers
	subs     []stan.Subscription
}

func NewConsumerService(nats *messaging.NATSClient, indexer Indexer) *ConsumerService {
	return &ConsumerService{
		nats:     nats,
		handlers: NewHandlers(indexer),
	}
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	for _, subject := range models.BookingSubjects {
		if err := cs.subscribe(subject, cs.handlers.BookingEvent); err != nil {
			return err
		}
	}
	for _, subject := range models.TourSubjects {
		if err := cs.subscribe(subject, cs.handlers.TourEvent); err != nil {
			return err
		}
	}

	slog.Info("All consumers started successfully", "subscriptions", len(cs.subs))
	return nil
}

func (cs *ConsumerService) subscribe(subject string, fn func([]byte) error) error {
	sub, err := cs.nats.SubscribeQueue(subject, queueGroup, ack(subject, fn))
	if err != nil {
		return err
	}
	cs.subs = append(cs.subs, sub)
	return nil
}

// Shutdown closes subscriptions without unsubscribing, keeping the durable position
func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	for _, sub := range cs.subs {
		if err := sub.Close(); err != nil {
			slog.Error("Error closing subscription", "error", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	cs.subs = nil
	return nil
}
