package natsadapter

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/dineradar/internal/core/domain"
	"github.com/samirrijal/dineradar/internal/core/ports"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	durable string
	subs    []*nats.Subscription
}

var _ ports.EventSubscriber = (*Subscriber)(nil)

// NewSubscriber creates a subscriber with its own NATS connection. Each
// process that must see every event needs its own durable name; processes
// sharing one split the deliveries between them.
func NewSubscriber(url, durable string) (*Subscriber, error) {
	if durable == "" {
		durable = "catalog-synced-processor"
	}
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js, durable: durable}, nil
}

// SubscribeCatalogSynced delivers catalog sync announcements. Failed handlers
// are redelivered up to three times.
func (s *Subscriber) SubscribeCatalogSynced(ctx context.Context, handler func(ctx context.Context, event *domain.CatalogSyncedEvent) error) error {
	sub, err := s.js.Subscribe(SubjectCatalogSynced, func(msg *nats.Msg) {
		var event domain.CatalogSyncedEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			// undecodable payloads will never succeed
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &event); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(s.durable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
