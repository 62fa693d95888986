package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/carbidx/auction-engine/internal/core/domain"
	"github.com/carbidx/auction-engine/internal/core/ports"
)

const eventsChannel = keyPrefix + "events"

// wireEvent is the pub/sub envelope. Payload stays raw so it is forwarded
// byte-for-byte to local subscribers.
type wireEvent struct {
	Origin    string           `json:"origin"`
	Event     domain.EventType `json:"event"`
	AuctionID string           `json:"auction_id"`
	Payload   json.RawMessage  `json:"payload"`
	EmittedAt time.Time        `json:"emitted_at"`
}

// Bus relays auction events between engine instances. Events that originate
// on this instance are skipped on receipt, since they were already delivered
// locally.
type Bus struct {
	client *redis.Client
	local  ports.EventPublisher
	origin string
	log    zerolog.Logger
}

var _ ports.EventPublisher = (*Bus)(nil)

func NewBus(client *redis.Client, local ports.EventPublisher, log zerolog.Logger) *Bus {
	return &Bus{client: client, local: local, origin: uuid.NewString(), log: log}
}

func (b *Bus) Publish(ctx context.Context, event domain.AuctionEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	msg, err := json.Marshal(wireEvent{
		Origin:    b.origin,
		Event:     event.Event,
		AuctionID: event.AuctionID,
		Payload:   payload,
		EmittedAt: event.EmittedAt,
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, eventsChannel, msg).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run forwards events published by other instances to the local publisher
// until ctx is cancelled.
func (b *Bus) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, eventsChannel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	b.log.Info().Str("channel", eventsChannel).Str("origin", b.origin).Msg("event bus subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.forward(ctx, msg.Payload)
		}
	}
}

func (b *Bus) forward(ctx context.Context, raw string) {
	var w wireEvent
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		b.log.Warn().Err(err).Msg("undecodable bus message")
		return
	}
	if w.Origin == b.origin {
		return
	}
	err := b.local.Publish(ctx, domain.AuctionEvent{
		Event:     w.Event,
		AuctionID: w.AuctionID,
		Payload:   w.Payload,
		EmittedAt: w.EmittedAt,
	})
	if err != nil {
		b.log.Warn().Err(err).Str("auction_id", w.AuctionID).Msg("local delivery of bus event failed")
	}
}
