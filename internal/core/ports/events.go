package ports

import (
	"context"

	"github.com/carbidx/auction-engine/internal/core/domain"
)

// EventPublisher delivers an event to push subscribers. Delivery is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.AuctionEvent) error
}

// Notifier hands an event off without blocking the caller.
type Notifier interface {
	Notify(event domain.AuctionEvent)
}
