package ports

import (
	"context"
	"time"

	"github.com/carbidx/auction-engine/internal/core/domain"
)

// AuctionStore owns auction requests and their lifecycle state.
// It validates structure only; who may transition is the engine's concern.
type AuctionStore interface {
	// Create assigns id, version 1 and status active.
	Create(ctx context.Context, draft domain.AuctionDraft) (*domain.AuctionRequest, error)
	Get(ctx context.Context, id string) (*domain.AuctionRequest, error)
	// List returns a snapshot filtered by status and/or buyer. Empty fields do not filter.
	List(ctx context.Context, filter AuctionFilter) ([]domain.AuctionRequest, error)
	// ListExpired returns at most limit active auctions with ends_at <= now, earliest deadline first.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.AuctionRequest, error)
	// Transition is a compare-and-swap on version. A stale expectedVersion yields domain.ErrConflict.
	Transition(ctx context.Context, id string, expectedVersion int64, status domain.AuctionStatus) (*domain.AuctionRequest, error)
}

// AuctionFilter narrows AuctionStore.List.
type AuctionFilter struct {
	Status  domain.AuctionStatus
	BuyerID string
	Limit   int
}
