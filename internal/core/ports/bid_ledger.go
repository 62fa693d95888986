package ports

import (
	"context"

	"github.com/carbidx/auction-engine/internal/core/domain"
)

// BidLedger is the append-oriented record of bids with a derived ranking.
// The auction lock only reduces contention; correctness across engine
// instances sharing a store rests on Place's admission check.
type BidLedger interface {
	// Place admits the draft only while the auction accepts bids at
	// draft.CreatedAt, failing with domain.ErrAuctionClosed otherwise. In the
	// same atomic unit it bumps the auction's version, supersedes the dealer's
	// live bid, appends the draft and re-ranks the auction's live bids. A
	// concurrent write to the auction yields domain.ErrConflict.
	Place(ctx context.Context, draft domain.BidDraft) (*domain.PlaceResult, error)
	// ListLive returns live bids ordered by (price asc, created_at asc).
	ListLive(ctx context.Context, auctionID string) ([]domain.Bid, error)
	// ListByAuction returns the full history, newest first.
	ListByAuction(ctx context.Context, auctionID string) ([]domain.Bid, error)
	ListByDealer(ctx context.Context, dealerID string) ([]domain.Bid, error)
	CountByAuction(ctx context.Context, auctionID string) (int64, error)
	// MarkFinal sets winnerID (may be empty) to winning and every other live bid
	// to lost. Repeating the call with the same winner is a no-op.
	MarkFinal(ctx context.Context, auctionID, winnerID string) error
}
