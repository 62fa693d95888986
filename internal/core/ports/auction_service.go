package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/carbidx/auction-engine/internal/core/domain"
)

// CreateAuctionInput carries a buyer's new request. Either EndsAt or
// DurationHours may be given; StartsAt defaults to now.
type CreateAuctionInput struct {
	Title         string
	Description   string
	Location      string
	Vehicle       domain.VehicleSpec
	MaxBudget     decimal.Decimal
	StartsAt      time.Time
	EndsAt        time.Time
	DurationHours int
}

// SubmitBidInput carries a dealer's price offer.
type SubmitBidInput struct {
	AuctionID string
	Price     decimal.Decimal
	Message   string
}

// ListAuctionsInput carries the optional list filters.
type ListAuctionsInput struct {
	Status  string
	BuyerID string
}

// AuctionView is an auction plus its derived ranking summary.
type AuctionView struct {
	Auction       domain.AuctionRequest
	BidCount      int
	LiveBidCount  int
	LowestPrice   *decimal.Decimal
	WinningBidID  string
	TimeRemaining time.Duration
}

// AuctionService is the engine's use-case surface.
type AuctionService interface {
	CreateAuction(ctx context.Context, caller domain.Identity, in CreateAuctionInput) (*domain.AuctionRequest, error)
	GetAuction(ctx context.Context, id string) (*AuctionView, error)
	ListAuctions(ctx context.Context, caller domain.Identity, in ListAuctionsInput) ([]AuctionView, error)
	SubmitBid(ctx context.Context, caller domain.Identity, in SubmitBidInput) (*domain.Bid, error)
	ListBids(ctx context.Context, caller domain.Identity, auctionID string) ([]domain.Bid, error)
	ListDealerBids(ctx context.Context, caller domain.Identity, dealerID string) ([]domain.Bid, error)
	CloseIfExpired(ctx context.Context, auctionID string) (bool, error)
	Cancel(ctx context.Context, caller domain.Identity, auctionID string) (*domain.AuctionRequest, error)
	ForceStatus(ctx context.Context, caller domain.Identity, auctionID string, status string) (*domain.AuctionRequest, error)
}
