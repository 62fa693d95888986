package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BidStatus is derived from ranking; callers never set it directly.
type BidStatus string

const (
	BidActive  BidStatus = "active"
	BidWinning BidStatus = "winning"
	BidLost    BidStatus = "lost"
)

// IsLive reports whether a bid with this status counts in ranking.
func (s BidStatus) IsLive() bool {
	return s == BidActive || s == BidWinning
}

// Bid is a dealer's price offer on an auction.
type Bid struct {
	ID         string          `json:"id"`
	AuctionID  string          `json:"auction_id"`
	DealerID   string          `json:"dealer_id"`
	DealerTier DealerTier      `json:"dealer_tier,omitempty"`
	Price      decimal.Decimal `json:"price"`
	Message    string          `json:"message,omitempty"`
	Status     BidStatus       `json:"status"`
	Superseded bool            `json:"superseded,omitempty"`
	Sequence   int64           `json:"sequence"`
	CreatedAt  time.Time       `json:"created_at"`
}

// BidDraft is a bid before the ledger assigns id, sequence and status.
type BidDraft struct {
	AuctionID  string
	DealerID   string
	DealerTier DealerTier
	Price      decimal.Decimal
	Message    string
	CreatedAt  time.Time
}

// PlaceResult describes the auction's ranking right after a bid committed.
type PlaceResult struct {
	Bid       Bid
	LowPrice  decimal.Decimal
	LiveCount int
}
