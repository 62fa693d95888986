package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType names a push-channel event.
type EventType string

const (
	EventBid       EventType = "bid"
	EventClosed    EventType = "closed"
	EventCancelled EventType = "cancelled"
)

// AuctionEvent is a best-effort notification about an auction.
type AuctionEvent struct {
	Event     EventType `json:"event"`
	AuctionID string    `json:"auction_id"`
	Payload   any       `json:"payload"`
	EmittedAt time.Time `json:"emitted_at"`
}

// BidPayload accompanies EventBid.
type BidPayload struct {
	NewLowPrice   decimal.Decimal `json:"new_low_price"`
	BidCount      int             `json:"bid_count"`
	TimeRemaining int64           `json:"time_remaining_seconds"`
}

// ClosedPayload accompanies EventClosed.
type ClosedPayload struct {
	WinningBidID string           `json:"winning_bid_id,omitempty"`
	WinningPrice *decimal.Decimal `json:"winning_price,omitempty"`
	Forced       bool             `json:"forced"`
}
