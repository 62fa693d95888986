package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/carbidx/auction-engine/internal/core/domain"
)

// DailyCount is one bucket of a daily histogram; Day is formatted YYYY-MM-DD.
type DailyCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// StatsSource is the read-only view the stats aggregator consumes.
type StatsSource interface {
	CountUsersByRole(ctx context.Context) (map[domain.Role]int64, error)
	CountDealersByTier(ctx context.Context) (map[domain.DealerTier]int64, error)
	CountAuctionsByStatus(ctx context.Context) (map[domain.AuctionStatus]int64, error)
	CountBids(ctx context.Context) (int64, error)
	DailyAuctions(ctx context.Context, since time.Time) ([]DailyCount, error)
	DailyBids(ctx context.Context, since time.Time) ([]DailyCount, error)
}

// StatsSnapshot is the aggregate served to the admin view.
type StatsSnapshot struct {
	TotalUsers     int64                          `json:"total_users"`
	TotalBuyers    int64                          `json:"total_buyers"`
	TotalDealers   int64                          `json:"total_dealers"`
	DealersByTier  map[domain.DealerTier]int64    `json:"dealers_by_tier"`
	AuctionsByStat map[domain.AuctionStatus]int64 `json:"auctions_by_status"`
	TotalAuctions  int64                          `json:"total_auctions"`
	ActiveAuctions int64                          `json:"active_auctions"`
	ClosedAuctions int64                          `json:"closed_auctions"`
	TotalBids      int64                          `json:"total_bids"`
	BuyerFees      decimal.Decimal                `json:"buyer_fees"`
	MonthlyRevenue decimal.Decimal                `json:"monthly_revenue"`
	TotalRevenue   decimal.Decimal                `json:"total_revenue"`
	DailyAuctions  []DailyCount                   `json:"daily_auctions"`
	DailyBids      []DailyCount                   `json:"daily_bids"`
	ComputedAt     time.Time                      `json:"computed_at"`
}

// StatsCache stores the last computed snapshot. A miss returns (nil, nil).
type StatsCache interface {
	Get(ctx context.Context) (*StatsSnapshot, error)
	Set(ctx context.Context, snap *StatsSnapshot, ttl time.Duration) error
}

type StatsService interface {
	Snapshot(ctx context.Context, caller domain.Identity) (*StatsSnapshot, error)
}
