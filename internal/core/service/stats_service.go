package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/carbidx/auction-engine/internal/core/domain"
	"github.com/carbidx/auction-engine/internal/core/ports"
)

const statsWindow = 30 * 24 * time.Hour

var (
	buyerFeePerAuction = decimal.NewFromInt(20)
	tierSubscription   = map[domain.DealerTier]decimal.Decimal{
		domain.TierStandard: decimal.NewFromInt(250),
		domain.TierPremium:  decimal.NewFromInt(350),
		domain.TierGold:     decimal.NewFromInt(500),
	}
)

// StatsService computes the admin dashboard aggregate. Results are eventually
// consistent: a cached snapshot is served until its TTL lapses.
type StatsService struct {
	source ports.StatsSource
	cache  ports.StatsCache
	clock  ports.Clock
	ttl    time.Duration
	log    zerolog.Logger
}

// NewStatsService builds the service. cache may be nil to always recompute.
func NewStatsService(source ports.StatsSource, cache ports.StatsCache, clock ports.Clock, ttl time.Duration, log zerolog.Logger) *StatsService {
	return &StatsService{source: source, cache: cache, clock: clock, ttl: ttl, log: log}
}

func (s *StatsService) Snapshot(ctx context.Context, caller domain.Identity) (*ports.StatsSnapshot, error) {
	if err := domain.Authorize(caller, domain.ActionAdminRead, ""); err != nil {
		return nil, err
	}

	if s.cache != nil {
		snap, err := s.cache.Get(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("stats cache read failed")
		} else if snap != nil {
			return snap, nil
		}
	}

	snap, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && s.ttl > 0 {
		if err := s.cache.Set(ctx, snap, s.ttl); err != nil {
			s.log.Warn().Err(err).Msg("stats cache write failed")
		}
	}
	return snap, nil
}

func (s *StatsService) compute(ctx context.Context) (*ports.StatsSnapshot, error) {
	now := s.clock.Now()
	since := now.Add(-statsWindow)

	roles, err := s.source.CountUsersByRole(ctx)
	if err != nil {
		return nil, err
	}
	tiers, err := s.source.CountDealersByTier(ctx)
	if err != nil {
		return nil, err
	}
	statuses, err := s.source.CountAuctionsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	bids, err := s.source.CountBids(ctx)
	if err != nil {
		return nil, err
	}
	dailyAuctions, err := s.source.DailyAuctions(ctx, since)
	if err != nil {
		return nil, err
	}
	dailyBids, err := s.source.DailyBids(ctx, since)
	if err != nil {
		return nil, err
	}

	snap := &ports.StatsSnapshot{
		TotalBuyers:    roles[domain.RoleBuyer],
		TotalDealers:   roles[domain.RoleDealer],
		DealersByTier:  tiers,
		AuctionsByStat: statuses,
		ActiveAuctions: statuses[domain.AuctionActive],
		ClosedAuctions: statuses[domain.AuctionClosed],
		TotalBids:      bids,
		DailyAuctions:  dailyAuctions,
		DailyBids:      dailyBids,
		ComputedAt:     now,
	}
	for _, n := range roles {
		snap.TotalUsers += n
	}
	for _, n := range statuses {
		snap.TotalAuctions += n
	}

	snap.BuyerFees = buyerFeePerAuction.Mul(decimal.NewFromInt(snap.ClosedAuctions))
	snap.MonthlyRevenue = decimal.Zero
	for tier, n := range tiers {
		if price, ok := tierSubscription[tier]; ok {
			snap.MonthlyRevenue = snap.MonthlyRevenue.Add(price.Mul(decimal.NewFromInt(n)))
		}
	}
	snap.TotalRevenue = snap.BuyerFees.Add(snap.MonthlyRevenue)
	return snap, nil
}
