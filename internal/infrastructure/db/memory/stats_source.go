package memory

import (
	"context"
	"sort"
	"time"

	"github.com/carbidx/auction-engine/internal/core/domain"
	"github.com/carbidx/auction-engine/internal/core/ports"
)

// StatsSource aggregates over the in-memory stores.
type StatsSource struct {
	auctions *AuctionStore
	bids     *BidLedger
	users    *UserRepository
}

func NewStatsSource(auctions *AuctionStore, bids *BidLedger, users *UserRepository) *StatsSource {
	return &StatsSource{auctions: auctions, bids: bids, users: users}
}

func (s *StatsSource) CountUsersByRole(ctx context.Context) (map[domain.Role]int64, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.Role]int64)
	for _, u := range users {
		out[u.Role]++
	}
	return out, nil
}

func (s *StatsSource) CountDealersByTier(ctx context.Context) (map[domain.DealerTier]int64, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.DealerTier]int64)
	for _, u := range users {
		if u.Role == domain.RoleDealer {
			out[u.DealerTier]++
		}
	}
	return out, nil
}

func (s *StatsSource) CountAuctionsByStatus(ctx context.Context) (map[domain.AuctionStatus]int64, error) {
	auctions, err := s.auctions.List(ctx, ports.AuctionFilter{})
	if err != nil {
		return nil, err
	}
	out := make(map[domain.AuctionStatus]int64)
	for _, a := range auctions {
		out[a.Status]++
	}
	return out, nil
}

func (s *StatsSource) CountBids(_ context.Context) (int64, error) {
	return int64(len(s.bids.all())), nil
}

func (s *StatsSource) DailyAuctions(ctx context.Context, since time.Time) ([]ports.DailyCount, error) {
	auctions, err := s.auctions.List(ctx, ports.AuctionFilter{})
	if err != nil {
		return nil, err
	}
	stamps := make([]time.Time, 0, len(auctions))
	for _, a := range auctions {
		stamps = append(stamps, a.CreatedAt)
	}
	return bucketByDay(stamps, since), nil
}

func (s *StatsSource) DailyBids(_ context.Context, since time.Time) ([]ports.DailyCount, error) {
	bids := s.bids.all()
	stamps := make([]time.Time, 0, len(bids))
	for _, b := range bids {
		stamps = append(stamps, b.CreatedAt)
	}
	return bucketByDay(stamps, since), nil
}

// bucketByDay counts stamps at or after since per UTC day, ascending.
func bucketByDay(stamps []time.Time, since time.Time) []ports.DailyCount {
	counts := make(map[string]int64)
	for _, ts := range stamps {
		if ts.Before(since) {
			continue
		}
		counts[ts.UTC().Format(time.DateOnly)]++
	}
	out := make([]ports.DailyCount, 0, len(counts))
	for day, n := range counts {
		out = append(out, ports.DailyCount{Day: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}
