package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/carbidx/auction-engine/internal/core/domain"
	"github.com/carbidx/auction-engine/internal/core/ports"
)

// StatsSource runs the admin aggregations server-side.
type StatsSource struct {
	auctions *mongo.Collection
	bids     *mongo.Collection
	users    *mongo.Collection
}

var _ ports.StatsSource = (*StatsSource)(nil)

func NewStatsSource(db *mongo.Database) *StatsSource {
	return &StatsSource{
		auctions: db.Collection(collectionAuctions),
		bids:     db.Collection(collectionBids),
		users:    db.Collection(collectionUsers),
	}
}

type groupCount struct {
	Key   string `bson:"_id"`
	Count int64  `bson:"count"`
}

func (s *StatsSource) CountUsersByRole(ctx context.Context) (map[domain.Role]int64, error) {
	rows, err := s.groupBy(ctx, s.users, bson.M{}, "$role")
	if err != nil {
		return nil, err
	}
	out := make(map[domain.Role]int64, len(rows))
	for _, r := range rows {
		out[domain.Role(r.Key)] = r.Count
	}
	return out, nil
}

func (s *StatsSource) CountDealersByTier(ctx context.Context) (map[domain.DealerTier]int64, error) {
	rows, err := s.groupBy(ctx, s.users, bson.M{"role": string(domain.RoleDealer)}, "$dealer_tier")
	if err != nil {
		return nil, err
	}
	out := make(map[domain.DealerTier]int64, len(rows))
	for _, r := range rows {
		out[domain.DealerTier(r.Key)] = r.Count
	}
	return out, nil
}

func (s *StatsSource) CountAuctionsByStatus(ctx context.Context) (map[domain.AuctionStatus]int64, error) {
	rows, err := s.groupBy(ctx, s.auctions, bson.M{}, "$status")
	if err != nil {
		return nil, err
	}
	out := make(map[domain.AuctionStatus]int64, len(rows))
	for _, r := range rows {
		out[domain.AuctionStatus(r.Key)] = r.Count
	}
	return out, nil
}

func (s *StatsSource) CountBids(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := s.bids.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count bids: %w", err)
	}
	return n, nil
}

func (s *StatsSource) DailyAuctions(ctx context.Context, since time.Time) ([]ports.DailyCount, error) {
	return s.daily(ctx, s.auctions, since)
}

func (s *StatsSource) DailyBids(ctx context.Context, since time.Time) ([]ports.DailyCount, error) {
	return s.daily(ctx, s.bids, since)
}

func (s *StatsSource) daily(ctx context.Context, col *mongo.Collection, since time.Time) ([]ports.DailyCount, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"created_at": bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$created_at", "timezone": "UTC"}},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
	rows, err := aggregate(ctx, col, pipeline)
	if err != nil {
		return nil, err
	}
	out := make([]ports.DailyCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, ports.DailyCount{Day: r.Key, Count: r.Count})
	}
	return out, nil
}

func (s *StatsSource) groupBy(ctx context.Context, col *mongo.Collection, match bson.M, field string) ([]groupCount, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": field, "count": bson.M{"$sum": 1}}}},
	}
	return aggregate(ctx, col, pipeline)
}

func aggregate(ctx context.Context, col *mongo.Collection, pipeline mongo.Pipeline) ([]groupCount, error) {
	cur, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", col.Name(), err)
	}
	var rows []groupCount
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode %s aggregate: %w", col.Name(), err)
	}
	return rows, nil
}
