package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carbidx/auction-engine/internal/core/ports"
)

const statsKey = keyPrefix + "stats:snapshot"

// StatsCache stores the admin stats snapshot as JSON with a TTL.
type StatsCache struct {
	client *redis.Client
}

var _ ports.StatsCache = (*StatsCache)(nil)

func NewStatsCache(client *redis.Client) *StatsCache {
	return &StatsCache{client: client}
}

func (c *StatsCache) Get(ctx context.Context) (*ports.StatsSnapshot, error) {
	raw, err := c.client.Get(ctx, statsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stats cache get: %w", err)
	}
	var snap ports.StatsSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("stats cache decode: %w", err)
	}
	return &snap, nil
}

func (c *StatsCache) Set(ctx context.Context, snap *ports.StatsSnapshot, ttl time.Duration) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("stats cache encode: %w", err)
	}
	return c.client.Set(ctx, statsKey, raw, ttl).Err()
}
