package memory

import (
	"context"
	"sync"
	"time"

	"github.com/carbidx/auction-engine/internal/core/ports"
)

// StatsCache keeps one snapshot in process until its TTL lapses.
type StatsCache struct {
	mu        sync.Mutex
	clock     ports.Clock
	snap      *ports.StatsSnapshot
	expiresAt time.Time
}

func NewStatsCache(clock ports.Clock) *StatsCache {
	return &StatsCache{clock: clock}
}

func (c *StatsCache) Get(context.Context) (*ports.StatsSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap == nil || !c.clock.Now().Before(c.expiresAt) {
		return nil, nil
	}
	return c.snap, nil
}

func (c *StatsCache) Set(_ context.Context, snap *ports.StatsSnapshot, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = snap
	c.expiresAt = c.clock.Now().Add(ttl)
	return nil
}
