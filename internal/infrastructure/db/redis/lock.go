package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/carbidx/auction-engine/internal/core/domain"
	"github.com/carbidx/auction-engine/internal/core/ports"
)

const (
	defaultLockTTL   = 15 * time.Second
	defaultLockWait  = 2 * time.Second
	lockRetryBackoff = 25 * time.Millisecond
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a per-auction critical section shared by every engine instance.
// Key format: auction-engine:lock:<auction_id>
type Locker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	log    zerolog.Logger
}

var _ ports.AuctionLocker = (*Locker)(nil)

// NewLocker creates a Locker. ttl bounds how long a crashed holder can block
// an auction; wait bounds how long Lock retries before reporting a conflict.
func NewLocker(client *redis.Client, ttl, wait time.Duration, log zerolog.Logger) *Locker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &Locker{client: client, ttl: ttl, wait: wait, log: log}
}

func (l *Locker) Lock(ctx context.Context, auctionID string) (func(), error) {
	key := l.key(auctionID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock auction %s: %w", auctionID, err)
		}
		if ok {
			return l.releaser(key, token), nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock auction %s: held elsewhere for over %s: %w", auctionID, l.wait, domain.ErrConflict)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryBackoff):
		}
	}
}

func (l *Locker) releaser(key, token string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			l.log.Warn().Err(err).Str("key", key).Msg("lock release failed; it will expire")
		}
	}
}

func (l *Locker) key(auctionID string) string {
	return keyPrefix + "lock:" + auctionID
}
