package ports

import (
	"context"
	"time"
)

// AuctionLocker provides the single-auction critical section. Implementations
// return domain.ErrConflict when the lock cannot be acquired in time.
type AuctionLocker interface {
	Lock(ctx context.Context, auctionID string) (release func(), err error)
}

// Clock supplies "now". Tests inject a manual clock.
type Clock interface {
	Now() time.Time
}
