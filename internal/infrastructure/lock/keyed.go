// Package lock provides the in-process AuctionLocker used by single-instance
// deployments and tests.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carbidx/auction-engine/internal/core/domain"
)

const defaultWait = 2 * time.Second

// Keyed hands out one mutex per auction id. Entries are reference counted and
// dropped once no goroutine holds or waits on them.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*entry
	wait  time.Duration
}

type entry struct {
	ch   chan struct{} // capacity 1; a token in the channel means "held"
	refs int
}

// NewKeyed returns a locker that gives up after wait. wait <= 0 uses 2s.
func NewKeyed(wait time.Duration) *Keyed {
	if wait <= 0 {
		wait = defaultWait
	}
	return &Keyed{locks: make(map[string]*entry), wait: wait}
}

func (k *Keyed) Lock(ctx context.Context, auctionID string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[auctionID]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		k.locks[auctionID] = e
	}
	e.refs++
	k.mu.Unlock()

	timer := time.NewTimer(k.wait)
	defer timer.Stop()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.unref(auctionID, e)
		return nil, ctx.Err()
	case <-timer.C:
		k.unref(auctionID, e)
		return nil, fmt.Errorf("lock auction %s: timed out after %s: %w", auctionID, k.wait, domain.ErrConflict)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.unref(auctionID, e)
		})
	}, nil
}

func (k *Keyed) unref(auctionID string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, auctionID)
	}
}

// size reports the number of tracked keys.
func (k *Keyed) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
