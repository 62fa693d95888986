package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/carbidx/auction-engine/internal/core/domain"
	"github.com/carbidx/auction-engine/internal/core/ports"
)

type stubCloser struct {
	mu     sync.Mutex
	calls  map[string]int
	failOn map[string]bool
	store  ports.AuctionStore
}

func (c *stubCloser) CloseIfExpired(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	c.calls[id]++
	fail := c.failOn[id]
	c.mu.Unlock()
	if fail {
		return false, errors.New("store unavailable")
	}
	a, err := c.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if _, err := c.store.Transition(ctx, id, a.Version, domain.AuctionClosed); err != nil {
		return false, err
	}
	return true, nil
}

func TestScheduler_SweepDrainsBacklogInBatches(t *testing.T) {
	f := newEngineFixture()
	for i := 0; i < 25; i++ {
		f.createAuction(t, 1000, time.Minute)
	}
	f.createAuction(t, 1000, time.Hour)
	f.clock.Advance(2 * time.Minute)

	sched := NewScheduler(f.auctions, f.engine, f.clock, SchedulerConfig{BatchSize: 10, Concurrency: 3}, zerolog.Nop())
	closed, err := sched.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if closed != 25 {
		t.Fatalf("expected 25 closed, got %d", closed)
	}

	active, _ := f.auctions.List(context.Background(), ports.AuctionFilter{Status: domain.AuctionActive})
	if len(active) != 1 {
		t.Fatalf("the unexpired auction must stay active, got %d active", len(active))
	}

	again, err := sched.Sweep(context.Background())
	if err != nil || again != 0 {
		t.Fatalf("second sweep should be a no-op: closed=%d err=%v", again, err)
	}
}

func TestScheduler_SweepContinuesPastFailures(t *testing.T) {
	f := newEngineFixture()
	bad := f.createAuction(t, 1000, time.Minute)
	good := f.createAuction(t, 1000, time.Minute)
	f.clock.Advance(time.Hour)

	closer := &stubCloser{
		calls:  make(map[string]int),
		failOn: map[string]bool{bad.ID: true},
		store:  f.auctions,
	}
	sched := NewScheduler(f.auctions, closer, f.clock, SchedulerConfig{BatchSize: 1}, zerolog.Nop())

	closed, err := sched.Sweep(context.Background())
	if err == nil {
		t.Fatalf("expected the failure to be reported")
	}
	if closed != 1 {
		t.Fatalf("expected the healthy auction to close, got %d", closed)
	}
	got, _ := f.auctions.Get(context.Background(), good.ID)
	if got.Status != domain.AuctionClosed {
		t.Fatalf("healthy auction should be closed, got %s", got.Status)
	}

	// The failing auction is retried on the next sweep, not in a hot loop.
	if closer.calls[bad.ID] != 1 {
		t.Fatalf("failing auction should be attempted once per sweep, got %d", closer.calls[bad.ID])
	}
	closer.failOn[bad.ID] = false
	if closed, err := sched.Sweep(context.Background()); err != nil || closed != 1 {
		t.Fatalf("retry sweep: closed=%d err=%v", closed, err)
	}
}

type countingCloser struct{ n atomic.Int32 }

func (c *countingCloser) CloseIfExpired(context.Context, string) (bool, error) {
	c.n.Add(1)
	return false, nil
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	f := newEngineFixture()
	f.createAuction(t, 1000, time.Minute)
	f.clock.Advance(time.Hour)

	closer := &countingCloser{}
	sched := NewScheduler(f.auctions, closer, f.clock, SchedulerConfig{Interval: 5 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for closer.n.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("scheduler did not tick")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler did not stop")
	}
}
