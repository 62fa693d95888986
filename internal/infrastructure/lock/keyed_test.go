package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/carbidx/auction-engine/internal/core/domain"
)

func TestKeyed_SerializesSameKey(t *testing.T) {
	k := NewKeyed(time.Second)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := k.Lock(ctx, "a1")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected exclusive access, saw %d holders", maxSeen)
	}
	if n := k.size(); n != 0 {
		t.Fatalf("expected entries to be released, %d remain", n)
	}
}

func TestKeyed_IndependentKeys(t *testing.T) {
	k := NewKeyed(50 * time.Millisecond)
	ctx := context.Background()

	r1, err := k.Lock(ctx, "a1")
	if err != nil {
		t.Fatalf("lock a1: %v", err)
	}
	defer r1()

	r2, err := k.Lock(ctx, "a2")
	if err != nil {
		t.Fatalf("a2 must not wait on a1: %v", err)
	}
	r2()
}

func TestKeyed_TimeoutIsConflict(t *testing.T) {
	k := NewKeyed(20 * time.Millisecond)
	ctx := context.Background()

	release, err := k.Lock(ctx, "a1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer release()

	if _, err := k.Lock(ctx, "a1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestKeyed_ReleaseIsIdempotent(t *testing.T) {
	k := NewKeyed(20 * time.Millisecond)
	release, err := k.Lock(context.Background(), "a1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	release()
	release()

	again, err := k.Lock(context.Background(), "a1")
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	again()
}
