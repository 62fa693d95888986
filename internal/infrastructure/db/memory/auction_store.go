// Package memory holds in-process implementations of the storage ports,
// used for STORAGE_BACKEND=memory and in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carbidx/auction-engine/internal/core/domain"
	"github.com/carbidx/auction-engine/internal/core/ports"
)

// AuctionStore is a concurrency-safe in-memory ports.AuctionStore.
type AuctionStore struct {
	mu       sync.RWMutex
	clock    ports.Clock
	auctions map[string]domain.AuctionRequest
}

func NewAuctionStore(clock ports.Clock) *AuctionStore {
	return &AuctionStore{
		clock:    clock,
		auctions: make(map[string]domain.AuctionRequest),
	}
}

func (s *AuctionStore) Create(_ context.Context, draft domain.AuctionDraft) (*domain.AuctionRequest, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	a := domain.AuctionRequest{
		ID:          uuid.NewString(),
		BuyerID:     draft.BuyerID,
		Title:       draft.Title,
		Description: draft.Description,
		Location:    draft.Location,
		Vehicle:     draft.Vehicle,
		MaxBudget:   domain.RoundMoney(draft.MaxBudget),
		StartsAt:    draft.StartsAt.UTC(),
		EndsAt:      draft.EndsAt.UTC(),
		Status:      domain.AuctionActive,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.auctions[a.ID] = a
	return &a, nil
}

func (s *AuctionStore) Get(_ context.Context, id string) (*domain.AuctionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[id]
	if !ok {
		return nil, fmt.Errorf("get auction %s: %w", id, domain.ErrNotFound)
	}
	return &a, nil
}

// List returns matching auctions, newest first.
func (s *AuctionStore) List(_ context.Context, filter ports.AuctionFilter) ([]domain.AuctionRequest, error) {
	s.mu.RLock()
	out := make([]domain.AuctionRequest, 0, len(s.auctions))
	for _, a := range s.auctions {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.BuyerID != "" && a.BuyerID != filter.BuyerID {
			continue
		}
		out = append(out, a)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *AuctionStore) ListExpired(_ context.Context, now time.Time, limit int) ([]domain.AuctionRequest, error) {
	s.mu.RLock()
	var out []domain.AuctionRequest
	for _, a := range s.auctions {
		if a.Status == domain.AuctionActive && a.Expired(now) {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].EndsAt.Before(out[j].EndsAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *AuctionStore) Transition(_ context.Context, id string, expectedVersion int64, status domain.AuctionStatus) (*domain.AuctionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[id]
	if !ok {
		return nil, fmt.Errorf("transition auction %s: %w", id, domain.ErrNotFound)
	}
	if a.Version != expectedVersion {
		return nil, fmt.Errorf("transition auction %s: expected version %d, stored %d: %w", id, expectedVersion, a.Version, domain.ErrConflict)
	}
	if !a.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrState, a.Status, status)
	}

	a.Status = status
	a.Version++
	a.UpdatedAt = s.clock.Now()
	s.auctions[id] = a
	return &a, nil
}

// admitBid checks that the auction accepts bids at the given instant and bumps
// its version, so a Transition based on an earlier read fails with ErrConflict.
func (s *AuctionStore) admitBid(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[id]
	if !ok {
		return fmt.Errorf("auction %s: %w", id, domain.ErrNotFound)
	}
	if err := a.AcceptsBidsAt(at); err != nil {
		return err
	}
	a.Version++
	a.UpdatedAt = s.clock.Now()
	s.auctions[id] = a
	return nil
}
