package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carbidx/auction-engine/internal/core/domain"
)

// BidLedger is a concurrency-safe in-memory ports.BidLedger. Every mutation
// runs under one write lock, so admission, supersede, append and re-rank
// commit together.
type BidLedger struct {
	mu        sync.RWMutex
	auctions  *AuctionStore
	byAuction map[string][]domain.Bid // auctionID -> bids in append order
	byDealer  map[string][]bidRef     // dealerID -> positions in byAuction
}

type bidRef struct {
	auctionID string
	index     int
}

// NewBidLedger returns a ledger that admits bids against the auctions held in
// store.
func NewBidLedger(store *AuctionStore) *BidLedger {
	return &BidLedger{
		auctions:  store,
		byAuction: make(map[string][]domain.Bid),
		byDealer:  make(map[string][]bidRef),
	}
}

func (l *BidLedger) Place(_ context.Context, draft domain.BidDraft) (*domain.PlaceResult, error) {
	if draft.AuctionID == "" || draft.DealerID == "" {
		return nil, fmt.Errorf("%w: auction and dealer are required", domain.ErrValidation)
	}
	createdAt := draft.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.auctions.admitBid(draft.AuctionID, createdAt); err != nil {
		return nil, err
	}

	bids := l.byAuction[draft.AuctionID]
	for i := range bids {
		if bids[i].DealerID == draft.DealerID && bids[i].Status.IsLive() {
			bids[i].Status = domain.BidLost
			bids[i].Superseded = true
		}
	}

	bid := domain.Bid{
		ID:         uuid.NewString(),
		AuctionID:  draft.AuctionID,
		DealerID:   draft.DealerID,
		DealerTier: draft.DealerTier,
		Price:      domain.RoundMoney(draft.Price),
		Message:    draft.Message,
		Status:     domain.BidActive,
		Sequence:   int64(len(bids)) + 1,
		CreatedAt:  createdAt,
	}
	bids = append(bids, bid)
	l.byDealer[bid.DealerID] = append(l.byDealer[bid.DealerID], bidRef{auctionID: bid.AuctionID, index: len(bids) - 1})

	ranked := domain.RankLive(bids)
	head := ranked[0]
	for i := range bids {
		if !bids[i].Status.IsLive() {
			continue
		}
		if bids[i].ID == head.ID {
			bids[i].Status = domain.BidWinning
		} else {
			bids[i].Status = domain.BidActive
		}
	}
	l.byAuction[draft.AuctionID] = bids

	return &domain.PlaceResult{
		Bid:       bids[len(bids)-1],
		LowPrice:  head.Price,
		LiveCount: len(ranked),
	}, nil
}

func (l *BidLedger) ListLive(_ context.Context, auctionID string) ([]domain.Bid, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return domain.RankLive(l.byAuction[auctionID]), nil
}

func (l *BidLedger) ListByAuction(_ context.Context, auctionID string) ([]domain.Bid, error) {
	l.mu.RLock()
	bids := append([]domain.Bid(nil), l.byAuction[auctionID]...)
	l.mu.RUnlock()

	sort.SliceStable(bids, func(i, j int) bool { return bids[i].Sequence > bids[j].Sequence })
	return bids, nil
}

// ListByDealer returns the dealer's bids across auctions, newest first.
func (l *BidLedger) ListByDealer(_ context.Context, dealerID string) ([]domain.Bid, error) {
	l.mu.RLock()
	refs := l.byDealer[dealerID]
	out := make([]domain.Bid, 0, len(refs))
	for _, ref := range refs {
		out = append(out, l.byAuction[ref.auctionID][ref.index])
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (l *BidLedger) CountByAuction(_ context.Context, auctionID string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(len(l.byAuction[auctionID])), nil
}

func (l *BidLedger) MarkFinal(_ context.Context, auctionID, winnerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bids := l.byAuction[auctionID]
	if winnerID != "" {
		found := false
		for _, b := range bids {
			if b.ID == winnerID && b.Status.IsLive() {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("mark final on auction %s: live bid %s: %w", auctionID, winnerID, domain.ErrNotFound)
		}
	}

	for i := range bids {
		if !bids[i].Status.IsLive() {
			continue
		}
		if bids[i].ID == winnerID {
			bids[i].Status = domain.BidWinning
		} else {
			bids[i].Status = domain.BidLost
		}
	}
	return nil
}

// all returns a copy of every stored bid. Used by the stats source.
func (l *BidLedger) all() []domain.Bid {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []domain.Bid
	for _, bids := range l.byAuction {
		out = append(out, bids...)
	}
	return out
}
