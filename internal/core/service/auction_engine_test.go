package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/carbidx/auction-engine/internal/core/domain"
	"github.com/carbidx/auction-engine/internal/core/ports"
	"github.com/carbidx/auction-engine/internal/infrastructure/db/memory"
	"github.com/carbidx/auction-engine/internal/infrastructure/lock"
	"github.com/carbidx/auction-engine/internal/pkg/clock"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

var start = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.AuctionEvent
}

func (n *recordingNotifier) Notify(e domain.AuctionEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) byType(t domain.EventType) []domain.AuctionEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.AuctionEvent
	for _, e := range n.events {
		if e.Event == t {
			out = append(out, e)
		}
	}
	return out
}

type engineFixture struct {
	engine   *AuctionEngine
	auctions *memory.AuctionStore
	bids     *memory.BidLedger
	clock    *clock.Manual
	notifier *recordingNotifier
}

func newEngineFixture() *engineFixture {
	clk := clock.NewManual(start)
	auctions := memory.NewAuctionStore(clk)
	f := &engineFixture{
		auctions: auctions,
		bids:     memory.NewBidLedger(auctions),
		clock:    clk,
		notifier: &recordingNotifier{},
	}
	f.engine = NewAuctionEngine(f.auctions, f.bids, lock.NewKeyed(time.Second), clk, f.notifier, zerolog.Nop())
	return f
}

var (
	buyer   = domain.Identity{UserID: "buyer-1", Role: domain.RoleBuyer}
	admin   = domain.Identity{UserID: "admin-1", Role: domain.RoleAdmin}
	dealerX = domain.Identity{UserID: "dealer-x", Role: domain.RoleDealer, Verified: true}
	dealerY = domain.Identity{UserID: "dealer-y", Role: domain.RoleDealer, Verified: true}
	dealerZ = domain.Identity{UserID: "dealer-z", Role: domain.RoleDealer, Verified: true}
	dealerW = domain.Identity{UserID: "dealer-w", Role: domain.RoleDealer, Verified: true}
	rookie  = domain.Identity{UserID: "dealer-new", Role: domain.RoleDealer}
	usd     = decimal.NewFromInt
	oneHour = time.Hour
)

func (f *engineFixture) createAuction(t *testing.T, budget int64, d time.Duration) *domain.AuctionRequest {
	t.Helper()
	a, err := f.engine.CreateAuction(context.Background(), buyer, ports.CreateAuctionInput{
		Title:     "Looking for a Model 3",
		Vehicle:   domain.VehicleSpec{Make: "Tesla", Model: "Model 3", Year: 2023},
		MaxBudget: usd(budget),
		EndsAt:    f.clock.Now().Add(d),
	})
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	return a
}

func (f *engineFixture) bid(t *testing.T, who domain.Identity, auctionID string, price int64) *domain.Bid {
	t.Helper()
	b, err := f.engine.SubmitBid(context.Background(), who, ports.SubmitBidInput{AuctionID: auctionID, Price: usd(price)})
	if err != nil {
		t.Fatalf("submit bid %s@%d: %v", who.UserID, price, err)
	}
	return b
}

func (f *engineFixture) statusOf(t *testing.T, auctionID, bidID string) domain.BidStatus {
	t.Helper()
	history, err := f.bids.ListByAuction(context.Background(), auctionID)
	if err != nil {
		t.Fatalf("list bids: %v", err)
	}
	for _, b := range history {
		if b.ID == bidID {
			return b.Status
		}
	}
	t.Fatalf("bid %s not found", bidID)
	return ""
}

// ---------------------------------------------------------------------------
// CreateAuction
// ---------------------------------------------------------------------------

func TestEngine_CreateAuction_Defaults(t *testing.T) {
	f := newEngineFixture()
	a, err := f.engine.CreateAuction(context.Background(), buyer, ports.CreateAuctionInput{MaxBudget: usd(30000)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !a.StartsAt.Equal(start) {
		t.Fatalf("starts_at should default to now, got %v", a.StartsAt)
	}
	if !a.EndsAt.Equal(start.Add(defaultAuctionDuration)) {
		t.Fatalf("ends_at should default to 24h, got %v", a.EndsAt)
	}

	b, err := f.engine.CreateAuction(context.Background(), buyer, ports.CreateAuctionInput{MaxBudget: usd(30000), DurationHours: 2})
	if err != nil {
		t.Fatalf("create with duration: %v", err)
	}
	if !b.EndsAt.Equal(start.Add(2 * time.Hour)) {
		t.Fatalf("unexpected ends_at %v", b.EndsAt)
	}
}

func TestEngine_CreateAuction_Rejections(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	if _, err := f.engine.CreateAuction(ctx, dealerX, ports.CreateAuctionInput{MaxBudget: usd(1)}); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("dealer create: expected ErrAuthorization, got %v", err)
	}
	if _, err := f.engine.CreateAuction(ctx, buyer, ports.CreateAuctionInput{MaxBudget: decimal.Zero}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("zero budget: expected ErrValidation, got %v", err)
	}
	if _, err := f.engine.CreateAuction(ctx, buyer, ports.CreateAuctionInput{MaxBudget: usd(1), EndsAt: start.Add(-time.Minute)}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("past deadline: expected ErrValidation, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// SubmitBid: example scenarios
// ---------------------------------------------------------------------------

func TestEngine_Scenario_LowerBidTakesLead(t *testing.T) {
	f := newEngineFixture()
	a := f.createAuction(t, 50000, oneHour)

	x := f.bid(t, dealerX, a.ID, 48000)
	if x.Status != domain.BidWinning {
		t.Fatalf("first bid should be winning, got %s", x.Status)
	}

	f.clock.Advance(time.Second)
	y := f.bid(t, dealerY, a.ID, 47000)
	if y.Status != domain.BidWinning {
		t.Fatalf("lower bid should be winning, got %s", y.Status)
	}
	if got := f.statusOf(t, a.ID, x.ID); got != domain.BidActive {
		t.Fatalf("outbid dealer should be active, got %s", got)
	}

	events := f.notifier.byType(domain.EventBid)
	if len(events) != 2 {
		t.Fatalf("expected 2 bid events, got %d", len(events))
	}
	payload := events[1].Payload.(domain.BidPayload)
	if !payload.NewLowPrice.Equal(usd(47000)) || payload.BidCount != 2 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if payload.TimeRemaining != int64((oneHour-time.Second)/time.Second) {
		t.Fatalf("unexpected time remaining %d", payload.TimeRemaining)
	}
}

func TestEngine_Scenario_OverBudgetRejected(t *testing.T) {
	f := newEngineFixture()
	a := f.createAuction(t, 50000, oneHour)
	f.bid(t, dealerX, a.ID, 48000)

	_, err := f.engine.SubmitBid(context.Background(), dealerZ, ports.SubmitBidInput{AuctionID: a.ID, Price: usd(51000)})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	live, _ := f.bids.ListLive(context.Background(), a.ID)
	if len(live) != 1 {
		t.Fatalf("rejected bid must not be recorded, live=%d", len(live))
	}
}

func TestEngine_Scenario_BidAfterDeadlineRejected(t *testing.T) {
	f := newEngineFixture()
	a := f.createAuction(t, 50000, oneHour)
	f.bid(t, dealerX, a.ID, 48000)

	f.clock.Advance(oneHour)
	_, err := f.engine.SubmitBid(context.Background(), dealerW, ports.SubmitBidInput{AuctionID: a.ID, Price: usd(40000)})
	if !errors.Is(err, domain.ErrAuctionClosed) {
		t.Fatalf("expected ErrAuctionClosed before any sweep, got %v", err)
	}
	live, _ := f.bids.ListLive(context.Background(), a.ID)
	if len(live) != 1 || !live[0].Price.Equal(usd(48000)) {
		t.Fatalf("live bids must be unchanged, got %+v", live)
	}
}

func TestEngine_Scenario_SweepFixesWinner(t *testing.T) {
	f := newEngineFixture()
	a := f.createAuction(t, 50000, oneHour)
	x := f.bid(t, dealerX, a.ID, 48000)
	y := f.bid(t, dealerY, a.ID, 47000)

	f.clock.Advance(2 * oneHour)
	sched := NewScheduler(f.auctions, f.engine, f.clock, SchedulerConfig{}, zerolog.Nop())
	closed, err := sched.Sweep(context.Background())
	if err != nil || closed != 1 {
		t.Fatalf("sweep: closed=%d err=%v", closed, err)
	}

	got, _ := f.auctions.Get(context.Background(), a.ID)
	if got.Status != domain.AuctionClosed {
		t.Fatalf("expected closed, got %s", got.Status)
	}
	if s := f.statusOf(t, a.ID, y.ID); s != domain.BidWinning {
		t.Fatalf("Y should win, got %s", s)
	}
	if s := f.statusOf(t, a.ID, x.ID); s != domain.BidLost {
		t.Fatalf("X should lose, got %s", s)
	}

	closedEvents := f.notifier.byType(domain.EventClosed)
	if len(closedEvents) != 1 {
		t.Fatalf("expected one closed event, got %d", len(closedEvents))
	}
	payload := closedEvents[0].Payload.(domain.ClosedPayload)
	if payload.WinningBidID != y.ID || !payload.WinningPrice.Equal(usd(47000)) || payload.Forced {
		t.Fatalf("unexpected closed payload %+v", payload)
	}
}

func TestEngine_Scenario_RebidSupersedes(t *testing.T) {
	f := newEngineFixture()
	a := f.createAuction(t, 50000, oneHour)
	first := f.bid(t, dealerX, a.ID, 48000)
	second := f.bid(t, dealerX, a.ID, 46000)

	live, _ := f.bids.ListLive(context.Background(), a.ID)
	if len(live) != 1 || live[0].ID != second.ID {
		t.Fatalf("only the re-bid may be live, got %+v", live)
	}
	if s := f.statusOf(t, a.ID, first.ID); s != domain.BidLost {
		t.Fatalf("superseded bid should be lost, got %s", s)
	}
}

// ---------------------------------------------------------------------------
// SubmitBid: other rules
// ---------------------------------------------------------------------------

func TestEngine_SubmitBid_Rejections(t *testing.T) {
	f := newEngineFixture()
	a := f.createAuction(t, 50000, oneHour)
	ctx := context.Background()

	tests := []struct {
		name    string
		who     domain.Identity
		id      string
		price   decimal.Decimal
		wantErr error
	}{
		{"unknown auction", dealerX, "nope", usd(100), domain.ErrNotFound},
		{"zero price", dealerX, a.ID, decimal.Zero, domain.ErrValidation},
		{"negative price", dealerX, a.ID, usd(-5), domain.ErrValidation},
		{"unverified dealer", rookie, a.ID, usd(100), domain.ErrAuthorization},
		{"buyer cannot bid", buyer, a.ID, usd(100), domain.ErrAuthorization},
		{"rounds above budget", dealerX, a.ID, decimal.RequireFromString("50000.005"), domain.ErrValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.SubmitBid(ctx, tc.who, ports.SubmitBidInput{AuctionID: tc.id, Price: tc.price})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	b, err := f.engine.SubmitBid(ctx, dealerX, ports.SubmitBidInput{AuctionID: a.ID, Price: usd(50000)})
	if err != nil {
		t.Fatalf("price equal to budget must be accepted: %v", err)
	}
	if b.Status != domain.BidWinning {
		t.Fatalf("unexpected status %s", b.Status)
	}
}

func TestEngine_SubmitBid_NotStarted(t *testing.T) {
	f := newEngineFixture()
	a, err := f.engine.CreateAuction(context.Background(), buyer, ports.CreateAuctionInput{
		MaxBudget: usd(1000),
		StartsAt:  start.Add(time.Hour),
		EndsAt:    start.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = f.engine.SubmitBid(context.Background(), dealerX, ports.SubmitBidInput{AuctionID: a.ID, Price: usd(900)})
	if !errors.Is(err, domain.ErrAuctionClosed) {
		t.Fatalf("expected ErrAuctionClosed, got %v", err)
	}
}

func TestEngine_SubmitBid_ConcurrentDealers(t *testing.T) {
	f := newEngineFixture()
	a := f.createAuction(t, 100000, oneHour)

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			who := domain.Identity{UserID: fmt.Sprintf("dealer-%02d", i), Role: domain.RoleDealer, Verified: true}
			_, err := f.engine.SubmitBid(context.Background(), who, ports.SubmitBidInput{
				AuctionID: a.ID,
				Price:     usd(int64(90000 - i*100)),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent bid failed: %v", err)
		}
	}

	live, _ := f.bids.ListLive(context.Background(), a.ID)
	if len(live) != n {
		t.Fatalf("expected %d live bids, got %d", n, len(live))
	}
	winners := 0
	for _, b := range live {
		if b.Status == domain.BidWinning {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
	if want := usd(90000 - (n-1)*100); !live[0].Price.Equal(want) || live[0].Status != domain.BidWinning {
		t.Fatalf("winner should hold minimum %s, got %s (%s)", want, live[0].Price, live[0].Status)
	}
}

// A bid racing a close either lands before the close and is considered, or is
// rejected. It is never accepted into a closed auction.
func TestEngine_CloseLinearizableWithBids(t *testing.T) {
	for round := 0; round < 20; round++ {
		f := newEngineFixture()
		a := f.createAuction(t, 50000, oneHour)
		f.bid(t, dealerX, a.ID, 48000)

		var wg sync.WaitGroup
		var bidErr error
		var placed *domain.Bid
		wg.Add(2)
		go func() {
			defer wg.Done()
			placed, bidErr = f.engine.SubmitBid(context.Background(), dealerY, ports.SubmitBidInput{AuctionID: a.ID, Price: usd(47000)})
		}()
		go func() {
			defer wg.Done()
			if _, err := f.engine.ForceStatus(context.Background(), admin, a.ID, "closed"); err != nil {
				t.Errorf("force close: %v", err)
			}
		}()
		wg.Wait()

		live, _ := f.bids.ListByAuction(context.Background(), a.ID)
		var winning []domain.Bid
		for _, b := range live {
			if b.Status == domain.BidWinning {
				winning = append(winning, b)
			}
			if b.Status == domain.BidActive {
				t.Fatalf("round %d: closed auction still has an active bid %+v", round, b)
			}
		}
		if len(winning) != 1 {
			t.Fatalf("round %d: expected one final winner, got %d", round, len(winning))
		}
		if bidErr == nil && winning[0].ID != placed.ID {
			t.Fatalf("round %d: accepted lower bid was not considered at close", round)
		}
		if bidErr != nil && !errors.Is(bidErr, domain.ErrAuctionClosed) {
			t.Fatalf("round %d: unexpected bid error %v", round, bidErr)
		}
	}
}

// pausingLedger holds Place until resumed, standing in for a slow write issued
// by another engine instance.
type pausingLedger struct {
	*memory.BidLedger
	once    sync.Once
	entered chan struct{}
	resume  chan struct{}
}

func newPausingLedger(l *memory.BidLedger) *pausingLedger {
	return &pausingLedger{BidLedger: l, entered: make(chan struct{}), resume: make(chan struct{})}
}

func (l *pausingLedger) Place(ctx context.Context, draft domain.BidDraft) (*domain.PlaceResult, error) {
	l.once.Do(func() {
		close(l.entered)
		<-l.resume
	})
	return l.BidLedger.Place(ctx, draft)
}

// pausingStore holds the first Transition until resumed.
type pausingStore struct {
	*memory.AuctionStore
	once    sync.Once
	entered chan struct{}
	resume  chan struct{}
}

func newPausingStore(s *memory.AuctionStore) *pausingStore {
	return &pausingStore{AuctionStore: s, entered: make(chan struct{}), resume: make(chan struct{})}
}

func (s *pausingStore) Transition(ctx context.Context, id string, expectedVersion int64, status domain.AuctionStatus) (*domain.AuctionRequest, error) {
	s.once.Do(func() {
		close(s.entered)
		<-s.resume
	})
	return s.AuctionStore.Transition(ctx, id, expectedVersion, status)
}

// Two engines share one store but not a lock, as two replicas without Redis do.
func TestEngine_SharedStore_BidHeldAcrossCloseIsRefused(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	a := f.createAuction(t, 50000, oneHour)
	x := f.bid(t, dealerX, a.ID, 48000)

	held := newPausingLedger(f.bids)
	replica := NewAuctionEngine(f.auctions, held, lock.NewKeyed(time.Second), f.clock, f.notifier, zerolog.Nop())

	errc := make(chan error, 1)
	go func() {
		_, err := replica.SubmitBid(ctx, dealerY, ports.SubmitBidInput{AuctionID: a.ID, Price: usd(47000)})
		errc <- err
	}()
	<-held.entered

	if _, err := f.engine.ForceStatus(ctx, admin, a.ID, "closed"); err != nil {
		t.Fatalf("force close: %v", err)
	}
	close(held.resume)

	if err := <-errc; !errors.Is(err, domain.ErrAuctionClosed) {
		t.Fatalf("bid admitted after close: expected ErrAuctionClosed, got %v", err)
	}
	history, _ := f.bids.ListByAuction(ctx, a.ID)
	if len(history) != 1 {
		t.Fatalf("closed auction must not record new bids, got %d", len(history))
	}
	if f.statusOf(t, a.ID, x.ID) != domain.BidWinning {
		t.Fatalf("winner fixed at close must not change")
	}
}

func TestEngine_SharedStore_BidBeforeCloseIsRanked(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	a := f.createAuction(t, 50000, oneHour)
	x := f.bid(t, dealerX, a.ID, 48000)

	slow := newPausingStore(f.auctions)
	closer := NewAuctionEngine(slow, f.bids, lock.NewKeyed(time.Second), f.clock, f.notifier, zerolog.Nop())

	errc := make(chan error, 1)
	go func() {
		_, err := closer.ForceStatus(ctx, admin, a.ID, "closed")
		errc <- err
	}()
	<-slow.entered

	// The closer has read the auction but not yet transitioned it.
	y := f.bid(t, dealerY, a.ID, 47000)
	close(slow.resume)

	if err := <-errc; err != nil {
		t.Fatalf("force close: %v", err)
	}
	got, _ := f.auctions.Get(ctx, a.ID)
	if got.Status != domain.AuctionClosed {
		t.Fatalf("expected closed, got %s", got.Status)
	}
	if f.statusOf(t, a.ID, y.ID) != domain.BidWinning || f.statusOf(t, a.ID, x.ID) != domain.BidLost {
		t.Fatalf("bid accepted before close must be ranked at close")
	}
	closedEvents := f.notifier.byType(domain.EventClosed)
	if len(closedEvents) != 1 {
		t.Fatalf("expected one closed event, got %d", len(closedEvents))
	}
	if p := closedEvents[0].Payload.(domain.ClosedPayload); p.WinningBidID != y.ID {
		t.Fatalf("closed event names %s, want %s", p.WinningBidID, y.ID)
	}
}

func TestEngine_CloseSettlesPartiallyClosedAuction(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	a := f.createAuction(t, 50000, oneHour)
	x := f.bid(t, dealerX, a.ID, 48000)
	y := f.bid(t, dealerY, a.ID, 47000)

	// Closed by a process that stopped before settling the bids.
	current, _ := f.auctions.Get(ctx, a.ID)
	if _, err := f.auctions.Transition(ctx, a.ID, current.Version, domain.AuctionClosed); err != nil {
		t.Fatalf("transition: %v", err)
	}
	f.clock.Advance(oneHour)

	if closed, err := f.engine.CloseIfExpired(ctx, a.ID); err != nil || closed {
		t.Fatalf("already closed: closed=%v err=%v", closed, err)
	}
	if f.statusOf(t, a.ID, y.ID) != domain.BidWinning || f.statusOf(t, a.ID, x.ID) != domain.BidLost {
		t.Fatalf("closed auction should be settled on the next close attempt")
	}
}

// ---------------------------------------------------------------------------
// CloseIfExpired
// ---------------------------------------------------------------------------

func TestEngine_CloseIfExpired_Idempotent(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	a := f.createAuction(t, 50000, oneHour)
	f.bid(t, dealerX, a.ID, 48000)
	y := f.bid(t, dealerY, a.ID, 47000)

	if closed, err := f.engine.CloseIfExpired(ctx, a.ID); err != nil || closed {
		t.Fatalf("before deadline must be a no-op: closed=%v err=%v", closed, err)
	}

	f.clock.Advance(oneHour)
	if closed, err := f.engine.CloseIfExpired(ctx, a.ID); err != nil || !closed {
		t.Fatalf("expected close: closed=%v err=%v", closed, err)
	}
	before, _ := f.bids.ListByAuction(ctx, a.ID)
	afterClose, _ := f.auctions.Get(ctx, a.ID)

	if closed, err := f.engine.CloseIfExpired(ctx, a.ID); err != nil || closed {
		t.Fatalf("second close must be a no-op: closed=%v err=%v", closed, err)
	}
	after, _ := f.bids.ListByAuction(ctx, a.ID)
	again, _ := f.auctions.Get(ctx, a.ID)

	if again.Version != afterClose.Version {
		t.Fatalf("second close changed the auction version")
	}
	for i := range before {
		if before[i].Status != after[i].Status {
			t.Fatalf("bid %s changed from %s to %s", before[i].ID, before[i].Status, after[i].Status)
		}
	}
	if f.statusOf(t, a.ID, y.ID) != domain.BidWinning {
		t.Fatalf("winner must stay fixed")
	}
	if n := len(f.notifier.byType(domain.EventClosed)); n != 1 {
		t.Fatalf("expected one closed event, got %d", n)
	}
}

func TestEngine_CloseIfExpired_ConcurrentClosers(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	a := f.createAuction(t, 50000, oneHour)
	f.bid(t, dealerX, a.ID, 48000)
	f.clock.Advance(oneHour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			closed, err := f.engine.CloseIfExpired(ctx, a.ID)
			if err != nil {
				t.Errorf("close: %v", err)
			}
			if closed {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("exactly one closer should report the transition, got %d", wins)
	}
}

func TestEngine_CloseWithoutBids(t *testing.T) {
	f := newEngineFixture()
	a := f.createAuction(t, 50000, oneHour)
	f.clock.Advance(oneHour)

	if closed, err := f.engine.CloseIfExpired(context.Background(), a.ID); err != nil || !closed {
		t.Fatalf("close: closed=%v err=%v", closed, err)
	}
	payload := f.notifier.byType(domain.EventClosed)[0].Payload.(domain.ClosedPayload)
	if payload.WinningBidID != "" || payload.WinningPrice != nil {
		t.Fatalf("no bids means no winner, got %+v", payload)
	}
}

// ---------------------------------------------------------------------------
// Cancel / ForceStatus
// ---------------------------------------------------------------------------

func TestEngine_Cancel(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()

	a := f.createAuction(t, 50000, oneHour)
	other := domain.Identity{UserID: "buyer-2", Role: domain.RoleBuyer}
	if _, err := f.engine.Cancel(ctx, other, a.ID); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("non-owner: expected ErrAuthorization, got %v", err)
	}
	got, err := f.engine.Cancel(ctx, buyer, a.ID)
	if err != nil {
		t.Fatalf("owner cancel: %v", err)
	}
	if got.Status != domain.AuctionCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}
	if _, err := f.engine.Cancel(ctx, buyer, a.ID); !errors.Is(err, domain.ErrState) {
		t.Fatalf("re-cancel: expected ErrState, got %v", err)
	}
	if _, err := f.engine.SubmitBid(ctx, dealerX, ports.SubmitBidInput{AuctionID: a.ID, Price: usd(10)}); !errors.Is(err, domain.ErrAuctionClosed) {
		t.Fatalf("bid on cancelled: expected ErrAuctionClosed, got %v", err)
	}

	withBids := f.createAuction(t, 50000, oneHour)
	f.bid(t, dealerX, withBids.ID, 48000)
	f.bid(t, dealerX, withBids.ID, 47000)
	if _, err := f.engine.Cancel(ctx, admin, withBids.ID); !errors.Is(err, domain.ErrState) {
		t.Fatalf("cancel with bids: expected ErrState, got %v", err)
	}
}

func TestEngine_ForceStatus(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	a := f.createAuction(t, 50000, oneHour)
	x := f.bid(t, dealerX, a.ID, 48000)

	if _, err := f.engine.ForceStatus(ctx, buyer, a.ID, "closed"); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("buyer force: expected ErrAuthorization, got %v", err)
	}
	if _, err := f.engine.ForceStatus(ctx, admin, a.ID, "paused"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown status: expected ErrValidation, got %v", err)
	}
	if _, err := f.engine.ForceStatus(ctx, admin, a.ID, "active"); !errors.Is(err, domain.ErrState) {
		t.Fatalf("force active: expected ErrState, got %v", err)
	}

	got, err := f.engine.ForceStatus(ctx, admin, a.ID, "closed")
	if err != nil {
		t.Fatalf("force close: %v", err)
	}
	if got.Status != domain.AuctionClosed {
		t.Fatalf("expected closed, got %s", got.Status)
	}
	if f.statusOf(t, a.ID, x.ID) != domain.BidWinning {
		t.Fatalf("head of ranking should win a forced close")
	}
	if p := f.notifier.byType(domain.EventClosed)[0].Payload.(domain.ClosedPayload); !p.Forced {
		t.Fatalf("closed event should be marked forced")
	}

	if _, err := f.engine.ForceStatus(ctx, admin, a.ID, "closed"); err != nil {
		t.Fatalf("re-close must be idempotent: %v", err)
	}
	if _, err := f.engine.ForceStatus(ctx, admin, a.ID, "cancelled"); !errors.Is(err, domain.ErrState) {
		t.Fatalf("cancel closed: expected ErrState, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func TestEngine_ListBids_Visibility(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	a := f.createAuction(t, 50000, oneHour)
	f.bid(t, dealerX, a.ID, 48000)
	f.bid(t, dealerX, a.ID, 46000)
	f.bid(t, dealerY, a.ID, 47000)

	full, err := f.engine.ListBids(ctx, buyer, a.ID)
	if err != nil || len(full) != 3 {
		t.Fatalf("owner sees history: len=%d err=%v", len(full), err)
	}
	adminView, _ := f.engine.ListBids(ctx, admin, a.ID)
	if len(adminView) != 3 {
		t.Fatalf("admin sees history, got %d", len(adminView))
	}
	dealerView, _ := f.engine.ListBids(ctx, dealerY, a.ID)
	if len(dealerView) != 2 {
		t.Fatalf("dealer sees live ranking only, got %d", len(dealerView))
	}
	if !dealerView[0].Price.Equal(usd(46000)) {
		t.Fatalf("live ranking should be price ascending")
	}
}

func TestEngine_ListDealerBids(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	a := f.createAuction(t, 50000, oneHour)
	f.bid(t, dealerX, a.ID, 48000)

	mine, err := f.engine.ListDealerBids(ctx, dealerX, dealerX.UserID)
	if err != nil || len(mine) != 1 {
		t.Fatalf("own bids: len=%d err=%v", len(mine), err)
	}
	if _, err := f.engine.ListDealerBids(ctx, dealerY, dealerX.UserID); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("other dealer: expected ErrAuthorization, got %v", err)
	}
	if _, err := f.engine.ListDealerBids(ctx, admin, dealerX.UserID); err != nil {
		t.Fatalf("admin: %v", err)
	}
}

func TestEngine_ListAuctions_RoleScoping(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	mine := f.createAuction(t, 50000, oneHour)
	other := domain.Identity{UserID: "buyer-2", Role: domain.RoleBuyer}
	theirs, err := f.engine.CreateAuction(ctx, other, ports.CreateAuctionInput{MaxBudget: usd(100)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.engine.Cancel(ctx, other, theirs.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	views, _ := f.engine.ListAuctions(ctx, buyer, ports.ListAuctionsInput{BuyerID: "buyer-2"})
	if len(views) != 1 || views[0].Auction.ID != mine.ID {
		t.Fatalf("buyer must only see own auctions, got %+v", views)
	}
	views, _ = f.engine.ListAuctions(ctx, dealerX, ports.ListAuctionsInput{})
	if len(views) != 1 || views[0].Auction.ID != mine.ID {
		t.Fatalf("dealer must only see active auctions, got %d", len(views))
	}
	views, _ = f.engine.ListAuctions(ctx, dealerX, ports.ListAuctionsInput{Status: "active"})
	if len(views) != 1 {
		t.Fatalf("dealer active filter: got %d", len(views))
	}
	if _, err := f.engine.ListAuctions(ctx, dealerX, ports.ListAuctionsInput{Status: "cancelled"}); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("dealer non-active filter: expected ErrAuthorization, got %v", err)
	}
	views, _ = f.engine.ListAuctions(ctx, admin, ports.ListAuctionsInput{Status: "cancelled"})
	if len(views) != 1 || views[0].Auction.ID != theirs.ID {
		t.Fatalf("admin filter by status failed, got %d", len(views))
	}
	if _, err := f.engine.ListAuctions(ctx, admin, ports.ListAuctionsInput{Status: "bogus"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("bad status: expected ErrValidation, got %v", err)
	}
}

func TestEngine_GetAuction_View(t *testing.T) {
	f := newEngineFixture()
	ctx := context.Background()
	a := f.createAuction(t, 50000, oneHour)
	f.bid(t, dealerX, a.ID, 48000)
	f.bid(t, dealerX, a.ID, 45000)
	f.clock.Advance(10 * time.Minute)

	v, err := f.engine.GetAuction(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v.BidCount != 2 || v.LiveBidCount != 1 {
		t.Fatalf("unexpected counts %d/%d", v.BidCount, v.LiveBidCount)
	}
	if v.LowestPrice == nil || !v.LowestPrice.Equal(usd(45000)) {
		t.Fatalf("unexpected lowest price %v", v.LowestPrice)
	}
	if v.TimeRemaining != 50*time.Minute {
		t.Fatalf("unexpected time remaining %v", v.TimeRemaining)
	}
	if _, err := f.engine.GetAuction(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Retry
// ---------------------------------------------------------------------------

type flakyLocker struct {
	failures int
	calls    int
}

func (l *flakyLocker) Lock(context.Context, string) (func(), error) {
	l.calls++
	if l.calls <= l.failures {
		return nil, domain.ErrConflict
	}
	return func() {}, nil
}

func TestEngine_RetriesConflicts(t *testing.T) {
	clk := clock.NewManual(start)
	auctions := memory.NewAuctionStore(clk)
	locker := &flakyLocker{failures: 2}
	engine := NewAuctionEngine(auctions, memory.NewBidLedger(auctions), locker, clk, &recordingNotifier{}, zerolog.Nop(), WithMaxRetries(3))

	a, err := engine.CreateAuction(context.Background(), buyer, ports.CreateAuctionInput{MaxBudget: usd(100)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := engine.SubmitBid(context.Background(), dealerX, ports.SubmitBidInput{AuctionID: a.ID, Price: usd(90)}); err != nil {
		t.Fatalf("expected success after retries: %v", err)
	}

	locker.calls, locker.failures = 0, 5
	_, err = engine.SubmitBid(context.Background(), dealerY, ports.SubmitBidInput{AuctionID: a.ID, Price: usd(80)})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict once retries are exhausted, got %v", err)
	}
	if locker.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", locker.calls)
	}
}
