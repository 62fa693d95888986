package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/carbidx/auction-engine/internal/api/metrics"
	"github.com/carbidx/auction-engine/internal/core/domain"
	"github.com/carbidx/auction-engine/internal/core/ports"
)

const (
	defaultMaxRetries      = 3
	defaultAuctionDuration = 24 * time.Hour
)

// AuctionEngine owns the auction lifecycle. It holds no state of its own beyond
// its collaborators; every cross-entity invariant is enforced here.
type AuctionEngine struct {
	auctions ports.AuctionStore
	bids     ports.BidLedger
	locker   ports.AuctionLocker
	clock    ports.Clock
	notifier ports.Notifier
	log      zerolog.Logger

	maxRetries      int
	defaultDuration time.Duration
}

// EngineOption tunes an AuctionEngine.
type EngineOption func(*AuctionEngine)

// WithMaxRetries bounds how often a conflicting read-modify-write is retried.
func WithMaxRetries(n int) EngineOption {
	return func(e *AuctionEngine) {
		if n > 0 {
			e.maxRetries = n
		}
	}
}

// WithDefaultDuration sets the auction length used when neither ends_at nor
// duration_hours is supplied.
func WithDefaultDuration(d time.Duration) EngineOption {
	return func(e *AuctionEngine) {
		if d > 0 {
			e.defaultDuration = d
		}
	}
}

func NewAuctionEngine(
	auctions ports.AuctionStore,
	bids ports.BidLedger,
	locker ports.AuctionLocker,
	clock ports.Clock,
	notifier ports.Notifier,
	log zerolog.Logger,
	opts ...EngineOption,
) *AuctionEngine {
	e := &AuctionEngine{
		auctions:        auctions,
		bids:            bids,
		locker:          locker,
		clock:           clock,
		notifier:        notifier,
		log:             log,
		maxRetries:      defaultMaxRetries,
		defaultDuration: defaultAuctionDuration,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ ports.AuctionService = (*AuctionEngine)(nil)

func (e *AuctionEngine) CreateAuction(ctx context.Context, caller domain.Identity, in ports.CreateAuctionInput) (*domain.AuctionRequest, error) {
	if err := domain.Authorize(caller, domain.ActionCreateAuction, ""); err != nil {
		return nil, err
	}
	if in.DurationHours < 0 {
		return nil, fmt.Errorf("%w: duration_hours must not be negative", domain.ErrValidation)
	}

	now := e.clock.Now()
	startsAt := in.StartsAt
	if startsAt.IsZero() {
		startsAt = now
	}
	endsAt := in.EndsAt
	if endsAt.IsZero() {
		d := e.defaultDuration
		if in.DurationHours > 0 {
			d = time.Duration(in.DurationHours) * time.Hour
		}
		endsAt = startsAt.Add(d)
	}
	if !endsAt.After(now) {
		return nil, fmt.Errorf("%w: ends_at must be in the future", domain.ErrValidation)
	}

	a, err := e.auctions.Create(ctx, domain.AuctionDraft{
		BuyerID:     caller.UserID,
		Title:       in.Title,
		Description: in.Description,
		Location:    in.Location,
		Vehicle:     in.Vehicle,
		MaxBudget:   domain.RoundMoney(in.MaxBudget),
		StartsAt:    startsAt,
		EndsAt:      endsAt,
	})
	if err != nil {
		return nil, fmt.Errorf("create auction: %w", err)
	}

	metrics.AuctionsCreatedTotal.Inc()
	e.log.Info().Str("auction_id", a.ID).Str("buyer_id", a.BuyerID).Time("ends_at", a.EndsAt).Msg("auction created")
	return a, nil
}

func (e *AuctionEngine) GetAuction(ctx context.Context, id string) (*ports.AuctionView, error) {
	a, err := e.auctions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.view(ctx, *a)
}

// ListAuctions applies role scoping: buyers only see their own requests and
// dealers only see active ones, so a dealer asking for any other status is
// refused. Admins filter freely.
func (e *AuctionEngine) ListAuctions(ctx context.Context, caller domain.Identity, in ports.ListAuctionsInput) ([]ports.AuctionView, error) {
	filter := ports.AuctionFilter{BuyerID: in.BuyerID}
	if in.Status != "" {
		status, err := domain.ParseAuctionStatus(in.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = status
	}

	switch caller.Role {
	case domain.RoleBuyer:
		filter.BuyerID = caller.UserID
	case domain.RoleDealer:
		if filter.Status != "" && filter.Status != domain.AuctionActive {
			return nil, fmt.Errorf("%w: dealers may only list active auctions", domain.ErrAuthorization)
		}
		filter.Status = domain.AuctionActive
	case domain.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrAuthorization, caller.Role)
	}

	auctions, err := e.auctions.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list auctions: %w", err)
	}
	views := make([]ports.AuctionView, 0, len(auctions))
	for _, a := range auctions {
		v, err := e.view(ctx, a)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

func (e *AuctionEngine) view(ctx context.Context, a domain.AuctionRequest) (*ports.AuctionView, error) {
	count, err := e.bids.CountByAuction(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("count bids: %w", err)
	}
	live, err := e.bids.ListLive(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list live bids: %w", err)
	}

	v := &ports.AuctionView{
		Auction:       a,
		BidCount:      int(count),
		LiveBidCount:  len(live),
		TimeRemaining: a.TimeRemaining(e.clock.Now()),
	}
	if len(live) > 0 {
		low := live[0].Price
		v.LowestPrice = &low
		v.WinningBidID = live[0].ID
	}
	return v, nil
}

// SubmitBid validates and records a dealer's offer under the auction's critical
// section. The returned bid carries its resulting status.
func (e *AuctionEngine) SubmitBid(ctx context.Context, caller domain.Identity, in ports.SubmitBidInput) (*domain.Bid, error) {
	price := domain.RoundMoney(in.Price)

	var (
		res     *domain.PlaceResult
		auction *domain.AuctionRequest
		now     time.Time
	)
	err := e.retry(ctx, func() error {
		release, err := e.locker.Lock(ctx, in.AuctionID)
		if err != nil {
			return err
		}
		defer release()

		auction, err = e.auctions.Get(ctx, in.AuctionID)
		if err != nil {
			return err
		}
		now = e.clock.Now()
		if err := auction.AcceptsBidsAt(now); err != nil {
			return err
		}
		if !price.IsPositive() {
			return fmt.Errorf("%w: price must be positive", domain.ErrValidation)
		}
		if price.GreaterThan(auction.MaxBudget) {
			return fmt.Errorf("%w: price %s exceeds max_budget %s", domain.ErrValidation, price.StringFixed(domain.MonetaryPrecision), auction.MaxBudget.StringFixed(domain.MonetaryPrecision))
		}
		if err := domain.Authorize(caller, domain.ActionSubmitBid, ""); err != nil {
			return err
		}

		res, err = e.bids.Place(ctx, domain.BidDraft{
			AuctionID:  auction.ID,
			DealerID:   caller.UserID,
			DealerTier: caller.DealerTier,
			Price:      price,
			Message:    in.Message,
			CreatedAt:  now,
		})
		return err
	})
	if err != nil {
		metrics.BidsTotal.WithLabelValues(domain.KindOf(err)).Inc()
		return nil, err
	}
	metrics.BidsTotal.WithLabelValues(string(res.Bid.Status)).Inc()

	e.log.Info().
		Str("auction_id", auction.ID).
		Str("bid_id", res.Bid.ID).
		Str("dealer_id", caller.UserID).
		Str("price", res.Bid.Price.StringFixed(domain.MonetaryPrecision)).
		Str("status", string(res.Bid.Status)).
		Msg("bid placed")

	count, err := e.bids.CountByAuction(ctx, auction.ID)
	if err != nil {
		e.log.Warn().Err(err).Str("auction_id", auction.ID).Msg("bid count for notification failed")
		count = int64(res.LiveCount)
	}
	e.notifier.Notify(domain.AuctionEvent{
		Event:     domain.EventBid,
		AuctionID: auction.ID,
		EmittedAt: now,
		Payload: domain.BidPayload{
			NewLowPrice:   res.LowPrice,
			BidCount:      int(count),
			TimeRemaining: int64(auction.TimeRemaining(now) / time.Second),
		},
	})

	bid := res.Bid
	return &bid, nil
}

// ListBids returns the full history to the owning buyer and admins, and the
// live ranking to everyone else.
func (e *AuctionEngine) ListBids(ctx context.Context, caller domain.Identity, auctionID string) ([]domain.Bid, error) {
	a, err := e.auctions.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if domain.Authorize(caller, domain.ActionViewFullBids, a.BuyerID) == nil {
		return e.bids.ListByAuction(ctx, auctionID)
	}
	return e.bids.ListLive(ctx, auctionID)
}

func (e *AuctionEngine) ListDealerBids(ctx context.Context, caller domain.Identity, dealerID string) ([]domain.Bid, error) {
	if err := domain.Authorize(caller, domain.ActionViewDealerBids, dealerID); err != nil {
		return nil, err
	}
	return e.bids.ListByDealer(ctx, dealerID)
}

// CloseIfExpired finalizes an auction whose deadline has passed. It is a no-op
// for auctions that are not active or not yet due, and is safe to call
// repeatedly and concurrently.
func (e *AuctionEngine) CloseIfExpired(ctx context.Context, auctionID string) (bool, error) {
	var closed bool
	err := e.retry(ctx, func() error {
		var err error
		closed, err = e.finalize(ctx, auctionID, false)
		return err
	})
	return closed, err
}

// finalize moves the auction to closed and then fixes the winner. With force
// set, the deadline check is skipped.
//
// The transition comes first: the ledger refuses bids on a closed auction and
// every admitted bid bumps the auction version, so once the compare-and-swap
// succeeds the live ranking can no longer change. A stale version surfaces as
// ErrConflict and the caller's retry re-reads.
func (e *AuctionEngine) finalize(ctx context.Context, auctionID string, force bool) (bool, error) {
	release, err := e.locker.Lock(ctx, auctionID)
	if err != nil {
		return false, err
	}
	defer release()

	a, err := e.auctions.Get(ctx, auctionID)
	if err != nil {
		return false, err
	}
	now := e.clock.Now()
	if a.Status == domain.AuctionClosed {
		// Another closer won, or a previous close stopped before settling.
		if _, err := e.settle(ctx, auctionID); err != nil {
			return false, fmt.Errorf("finalize %s: %w", auctionID, err)
		}
		return false, nil
	}
	if a.Status != domain.AuctionActive || (!force && !a.Expired(now)) {
		return false, nil
	}

	if _, err := e.auctions.Transition(ctx, auctionID, a.Version, domain.AuctionClosed); err != nil {
		return false, fmt.Errorf("finalize %s: %w", auctionID, err)
	}
	winner, err := e.settle(ctx, auctionID)
	if err != nil {
		e.log.Error().Err(err).Str("auction_id", auctionID).Msg("auction closed but bids not settled")
		return false, fmt.Errorf("finalize %s: %w", auctionID, err)
	}

	reason := "deadline"
	if force {
		reason = "forced"
	}
	metrics.AuctionsClosedTotal.WithLabelValues(reason).Inc()

	payload := domain.ClosedPayload{Forced: force}
	logEvt := e.log.Info().Str("auction_id", auctionID).Str("reason", reason)
	if winner != nil {
		price := winner.Price
		payload.WinningBidID = winner.ID
		payload.WinningPrice = &price
		logEvt = logEvt.Str("winning_bid_id", winner.ID).Str("winning_price", price.StringFixed(domain.MonetaryPrecision))
	}
	logEvt.Msg("auction closed")

	e.notifier.Notify(domain.AuctionEvent{
		Event:     domain.EventClosed,
		AuctionID: auctionID,
		EmittedAt: now,
		Payload:   payload,
	})
	return true, nil
}

// settle marks the head of the live ranking of a closed auction as the winner
// and every other live bid as lost. Already settled auctions are left alone.
func (e *AuctionEngine) settle(ctx context.Context, auctionID string) (*domain.Bid, error) {
	live, err := e.bids.ListLive(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if len(live) == 0 {
		return nil, nil
	}
	winner := live[0]
	if len(live) == 1 && winner.Status == domain.BidWinning {
		return &winner, nil
	}
	if err := e.bids.MarkFinal(ctx, auctionID, winner.ID); err != nil {
		return nil, err
	}
	winner.Status = domain.BidWinning
	return &winner, nil
}

// Cancel withdraws an auction that has not received any bid.
func (e *AuctionEngine) Cancel(ctx context.Context, caller domain.Identity, auctionID string) (*domain.AuctionRequest, error) {
	var out *domain.AuctionRequest
	err := e.retry(ctx, func() error {
		release, err := e.locker.Lock(ctx, auctionID)
		if err != nil {
			return err
		}
		defer release()

		a, err := e.auctions.Get(ctx, auctionID)
		if err != nil {
			return err
		}
		if err := domain.Authorize(caller, domain.ActionCancelAuction, a.BuyerID); err != nil {
			return err
		}
		if a.Status != domain.AuctionActive {
			return fmt.Errorf("%w: auction is %s", domain.ErrState, a.Status)
		}
		n, err := e.bids.CountByAuction(ctx, auctionID)
		if err != nil {
			return fmt.Errorf("cancel %s: %w", auctionID, err)
		}
		if n > 0 {
			return fmt.Errorf("%w: auction already has %d bid(s)", domain.ErrState, n)
		}

		out, err = e.auctions.Transition(ctx, auctionID, a.Version, domain.AuctionCancelled)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.AuctionsClosedTotal.WithLabelValues("cancelled").Inc()
	e.log.Info().Str("auction_id", auctionID).Str("by", caller.UserID).Msg("auction cancelled")
	e.notifier.Notify(domain.AuctionEvent{
		Event:     domain.EventCancelled,
		AuctionID: auctionID,
		EmittedAt: e.clock.Now(),
		Payload:   map[string]string{"cancelled_by": string(caller.Role)},
	})
	return out, nil
}

// ForceStatus is the admin override. Closing finalizes immediately regardless
// of the deadline; cancelling follows the usual cancel rules.
func (e *AuctionEngine) ForceStatus(ctx context.Context, caller domain.Identity, auctionID string, status string) (*domain.AuctionRequest, error) {
	if err := domain.Authorize(caller, domain.ActionForceStatus, ""); err != nil {
		return nil, err
	}
	target, err := domain.ParseAuctionStatus(status)
	if err != nil {
		return nil, err
	}

	switch target {
	case domain.AuctionCancelled:
		return e.Cancel(ctx, caller, auctionID)
	case domain.AuctionClosed:
		var closed bool
		err := e.retry(ctx, func() error {
			var err error
			closed, err = e.finalize(ctx, auctionID, true)
			return err
		})
		if err != nil {
			return nil, err
		}
		a, err := e.auctions.Get(ctx, auctionID)
		if err != nil {
			return nil, err
		}
		if !closed && a.Status != domain.AuctionClosed {
			return nil, fmt.Errorf("%w: auction is %s", domain.ErrState, a.Status)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("%w: cannot move an auction to %s", domain.ErrState, target)
	}
}

// retry re-runs fn while it fails with domain.ErrConflict, up to maxRetries
// attempts in total.
func (e *AuctionEngine) retry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		err = fn()
		if !errors.Is(err, domain.ErrConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		e.log.Debug().Err(err).Int("attempt", attempt).Msg("conflict, retrying")
	}
	return err
}
