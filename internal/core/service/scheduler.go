package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/carbidx/auction-engine/internal/api/metrics"
	"github.com/carbidx/auction-engine/internal/core/ports"
)

const (
	defaultSweepInterval    = 2 * time.Second
	defaultSweepBatchSize   = 100
	defaultSweepConcurrency = 4
	maxSkipFactor           = 4
)

// AuctionCloser is the slice of the engine the scheduler drives.
type AuctionCloser interface {
	CloseIfExpired(ctx context.Context, auctionID string) (bool, error)
}

// SchedulerConfig tunes the sweep loop. Zero values fall back to defaults.
type SchedulerConfig struct {
	Interval    time.Duration
	BatchSize   int
	Concurrency int
}

// Scheduler periodically closes auctions whose deadline has passed.
// It keeps no recovery state: a sweep interrupted midway is simply redone on
// the next tick.
type Scheduler struct {
	auctions ports.AuctionStore
	closer   AuctionCloser
	clock    ports.Clock
	cfg      SchedulerConfig
	log      zerolog.Logger
}

func NewScheduler(auctions ports.AuctionStore, closer AuctionCloser, clock ports.Clock, cfg SchedulerConfig, log zerolog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSweepInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultSweepBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultSweepConcurrency
	}
	return &Scheduler{auctions: auctions, closer: closer, clock: clock, cfg: cfg, log: log}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.cfg.Interval).Int("batch_size", s.cfg.BatchSize).Msg("scheduler started")

	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("scheduler stopped: %w", err)
			}
			s.log.Info().Msg("scheduler stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	start := time.Now()
	closed, err := s.Sweep(ctx)
	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.log.Error().Err(err).Int("closed", closed).Msg("sweep finished with errors")
		return
	}
	if closed > 0 {
		s.log.Info().Int("closed", closed).Msg("sweep closed auctions")
	}
}

// Sweep closes every auction due at the current clock reading, one bounded
// batch at a time. Auctions that fail or are not closed are skipped for the
// rest of the sweep and retried on the next tick; once more than
// maxSkipFactor batches' worth have been skipped the sweep gives up early.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	var (
		total   int
		errs    error
		skipped = make(map[string]struct{})
	)
	maxSkipped := s.cfg.BatchSize * maxSkipFactor

	for {
		if err := ctx.Err(); err != nil {
			return total, multierr.Append(errs, err)
		}

		limit := s.cfg.BatchSize + len(skipped)
		listed, err := s.auctions.ListExpired(ctx, s.clock.Now(), limit)
		if err != nil {
			return total, multierr.Append(errs, fmt.Errorf("list expired: %w", err))
		}
		batch := make([]string, 0, len(listed))
		for _, a := range listed {
			if _, skip := skipped[a.ID]; !skip {
				batch = append(batch, a.ID)
			}
		}
		metrics.SweepBacklog.Set(float64(len(batch)))
		if len(batch) == 0 {
			return total, errs
		}

		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.Concurrency)
		for _, id := range batch {
			g.Go(func() error {
				ok, err := s.closer.CloseIfExpired(gctx, id)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					errs = multierr.Append(errs, fmt.Errorf("close %s: %w", id, err))
					skipped[id] = struct{}{}
				case ok:
					total++
				default:
					skipped[id] = struct{}{}
				}
				return nil
			})
		}
		_ = g.Wait()

		if len(listed) < limit || len(skipped) >= maxSkipped {
			return total, errs
		}
	}
}
