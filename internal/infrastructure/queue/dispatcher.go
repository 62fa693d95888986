package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/carbidx/auction-engine/internal/api/metrics"
	"github.com/carbidx/auction-engine/internal/core/domain"
	"github.com/carbidx/auction-engine/internal/core/ports"
)

const (
	defaultWorkers  = 8
	channelBuffer   = 256
	publishDeadline = 5 * time.Second
)

// Dispatcher routes auction events to a fixed set of workers using consistent
// hashing on the auction id, guaranteeing per-auction event ordering. Notify
// never blocks: when a shard is full the event is dropped and counted.
type Dispatcher struct {
	workers   []chan domain.AuctionEvent
	publisher ports.EventPublisher
	log       zerolog.Logger
}

var _ ports.Notifier = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, publisher ports.EventPublisher, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:   make([]chan domain.AuctionEvent, numWorkers),
		publisher: publisher,
		log:       log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.AuctionEvent, channelBuffer)
	}
	return d
}

// Run launches all worker goroutines and blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	done := make(chan struct{}, len(d.workers))
	for i, ch := range d.workers {
		go func(id int, ch <-chan domain.AuctionEvent) {
			d.runWorker(ctx, id, ch)
			done <- struct{}{}
		}(i, ch)
	}
	for range d.workers {
		<-done
	}
	return nil
}

// Notify hands event to the worker responsible for its auction.
func (d *Dispatcher) Notify(event domain.AuctionEvent) {
	idx := d.shardIndex(event.AuctionID)
	select {
	case d.workers[idx] <- event:
		metrics.EventsQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		metrics.EventsDroppedTotal.WithLabelValues(string(event.Event)).Inc()
		d.log.Warn().
			Str("auction_id", event.AuctionID).
			Str("event", string(event.Event)).
			Int("worker_id", idx).
			Msg("event queue full, dropping")
	}
}

// shardIndex maps an auction id deterministically to a worker index.
func (d *Dispatcher) shardIndex(auctionID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(auctionID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.AuctionEvent) {
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-ch:
			metrics.EventsQueueDepth.WithLabelValues(label).Set(float64(len(ch)))

			pubCtx, cancel := context.WithTimeout(ctx, publishDeadline)
			err := d.publisher.Publish(pubCtx, event)
			cancel()

			if err != nil {
				metrics.EventsPublishedTotal.WithLabelValues(string(event.Event), "error").Inc()
				d.log.Error().Err(err).
					Str("auction_id", event.AuctionID).
					Str("event", string(event.Event)).
					Int("worker_id", id).
					Msg("event publish failed")
				continue
			}
			metrics.EventsPublishedTotal.WithLabelValues(string(event.Event), "ok").Inc()
		}
	}
}
