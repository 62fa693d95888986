// Package metrics defines and registers all custom Prometheus metrics for the
// auction engine. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics are registered with the default Prometheus registry on package init
// via promauto and exposed on /metrics by the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "auction"

// ── Bid metrics ───────────────────────────────────────────────────────────────

// BidsTotal counts bid submissions by outcome.
// Label:
//   - result: the resulting bid status ("winning", "active") or the error kind
//     on rejection (e.g. "validation", "auction_closed", "authorization")
var BidsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bids_total",
		Help:      "Total number of bid submissions, labelled by outcome.",
	},
	[]string{"result"},
)

// ── Auction metrics ───────────────────────────────────────────────────────────

// AuctionsCreatedTotal counts newly created auction requests.
var AuctionsCreatedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auctions_created_total",
		Help:      "Total number of auction requests created.",
	},
)

// AuctionsClosedTotal counts auctions leaving the active state.
// Label:
//   - reason: "deadline", "forced", or "cancelled"
var AuctionsClosedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auctions_closed_total",
		Help:      "Total number of auctions closed or cancelled, by reason.",
	},
	[]string{"reason"},
)

// ── Scheduler metrics ─────────────────────────────────────────────────────────

// SweepDuration measures one full scheduler sweep.
var SweepDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scheduler_sweep_duration_seconds",
		Help:      "Duration of a deadline sweep across all due auctions.",
		Buckets:   prometheus.DefBuckets,
	},
)

// SweepBacklog is the size of the last batch of due auctions the scheduler saw.
var SweepBacklog = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "scheduler_backlog",
		Help:      "Number of due auctions in the most recent sweep batch.",
	},
)

// ── Event metrics ─────────────────────────────────────────────────────────────

// EventsPublishedTotal counts push events handed to the publisher.
// Labels:
//   - event: "bid", "closed", "cancelled"
//   - result: "ok" or "error"
var EventsPublishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Total number of push events published, by type and result.",
	},
	[]string{"event", "result"},
)

// EventsDroppedTotal counts events discarded because a dispatcher shard was full.
var EventsDroppedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dropped_total",
		Help:      "Total number of push events dropped due to back-pressure.",
	},
	[]string{"event"},
)

// EventsQueueDepth tracks the current number of events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var EventsQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "events_queue_depth",
		Help:      "Current number of events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// ── Push channel metrics ──────────────────────────────────────────────────────

// PushConnections is the number of open websocket subscriptions.
var PushConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "push_connections",
		Help:      "Number of open push-channel websocket connections.",
	},
)
