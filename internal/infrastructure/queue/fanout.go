package queue

import (
	"context"

	"go.uber.org/multierr"

	"github.com/carbidx/auction-engine/internal/core/domain"
	"github.com/carbidx/auction-engine/internal/core/ports"
)

// Fanout publishes every event to each of its publishers in order and
// reports all failures together.
type Fanout []ports.EventPublisher

func (f Fanout) Publish(ctx context.Context, event domain.AuctionEvent) error {
	var errs error
	for _, p := range f {
		errs = multierr.Append(errs, p.Publish(ctx, event))
	}
	return errs
}
