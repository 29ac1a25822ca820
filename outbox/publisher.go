package outbox

import (
	"context"
	"fmt"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"auction-api/domain"
)

// Sink delivers a single event to external subscribers.
type Sink interface {
	Deliver(ctx context.Context, ev domain.Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev domain.Event) error

func (f SinkFunc) Deliver(ctx context.Context, ev domain.Event) error { return f(ctx, ev) }

// Source is anything holding pending events.
type Source interface {
	DrainEvents() []domain.Event
}

// Requeuer is implemented by sources that can take undelivered events back.
type Requeuer interface {
	RequeueEvents(evs []domain.Event)
}

// DeliveryError reports the event that failed and every drained event that
// was not delivered, the failed one included.
type DeliveryError struct {
	Event       domain.Event
	Undelivered []domain.Event
	Err         error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s event %s: %v", e.Event.Type(), e.Event.Meta().ID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Publisher drains a source and hands its events to a sink one at a time.
type Publisher struct {
	sink      Sink
	logger    *log.Logger
	delivered atomic.Uint64
	failed    atomic.Uint64
}

// NewPublisher creates a publisher delivering to sink.
func NewPublisher(sink Sink, logger *log.Logger) *Publisher {
	if sink == nil {
		panic("outbox: sink is required")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Publisher{sink: sink, logger: logger}
}

// Publish drains src and delivers its events in FIFO order, waiting for each
// delivery before starting the next. On the first failure the remaining
// events are handed back to src when it implements Requeuer, so a later
// Publish retries them in their original order.
func (p *Publisher) Publish(ctx context.Context, src Source) error {
	evs := src.DrainEvents()
	for i, ev := range evs {
		err := ctx.Err()
		if err == nil {
			err = p.sink.Deliver(ctx, ev)
		}
		if err != nil {
			rest := evs[i:]
			if rq, ok := src.(Requeuer); ok {
				rq.RequeueEvents(rest)
			}
			p.failed.Add(1)
			meta := ev.Meta()
			p.logger.WithError(err).WithFields(log.Fields{
				"auction":     meta.AuctionID,
				"event":       meta.ID,
				"type":        ev.Type(),
				"undelivered": len(rest),
			}).Warn("outbox delivery failed")
			return &DeliveryError{Event: ev, Undelivered: rest, Err: err}
		}
		p.delivered.Add(1)
	}
	return nil
}

// Counts returns how many events were delivered and how many deliveries failed.
func (p *Publisher) Counts() (delivered, failed uint64) {
	return p.delivered.Load(), p.failed.Load()
}
