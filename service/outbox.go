package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"auction-api/domain"
	"auction-api/storage"
)

// storedOutbox drains and requeues the pending events of the stored copy of
// one auction, so both steps are visible to every later reader.
type storedOutbox struct {
	auctions *storage.Store[uuid.UUID, *domain.Auction]
	id       uuid.UUID
	drained  int
	requeued int
}

func (o *storedOutbox) DrainEvents() []domain.Event {
	var evs []domain.Event
	_, err := o.auctions.Mutate(o.id, func(a *domain.Auction) (*domain.Auction, error) {
		evs = a.DrainEvents()
		return a, nil
	})
	if err != nil {
		return nil
	}
	o.drained += len(evs)
	return evs
}

func (o *storedOutbox) RequeueEvents(evs []domain.Event) {
	_, err := o.auctions.Mutate(o.id, func(a *domain.Auction) (*domain.Auction, error) {
		a.RequeueEvents(evs)
		return a, nil
	})
	if err == nil {
		o.requeued += len(evs)
	}
}

// publish delivers the pending events of one auction. Publishes of the same
// auction never overlap, so events leave in the order they were produced.
// The caller's cancellation is ignored; undelivered events stay queued for
// the relay.
func (s *Service) publish(ctx context.Context, id uuid.UUID) (int, error) {
	unlock := s.publishLocks.Lock(id)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deliveryTimeout)
	defer cancel()

	src := &storedOutbox{auctions: s.auctions, id: id}
	err := s.publisher.Publish(ctx, src)
	return src.drained - src.requeued, err
}

// publishAfterCommit publishes after a committed mutation. A delivery
// failure does not fail the mutation.
func (s *Service) publishAfterCommit(ctx context.Context, id uuid.UUID) {
	if _, err := s.publish(ctx, id); err != nil {
		s.logger.WithError(err).WithField("auction", id).Warn("events kept for redelivery")
	}
}

// FlushPending publishes every auction that still holds undelivered events
// and returns how many events were delivered.
func (s *Service) FlushPending(ctx context.Context) (n int, err error) {
	ctx, span := s.startSpan(ctx, "FlushPending")
	defer func() {
		span.SetAttributes(attribute.Int("outbox.delivered", n))
		endSpan(span, err)
	}()

	pending := s.auctions.Search(func(a *domain.Auction) bool {
		return len(a.PendingEvents()) > 0
	})
	var errs []error
	for _, a := range pending {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		delivered, perr := s.publish(ctx, a.ID())
		n += delivered
		if perr != nil {
			errs = append(errs, fmt.Errorf("auction %s: %w", a.ID(), perr))
		}
	}
	if len(errs) > 0 {
		return n, errors.Join(errs...)
	}
	if n > 0 {
		s.logger.WithFields(log.Fields{"delivered": n, "auctions": len(pending)}).Debug("flushed pending events")
	}
	return n, nil
}
