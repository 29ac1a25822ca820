// Package service is the command and query surface over the auction and
// item stores. Every successful auction mutation is written back to the
// store before its events are handed to the outbox publisher.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"auction-api/domain"
	"auction-api/outbox"
	"auction-api/storage"
)

const tracerName = "auction-api/service"

// Service owns the item catalog, the auctions and the index guaranteeing a
// single active auction per item.
type Service struct {
	items        *storage.Store[uuid.UUID, domain.Item]
	auctions     *storage.Store[uuid.UUID, *domain.Auction]
	activeByItem *storage.Store[uuid.UUID, uuid.UUID]
	publishLocks *storage.KeyLocks[uuid.UUID]

	publisher       *outbox.Publisher
	logger          *log.Logger
	now             func() time.Time
	deliveryTimeout time.Duration
}

type Option func(*Service)

// WithClock replaces the wall clock used to stamp bids and events.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithShards sets the shard count of every store.
func WithShards(n int) Option {
	return func(s *Service) {
		s.items = storage.New[uuid.UUID, domain.Item](n)
		s.auctions = storage.New[uuid.UUID, *domain.Auction](n)
		s.activeByItem = storage.New[uuid.UUID, uuid.UUID](n)
		s.publishLocks = storage.NewKeyLocks[uuid.UUID](n)
	}
}

// WithDeliveryTimeout bounds each outbox publish that follows a mutation.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.deliveryTimeout = d
		}
	}
}

func New(publisher *outbox.Publisher, logger *log.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if publisher == nil {
		publisher = outbox.NewPublisher(outbox.NewLogSink(logger), logger)
	}
	s := &Service{
		publisher:       publisher,
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
		deliveryTimeout: 5 * time.Second,
	}
	WithShards(storage.DefaultShards)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publisher exposes the publisher so callers can report its counters.
func (s *Service) Publisher() *outbox.Publisher { return s.publisher }

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "service."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
