package outbox

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"auction-api/domain"
)

// LogSink writes one log entry per event. It never fails.
type LogSink struct {
	logger *log.Logger
}

func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Deliver(_ context.Context, ev domain.Event) error {
	meta := ev.Meta()
	s.logger.WithFields(log.Fields{
		"event":    meta.ID,
		"type":     ev.Type(),
		"auction":  meta.AuctionID,
		"item":     meta.ItemID,
		"occurred": meta.OccurredOn,
	}).Info("domain event dispatched")
	return nil
}

// FanoutSink delivers each event to every sink in order and stops at the
// first failure.
type FanoutSink []Sink

func (f FanoutSink) Deliver(ctx context.Context, ev domain.Event) error {
	for i, s := range f {
		if err := s.Deliver(ctx, ev); err != nil {
			return fmt.Errorf("sink %d: %w", i, err)
		}
	}
	return nil
}
