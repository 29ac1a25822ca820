package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"auction-api/domain"
)

// SubjectPrefix prefixes the per-auction JetStream subject.
const SubjectPrefix = "auction.events."

type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSSink publishes event envelopes to JetStream and waits for the ack.
// The event id is sent as the message id so redelivered events are
// deduplicated by the server.
type NATSSink struct {
	js streamPublisher
}

// NewNATSSink ensures the stream exists and returns a sink publishing to it.
func NewNATSSink(ctx context.Context, js jetstream.JetStream, stream string) (*NATSSink, error) {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        stream,
		Description: "Auction domain events",
		Subjects:    []string{SubjectPrefix + "*"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      24 * time.Hour,
		Duplicates:  10 * time.Minute,
		Replicas:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("create or update stream %s: %w", stream, err)
	}
	return &NATSSink{js: js}, nil
}

func (s *NATSSink) Deliver(ctx context.Context, ev domain.Event) error {
	payload, err := domain.EncodeEvent(ev)
	if err != nil {
		return err
	}
	meta := ev.Meta()
	subject := SubjectPrefix + meta.AuctionID.String()
	if _, err := s.js.Publish(ctx, subject, payload, jetstream.WithMsgID(meta.ID.String())); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}
