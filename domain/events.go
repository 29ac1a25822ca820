package domain

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	AuctionStarted = "auction-started"
	BidPlaced      = "bid-placed"
	AuctionClosed  = "auction-closed"
)

// EntityAuction is the entity type stamped on every auction envelope.
const EntityAuction = "auction"

// EventMeta holds the fields shared by every auction event.
type EventMeta struct {
	ID         uuid.UUID `json:"id"`
	AuctionID  uuid.UUID `json:"auctionId"`
	ItemID     uuid.UUID `json:"itemId"`
	OccurredOn time.Time `json:"occurredOn"`
}

// Event is an immutable record of an auction state change.
type Event interface {
	Type() string
	Meta() EventMeta
}

type AuctionStartedEvent struct {
	EventMeta
	StartingPrice decimal.Decimal `json:"startingPrice"`
}

type BidPlacedEvent struct {
	EventMeta
	Amount   decimal.Decimal `json:"amount"`
	BidderID uuid.UUID       `json:"bidderId"`
	PlacedAt time.Time       `json:"placedAt"`
}

type AuctionClosedEvent struct {
	EventMeta
	FinalPrice decimal.Decimal `json:"finalPrice"`
	ClosedAt   time.Time       `json:"closedAt"`
}

func (AuctionStartedEvent) Type() string { return AuctionStarted }
func (BidPlacedEvent) Type() string      { return BidPlaced }
func (AuctionClosedEvent) Type() string  { return AuctionClosed }

func (e AuctionStartedEvent) Meta() EventMeta { return e.EventMeta }
func (e BidPlacedEvent) Meta() EventMeta      { return e.EventMeta }
func (e AuctionClosedEvent) Meta() EventMeta  { return e.EventMeta }

func newMeta(a *Auction, at time.Time) EventMeta {
	return EventMeta{ID: uuid.New(), AuctionID: a.id, ItemID: a.itemID, OccurredOn: at}
}

// Envelope is the wire representation handed to external subscribers.
type Envelope struct {
	ID         string                 `json:"id"`
	EntityID   string                 `json:"entityId"`
	EntityType string                 `json:"entityType"`
	Type       string                 `json:"type"`
	Data       sonic.NoCopyRawMessage `json:"data"`
	Time       int64                  `json:"time"`
}

// NewEnvelope wraps ev for delivery.
func NewEnvelope(ev Event) (Envelope, error) {
	data, err := sonic.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s event: %w", ev.Type(), err)
	}
	meta := ev.Meta()
	return Envelope{
		ID:         meta.ID.String(),
		EntityID:   meta.AuctionID.String(),
		EntityType: EntityAuction,
		Type:       ev.Type(),
		Data:       data,
		Time:       meta.OccurredOn.UnixNano(),
	}, nil
}

// EncodeEvent returns the JSON envelope for ev.
func EncodeEvent(ev Event) ([]byte, error) {
	env, err := NewEnvelope(ev)
	if err != nil {
		return nil, err
	}
	return sonic.Marshal(env)
}
