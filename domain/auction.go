package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an auction.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// ParseStatus resolves a wire name into a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusActive, StatusClosed:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown auction status %q", ErrInvalidArgument, s)
	}
}

// Bid is an accepted offer on an auction.
type Bid struct {
	Amount   decimal.Decimal `json:"amount"`
	BidderID uuid.UUID       `json:"bidderId"`
	PlacedAt time.Time       `json:"placedAt"`
}

// Auction is the aggregate enforcing bid ordering and the close-once rule.
// Mutating operations never touch the receiver: they return the next state
// together with the events the transition produced. The same events are
// also appended to the returned auction's pending queue so they travel with
// the aggregate until the outbox drains them.
type Auction struct {
	id            uuid.UUID
	itemID        uuid.UUID
	status        Status
	startingPrice decimal.Decimal
	winningPrice  decimal.Decimal
	bids          []Bid
	pending       []Event
	openedAt      time.Time
	closedAt      time.Time
	version       int
}

// Open starts a new active auction for itemID.
func Open(itemID uuid.UUID, startingPrice decimal.Decimal, at time.Time) (*Auction, []Event, error) {
	if itemID == uuid.Nil {
		return nil, nil, fmt.Errorf("%w: item id must not be empty", ErrInvalidArgument)
	}
	if startingPrice.IsNegative() {
		return nil, nil, fmt.Errorf("%w: starting price must be non-negative", ErrInvalidArgument)
	}
	a := &Auction{
		id:            uuid.New(),
		itemID:        itemID,
		status:        StatusActive,
		startingPrice: startingPrice,
		winningPrice:  startingPrice,
		openedAt:      at,
		version:       1,
	}
	ev := AuctionStartedEvent{EventMeta: newMeta(a, at), StartingPrice: startingPrice}
	a.pending = append(a.pending, ev)
	return a, []Event{ev}, nil
}

// PlaceBid accepts amount from bidder if the auction is active and the
// amount is strictly higher than the current winning price.
func (a *Auction) PlaceBid(amount decimal.Decimal, bidder uuid.UUID, at time.Time) (*Auction, []Event, error) {
	if a.status != StatusActive {
		return nil, nil, fmt.Errorf("auction %s: %w", a.id, ErrAuctionNotActive)
	}
	if amount.LessThanOrEqual(a.winningPrice) {
		return nil, nil, fmt.Errorf("auction %s: bid %s against %s: %w", a.id, amount, a.winningPrice, ErrBidTooLow)
	}
	next := a.Clone()
	bid := Bid{Amount: amount, BidderID: bidder, PlacedAt: at}
	next.bids = append(next.bids, bid)
	next.winningPrice = amount
	next.version++
	ev := BidPlacedEvent{EventMeta: newMeta(next, at), Amount: amount, BidderID: bidder, PlacedAt: at}
	next.pending = append(next.pending, ev)
	return next, []Event{ev}, nil
}

// Close ends the auction at the current winning price.
func (a *Auction) Close(at time.Time) (*Auction, []Event, error) {
	if a.status != StatusActive {
		return nil, nil, fmt.Errorf("auction %s: %w", a.id, ErrAlreadyClosed)
	}
	next := a.Clone()
	next.status = StatusClosed
	next.closedAt = at
	next.version++
	ev := AuctionClosedEvent{EventMeta: newMeta(next, at), FinalPrice: next.winningPrice, ClosedAt: at}
	next.pending = append(next.pending, ev)
	return next, []Event{ev}, nil
}

// DrainEvents returns the queued events in FIFO order and empties the queue.
func (a *Auction) DrainEvents() []Event {
	out := a.pending
	a.pending = nil
	return out
}

// RequeueEvents puts undelivered events back at the head of the queue,
// ahead of anything produced since they were drained.
func (a *Auction) RequeueEvents(evs []Event) {
	if len(evs) == 0 {
		return
	}
	q := make([]Event, 0, len(evs)+len(a.pending))
	q = append(q, evs...)
	a.pending = append(q, a.pending...)
}

// PendingEvents returns a copy of the queued events without draining them.
func (a *Auction) PendingEvents() []Event {
	return append([]Event(nil), a.pending...)
}

func (a *Auction) ID() uuid.UUID                 { return a.id }
func (a *Auction) ItemID() uuid.UUID             { return a.itemID }
func (a *Auction) Status() Status                { return a.status }
func (a *Auction) WinningPrice() decimal.Decimal { return a.winningPrice }
func (a *Auction) Version() int                  { return a.version }

// Bids returns a copy of the accepted bids in arrival order.
func (a *Auction) Bids() []Bid {
	return append([]Bid(nil), a.bids...)
}

// Clone returns a deep copy that can be mutated independently.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	cpy := *a
	cpy.bids = append([]Bid(nil), a.bids...)
	cpy.pending = append([]Event(nil), a.pending...)
	return &cpy
}

// AuctionSnapshot is a read-only view of an auction.
type AuctionSnapshot struct {
	ID            uuid.UUID       `json:"id"`
	ItemID        uuid.UUID       `json:"itemId"`
	Status        Status          `json:"status"`
	StartingPrice decimal.Decimal `json:"startingPrice"`
	WinningPrice  decimal.Decimal `json:"winningPrice"`
	LeadingBidder uuid.UUID       `json:"leadingBidder"`
	Bids          []Bid           `json:"bids"`
	OpenedAt      time.Time       `json:"openedAt"`
	ClosedAt      *time.Time      `json:"closedAt,omitempty"`
	Version       int             `json:"version"`
	PendingEvents int             `json:"pendingEvents"`
}

// Snapshot captures the auction's current state.
func (a *Auction) Snapshot() AuctionSnapshot {
	s := AuctionSnapshot{
		ID:            a.id,
		ItemID:        a.itemID,
		Status:        a.status,
		StartingPrice: a.startingPrice,
		WinningPrice:  a.winningPrice,
		Bids:          a.Bids(),
		OpenedAt:      a.openedAt,
		Version:       a.version,
		PendingEvents: len(a.pending),
	}
	if n := len(a.bids); n > 0 {
		s.LeadingBidder = a.bids[n-1].BidderID
	}
	if a.status == StatusClosed {
		closed := a.closedAt
		s.ClosedAt = &closed
	}
	return s
}
