package api

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"auction-api/domain"
	"auction-api/outbox"
	"auction-api/service"
)

// Auctions is the command and query surface served over HTTP.
type Auctions interface {
	AddItem(ctx context.Context, item domain.Item) error
	GetItem(ctx context.Context, id uuid.UUID) (domain.Item, error)
	SearchItems(ctx context.Context, f service.ItemFilter) []domain.Item
	OpenAuction(ctx context.Context, itemID uuid.UUID, startingPrice decimal.Decimal) (uuid.UUID, error)
	PlaceBid(ctx context.Context, auctionID uuid.UUID, amount decimal.Decimal, bidder uuid.UUID) (decimal.Decimal, error)
	CloseAuction(ctx context.Context, auctionID uuid.UUID) (domain.AuctionSnapshot, error)
	GetAuction(ctx context.Context, auctionID uuid.UUID) (domain.AuctionSnapshot, error)
	SearchAuctions(ctx context.Context, f service.AuctionFilter) []domain.AuctionSnapshot
}

// Deduper prevents a bid request from being applied twice.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, bidderID, key string) (bool, error)
	// Remove deletes a previously added key, used when the bid is rejected.
	Remove(ctx context.Context, bidderID, key string) error
}

// OutboxStats is served on /api/outbox/stats.
type OutboxStats struct {
	Delivered uint64             `json:"delivered"`
	Failed    uint64             `json:"failed"`
	Relay     *outbox.RelayStats `json:"relay,omitempty"`
}

type createItemRequest struct {
	Category      string          `json:"category"`
	Manufacturer  string          `json:"manufacturer"`
	Model         string          `json:"model"`
	Year          int             `json:"year"`
	StartingPrice decimal.Decimal `json:"startingPrice"`
	Doors         int             `json:"doors,omitempty"`
	Seats         int             `json:"seats,omitempty"`
	LoadCapacity  float64         `json:"loadCapacity,omitempty"`
}

type itemResponse struct {
	ID            uuid.UUID       `json:"id"`
	Category      domain.Category `json:"category"`
	Manufacturer  string          `json:"manufacturer"`
	Model         string          `json:"model"`
	Year          int             `json:"year"`
	StartingPrice decimal.Decimal `json:"startingPrice"`
	Doors         int             `json:"doors,omitempty"`
	Seats         int             `json:"seats,omitempty"`
	LoadCapacity  float64         `json:"loadCapacity,omitempty"`
}

func newItemResponse(it domain.Item) itemResponse {
	resp := itemResponse{
		ID:            it.ID(),
		Category:      it.Category(),
		Manufacturer:  it.Manufacturer(),
		Model:         it.Model(),
		Year:          it.Year(),
		StartingPrice: it.StartingPrice(),
	}
	switch v := it.Variant().(type) {
	case domain.TwoDoor:
		resp.Doors = v.Doors
	case domain.FourDoor:
		resp.Doors = v.Doors
	case domain.MultiSeat:
		resp.Seats = v.Seats
	case domain.LoadCarrier:
		resp.LoadCapacity = v.Capacity
	}
	return resp
}

type openAuctionRequest struct {
	ItemID        uuid.UUID       `json:"itemId"`
	StartingPrice decimal.Decimal `json:"startingPrice"`
}

type openAuctionResponse struct {
	AuctionID uuid.UUID `json:"auctionId"`
}

type placeBidRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	BidderID uuid.UUID       `json:"bidderId"`
}

type placeBidResponse struct {
	AuctionID    uuid.UUID       `json:"auctionId"`
	WinningPrice decimal.Decimal `json:"winningPrice"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}
