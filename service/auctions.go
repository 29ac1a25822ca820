package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"auction-api/domain"
	"auction-api/storage"
)

// AuctionFilter narrows SearchAuctions. Nil fields match everything.
type AuctionFilter struct {
	Status *domain.Status
	ItemID *uuid.UUID
}

func (f AuctionFilter) match(a *domain.Auction) bool {
	if f.Status != nil && a.Status() != *f.Status {
		return false
	}
	if f.ItemID != nil && a.ItemID() != *f.ItemID {
		return false
	}
	return true
}

// OpenAuction starts an auction for an existing item that has no active
// auction.
func (s *Service) OpenAuction(ctx context.Context, itemID uuid.UUID, startingPrice decimal.Decimal) (id uuid.UUID, err error) {
	ctx, span := s.startSpan(ctx, "OpenAuction", attribute.String("item.id", itemID.String()))
	defer func() { endSpan(span, err) }()

	if _, err := s.items.Get(itemID); err != nil {
		return uuid.Nil, fmt.Errorf("item %s: %w", itemID, err)
	}
	a, _, err := domain.Open(itemID, startingPrice, s.now())
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.activeByItem.Add(itemID, a.ID()); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return uuid.Nil, fmt.Errorf("item %s: %w", itemID, domain.ErrAlreadyActiveForItem)
		}
		return uuid.Nil, err
	}
	if err := s.auctions.Add(a.ID(), a); err != nil {
		s.activeByItem.DeleteIf(itemID, func(v uuid.UUID) bool { return v == a.ID() })
		return uuid.Nil, fmt.Errorf("auction %s: %w", a.ID(), err)
	}
	span.SetAttributes(attribute.String("auction.id", a.ID().String()))
	s.logger.WithFields(log.Fields{"auction": a.ID(), "item": itemID, "starting_price": startingPrice}).Info("auction opened")

	s.publishAfterCommit(ctx, a.ID())
	return a.ID(), nil
}

// PlaceBid records a bid and returns the new winning price. Bids on one
// auction are applied one at a time against the latest stored state.
func (s *Service) PlaceBid(ctx context.Context, auctionID uuid.UUID, amount decimal.Decimal, bidder uuid.UUID) (price decimal.Decimal, err error) {
	ctx, span := s.startSpan(ctx, "PlaceBid",
		attribute.String("auction.id", auctionID.String()),
		attribute.String("bid.amount", amount.String()),
	)
	defer func() { endSpan(span, err) }()

	if bidder == uuid.Nil {
		return decimal.Zero, fmt.Errorf("%w: bidder id must not be empty", domain.ErrInvalidArgument)
	}
	next, err := s.auctions.Mutate(auctionID, func(a *domain.Auction) (*domain.Auction, error) {
		n, _, err := a.PlaceBid(amount, bidder, s.now())
		return n, err
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return decimal.Zero, fmt.Errorf("auction %s: %w", auctionID, err)
		}
		return decimal.Zero, err
	}
	s.logger.WithFields(log.Fields{"auction": auctionID, "bidder": bidder, "amount": amount}).Debug("bid accepted")

	s.publishAfterCommit(ctx, auctionID)
	return next.WinningPrice(), nil
}

// CloseAuction closes an active auction and frees its item for a new one.
func (s *Service) CloseAuction(ctx context.Context, auctionID uuid.UUID) (snap domain.AuctionSnapshot, err error) {
	ctx, span := s.startSpan(ctx, "CloseAuction", attribute.String("auction.id", auctionID.String()))
	defer func() { endSpan(span, err) }()

	next, err := s.auctions.Mutate(auctionID, func(a *domain.Auction) (*domain.Auction, error) {
		n, _, err := a.Close(s.now())
		return n, err
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.AuctionSnapshot{}, fmt.Errorf("auction %s: %w", auctionID, err)
		}
		return domain.AuctionSnapshot{}, err
	}
	s.activeByItem.DeleteIf(next.ItemID(), func(v uuid.UUID) bool { return v == auctionID })
	s.logger.WithFields(log.Fields{"auction": auctionID, "final_price": next.WinningPrice()}).Info("auction closed")

	s.publishAfterCommit(ctx, auctionID)
	if cur, gerr := s.auctions.Get(auctionID); gerr == nil {
		next = cur
	}
	return next.Snapshot(), nil
}

func (s *Service) GetAuction(ctx context.Context, auctionID uuid.UUID) (snap domain.AuctionSnapshot, err error) {
	_, span := s.startSpan(ctx, "GetAuction", attribute.String("auction.id", auctionID.String()))
	defer func() { endSpan(span, err) }()

	a, err := s.auctions.Get(auctionID)
	if err != nil {
		return domain.AuctionSnapshot{}, fmt.Errorf("auction %s: %w", auctionID, err)
	}
	return a.Snapshot(), nil
}

// SearchAuctions returns the auctions matching f, oldest first.
func (s *Service) SearchAuctions(ctx context.Context, f AuctionFilter) []domain.AuctionSnapshot {
	_, span := s.startSpan(ctx, "SearchAuctions")
	defer func() { endSpan(span, nil) }()

	found := s.auctions.Search(f.match)
	out := make([]domain.AuctionSnapshot, 0, len(found))
	for _, a := range found {
		out = append(out, a.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].OpenedAt.Before(out[j].OpenedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	span.SetAttributes(attribute.Int("auctions.found", len(out)))
	return out
}
