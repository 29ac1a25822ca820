package domain

import "errors"

var (
	// ErrInvalidArgument indicates malformed construction input such as a
	// negative starting price or an empty manufacturer.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrAuctionNotActive is returned when a bid targets an auction that is
	// no longer accepting bids.
	ErrAuctionNotActive = errors.New("auction is not active")
	// ErrBidTooLow is returned when a bid does not exceed the current winning price.
	ErrBidTooLow = errors.New("bid must be higher than the current winning price")
	// ErrAlreadyClosed is returned when closing an auction twice.
	ErrAlreadyClosed = errors.New("auction is already closed")
	// ErrAlreadyActiveForItem indicates that the item already has an active auction.
	ErrAlreadyActiveForItem = errors.New("item already has an active auction")
)
