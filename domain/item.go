package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MinModelYear is the oldest model year accepted by the catalog.
const MinModelYear = 1900

// Category is the closed set of item kinds the catalog accepts.
type Category string

const (
	CategoryTwoDoor      Category = "two-door"
	CategoryFourDoor     Category = "four-door"
	CategoryMultiSeat    Category = "multi-seat"
	CategoryLoadCapacity Category = "load-capacity"
)

// ParseCategory resolves a wire name into a Category.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case CategoryTwoDoor, CategoryFourDoor, CategoryMultiSeat, CategoryLoadCapacity:
		return c, nil
	default:
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidArgument, s)
	}
}

// Variant carries the attribute that only exists for one category.
type Variant interface {
	Category() Category
}

type TwoDoor struct{ Doors int }

type FourDoor struct{ Doors int }

type MultiSeat struct{ Seats int }

type LoadCarrier struct{ Capacity float64 }

func (TwoDoor) Category() Category     { return CategoryTwoDoor }
func (FourDoor) Category() Category    { return CategoryFourDoor }
func (MultiSeat) Category() Category   { return CategoryMultiSeat }
func (LoadCarrier) Category() Category { return CategoryLoadCapacity }

// ItemParams is the flat input used to build an Item. Only the
// category-specific field matching Category is read.
type ItemParams struct {
	ID            uuid.UUID
	Category      Category
	Manufacturer  string
	Model         string
	Year          int
	StartingPrice decimal.Decimal
	Doors         int
	Seats         int
	LoadCapacity  float64
}

// Item is an immutable catalog record.
type Item struct {
	id            uuid.UUID
	manufacturer  string
	model         string
	year          int
	startingPrice decimal.Decimal
	variant       Variant
}

// NewItem validates p and returns the item it describes.
func NewItem(p ItemParams) (Item, error) {
	if p.ID == uuid.Nil {
		return Item{}, fmt.Errorf("%w: item id must not be empty", ErrInvalidArgument)
	}
	manufacturer := strings.TrimSpace(p.Manufacturer)
	if manufacturer == "" {
		return Item{}, fmt.Errorf("%w: manufacturer must not be empty", ErrInvalidArgument)
	}
	model := strings.TrimSpace(p.Model)
	if model == "" {
		return Item{}, fmt.Errorf("%w: model must not be empty", ErrInvalidArgument)
	}
	if p.Year < MinModelYear {
		return Item{}, fmt.Errorf("%w: year must be %d or later", ErrInvalidArgument, MinModelYear)
	}
	if p.StartingPrice.IsNegative() {
		return Item{}, fmt.Errorf("%w: starting price must be non-negative", ErrInvalidArgument)
	}
	variant, err := buildVariant(p)
	if err != nil {
		return Item{}, err
	}
	return Item{
		id:            p.ID,
		manufacturer:  manufacturer,
		model:         model,
		year:          p.Year,
		startingPrice: p.StartingPrice,
		variant:       variant,
	}, nil
}

func buildVariant(p ItemParams) (Variant, error) {
	switch p.Category {
	case CategoryTwoDoor, CategoryFourDoor:
		if p.Doors <= 0 {
			return nil, fmt.Errorf("%w: door count must be greater than zero for %s", ErrInvalidArgument, p.Category)
		}
		if p.Category == CategoryTwoDoor {
			return TwoDoor{Doors: p.Doors}, nil
		}
		return FourDoor{Doors: p.Doors}, nil
	case CategoryMultiSeat:
		if p.Seats <= 0 {
			return nil, fmt.Errorf("%w: seat count must be greater than zero", ErrInvalidArgument)
		}
		return MultiSeat{Seats: p.Seats}, nil
	case CategoryLoadCapacity:
		if p.LoadCapacity <= 0 {
			return nil, fmt.Errorf("%w: load capacity must be greater than zero", ErrInvalidArgument)
		}
		return LoadCarrier{Capacity: p.LoadCapacity}, nil
	default:
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidArgument, p.Category)
	}
}

func (i Item) ID() uuid.UUID                  { return i.id }
func (i Item) Manufacturer() string           { return i.manufacturer }
func (i Item) Model() string                  { return i.model }
func (i Item) Year() int                      { return i.year }
func (i Item) StartingPrice() decimal.Decimal { return i.startingPrice }
func (i Item) Variant() Variant               { return i.variant }

// Category returns the tag of the item's variant.
func (i Item) Category() Category {
	if i.variant == nil {
		return ""
	}
	return i.variant.Category()
}

// Params flattens the item back into the shape accepted by NewItem.
func (i Item) Params() ItemParams {
	p := ItemParams{
		ID:            i.id,
		Category:      i.Category(),
		Manufacturer:  i.manufacturer,
		Model:         i.model,
		Year:          i.year,
		StartingPrice: i.startingPrice,
	}
	switch s := i.variant.(type) {
	case TwoDoor:
		p.Doors = s.Doors
	case FourDoor:
		p.Doors = s.Doors
	case MultiSeat:
		p.Seats = s.Seats
	case LoadCarrier:
		p.LoadCapacity = s.Capacity
	}
	return p
}

// Clone returns the item itself; items hold no shared mutable state.
func (i Item) Clone() Item { return i }
