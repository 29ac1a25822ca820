package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func validParams(c Category) ItemParams {
	return ItemParams{
		ID:            uuid.New(),
		Category:      c,
		Manufacturer:  "Volvo",
		Model:         "V70",
		Year:          2015,
		StartingPrice: decimal.NewFromInt(10000),
		Doors:         4,
		Seats:         7,
		LoadCapacity:  1.5,
	}
}

func TestNewItemCategories(t *testing.T) {
	tests := []struct {
		category Category
		want     Variant
	}{
		{CategoryTwoDoor, TwoDoor{Doors: 4}},
		{CategoryFourDoor, FourDoor{Doors: 4}},
		{CategoryMultiSeat, MultiSeat{Seats: 7}},
		{CategoryLoadCapacity, LoadCarrier{Capacity: 1.5}},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			item, err := NewItem(validParams(tt.category))
			if err != nil {
				t.Fatalf("new item: %v", err)
			}
			if item.Variant() != tt.want {
				t.Fatalf("unexpected variant %#v, want %#v", item.Variant(), tt.want)
			}
			if item.Category() != tt.category {
				t.Fatalf("unexpected category %s", item.Category())
			}
		})
	}
}

func TestNewItemDropsForeignAttributes(t *testing.T) {
	item, err := NewItem(validParams(CategoryMultiSeat))
	if err != nil {
		t.Fatalf("new item: %v", err)
	}
	p := item.Params()
	if p.Doors != 0 || p.LoadCapacity != 0 || p.Seats != 7 {
		t.Fatalf("unexpected flattened params: %#v", p)
	}
}

func TestNewItemValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ItemParams)
	}{
		{"nil id", func(p *ItemParams) { p.ID = uuid.Nil }},
		{"blank manufacturer", func(p *ItemParams) { p.Manufacturer = "  " }},
		{"empty model", func(p *ItemParams) { p.Model = "" }},
		{"year too old", func(p *ItemParams) { p.Year = 1899 }},
		{"negative price", func(p *ItemParams) { p.StartingPrice = decimal.NewFromInt(-1) }},
		{"no doors", func(p *ItemParams) { p.Category = CategoryFourDoor; p.Doors = 0 }},
		{"no seats", func(p *ItemParams) { p.Category = CategoryMultiSeat; p.Seats = -2 }},
		{"no capacity", func(p *ItemParams) { p.Category = CategoryLoadCapacity; p.LoadCapacity = 0 }},
		{"unknown category", func(p *ItemParams) { p.Category = "boat" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams(CategoryTwoDoor)
			tt.mutate(&p)
			if _, err := NewItem(p); !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestNewItemAcceptsBoundaryYear(t *testing.T) {
	p := validParams(CategoryTwoDoor)
	p.Year = MinModelYear
	p.StartingPrice = decimal.Zero
	if _, err := NewItem(p); err != nil {
		t.Fatalf("expected year %d to be accepted: %v", MinModelYear, err)
	}
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Load-Capacity ")
	if err != nil || c != CategoryLoadCapacity {
		t.Fatalf("parse: %v %v", c, err)
	}
	if _, err := ParseCategory("sedan"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
