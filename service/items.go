package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"

	"auction-api/domain"
	"auction-api/storage"
)

// ItemFilter narrows SearchItems. Zero fields match everything; Manufacturer
// and Model compare case-insensitively.
type ItemFilter struct {
	Category     *domain.Category
	Manufacturer string
	Model        string
	Year         *int
}

func (f ItemFilter) match(it domain.Item) bool {
	if f.Category != nil && it.Category() != *f.Category {
		return false
	}
	if f.Manufacturer != "" && !strings.EqualFold(it.Manufacturer(), strings.TrimSpace(f.Manufacturer)) {
		return false
	}
	if f.Model != "" && !strings.EqualFold(it.Model(), strings.TrimSpace(f.Model)) {
		return false
	}
	if f.Year != nil && it.Year() != *f.Year {
		return false
	}
	return true
}

func (s *Service) AddItem(ctx context.Context, item domain.Item) (err error) {
	_, span := s.startSpan(ctx, "AddItem", attribute.String("item.id", item.ID().String()))
	defer func() { endSpan(span, err) }()

	if item.ID() == uuid.Nil {
		return fmt.Errorf("%w: item was not built with NewItem", domain.ErrInvalidArgument)
	}
	if err := s.items.Add(item.ID(), item); err != nil {
		return fmt.Errorf("item %s: %w", item.ID(), err)
	}
	s.logger.WithField("item", item.ID()).WithField("category", item.Category()).Debug("item added")
	return nil
}

func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (item domain.Item, err error) {
	_, span := s.startSpan(ctx, "GetItem", attribute.String("item.id", id.String()))
	defer func() { endSpan(span, err) }()

	item, err = s.items.Get(id)
	if err != nil {
		return domain.Item{}, fmt.Errorf("item %s: %w", id, err)
	}
	return item, nil
}

// SearchItems returns the items matching f ordered by manufacturer, model
// and id.
func (s *Service) SearchItems(ctx context.Context, f ItemFilter) []domain.Item {
	_, span := s.startSpan(ctx, "SearchItems")
	defer func() { endSpan(span, nil) }()

	out := s.items.Search(f.match)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ma, mb := strings.ToLower(a.Manufacturer()), strings.ToLower(b.Manufacturer()); ma != mb {
			return ma < mb
		}
		if ma, mb := strings.ToLower(a.Model()), strings.ToLower(b.Model()); ma != mb {
			return ma < mb
		}
		return a.ID().String() < b.ID().String()
	})
	span.SetAttributes(attribute.Int("items.found", len(out)))
	return out
}

type seedFile struct {
	Items []seedItem `yaml:"items"`
}

type seedItem struct {
	ID            string  `yaml:"id"`
	Category      string  `yaml:"category"`
	Manufacturer  string  `yaml:"manufacturer"`
	Model         string  `yaml:"model"`
	Year          int     `yaml:"year"`
	StartingPrice string  `yaml:"startingPrice"`
	Doors         int     `yaml:"doors"`
	Seats         int     `yaml:"seats"`
	LoadCapacity  float64 `yaml:"loadCapacity"`
}

func (si seedItem) build() (domain.Item, error) {
	p := domain.ItemParams{
		Manufacturer: si.Manufacturer,
		Model:        si.Model,
		Year:         si.Year,
		Doors:        si.Doors,
		Seats:        si.Seats,
		LoadCapacity: si.LoadCapacity,
	}
	var err error
	if si.ID == "" {
		p.ID = uuid.New()
	} else if p.ID, err = uuid.Parse(si.ID); err != nil {
		return domain.Item{}, fmt.Errorf("%w: id %q: %v", domain.ErrInvalidArgument, si.ID, err)
	}
	if p.Category, err = domain.ParseCategory(si.Category); err != nil {
		return domain.Item{}, err
	}
	if si.StartingPrice != "" {
		if p.StartingPrice, err = decimal.NewFromString(si.StartingPrice); err != nil {
			return domain.Item{}, fmt.Errorf("%w: starting price %q", domain.ErrInvalidArgument, si.StartingPrice)
		}
	}
	return domain.NewItem(p)
}

// LoadItems adds every item of a YAML catalog document. Items already in
// the catalog are skipped, so reloading the same document is harmless.
func (s *Service) LoadItems(ctx context.Context, data []byte) (int, error) {
	var doc seedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("failed to parse item catalog: %w", err)
	}
	added := 0
	for i, si := range doc.Items {
		item, err := si.build()
		if err != nil {
			return added, fmt.Errorf("item %d: %w", i, err)
		}
		if err := s.AddItem(ctx, item); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				continue
			}
			return added, err
		}
		added++
	}
	return added, nil
}

// LoadItemsFile reads a YAML catalog from path.
func (s *Service) LoadItemsFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read item catalog: %w", err)
	}
	return s.LoadItems(ctx, data)
}
