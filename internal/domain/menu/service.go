package menu

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Service wraps catalog writes with validation. Reads go straight to the
// Repository.
type Service struct {
	items Repository
	now   func() time.Time
}

// NewService creates a catalog Service backed by the given repository.
func NewService(items Repository) *Service {
	return &Service{items: items, now: time.Now}
}

// Create validates and stores a new menu item. New items are available
// unless the caller says otherwise.
func (s *Service) Create(ctx context.Context, it Item) (*Item, error) {
	if err := it.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	it.ID = uuid.New().String()
	it.CreatedAt = now
	it.UpdatedAt = now
	if err := s.items.Create(ctx, &it); err != nil {
		return nil, errors.Wrap(err, "create menu item")
	}
	return &it, nil
}

// Update replaces the editable fields of an existing menu item. Price
// changes never touch existing order lines, which keep their captured price.
func (s *Service) Update(ctx context.Context, id string, in Item) (*Item, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	cur, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cur.Name = in.Name
	cur.Description = in.Description
	cur.Price = in.Price
	cur.Category = in.Category
	cur.ImageURL = in.ImageURL
	cur.Available = in.Available
	cur.PrepMinutes = in.PrepMinutes
	cur.UpdatedAt = s.now()
	if err := s.items.Update(ctx, cur); err != nil {
		return nil, errors.Wrapf(err, "update menu item %s", id)
	}
	return cur, nil
}

// ToggleAvailability flips whether the item can be added to new order lines.
func (s *Service) ToggleAvailability(ctx context.Context, id string) (*Item, error) {
	return s.items.ToggleAvailability(ctx, id)
}

// Delete removes a menu item that no order line references.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.items.Delete(ctx, id)
}
