package menu

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a requested menu item does not exist.
	ErrNotFound = errors.New("menu item not found")
	// ErrInvalidInput is returned when a menu item fails validation.
	ErrInvalidInput = errors.New("invalid menu item")
	// ErrInUse is returned when deleting an item that order lines still reference.
	ErrInUse = errors.New("menu item is referenced by orders")
)

// Category groups menu items on the menu board.
type Category string

const (
	CategoryAppetizer Category = "APPETIZER"
	CategorySashimi   Category = "SASHIMI"
	CategoryGrilled   Category = "GRILLED"
	CategoryFried     Category = "FRIED"
	CategoryHotPot    Category = "HOT_POT"
	CategoryRice      Category = "RICE"
	CategoryNoodles   Category = "NOODLES"
	CategoryDessert   Category = "DESSERT"
	CategorySoftDrink Category = "SOFT_DRINK"
	CategoryAlcoholic Category = "ALCOHOLIC"
	CategoryBeer      Category = "BEER"
	CategorySake      Category = "SAKE"
	CategoryShochu    Category = "SHOCHU"
	CategoryWine      Category = "WINE"
	CategoryCocktail  Category = "COCKTAIL"
)

// Categories lists every known category in menu-board order.
var Categories = []Category{
	CategoryAppetizer, CategorySashimi, CategoryGrilled, CategoryFried, CategoryHotPot,
	CategoryRice, CategoryNoodles, CategoryDessert, CategorySoftDrink, CategoryAlcoholic,
	CategoryBeer, CategorySake, CategoryShochu, CategoryWine, CategoryCocktail,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// MaxPrice is the largest storable menu price.
var MaxPrice = decimal.RequireFromString("99999999.99")

// Item is a priced dish or drink that can be put on an order line.
type Item struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Category    Category
	ImageURL    string
	Available   bool
	PrepMinutes int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks the fields a caller is allowed to set.
func (it *Item) Validate() error {
	switch n := utf8.RuneCountInString(it.Name); {
	case n == 0:
		return errors.Wrap(ErrInvalidInput, "name is required")
	case n > 100:
		return errors.Wrap(ErrInvalidInput, "name is longer than 100 characters")
	}
	if utf8.RuneCountInString(it.Description) > 500 {
		return errors.Wrap(ErrInvalidInput, "description is longer than 500 characters")
	}
	switch {
	case it.Price.IsNegative():
		return errors.Wrap(ErrInvalidInput, "price must not be negative")
	case it.Price.GreaterThan(MaxPrice):
		return errors.Wrapf(ErrInvalidInput, "price must not exceed %s", MaxPrice.StringFixed(2))
	case !it.Price.Equal(it.Price.Round(2)):
		return errors.Wrap(ErrInvalidInput, "price has more than 2 decimal places")
	}
	if !it.Category.Valid() {
		return errors.Wrapf(ErrInvalidInput, "unknown category %q", it.Category)
	}
	if it.PrepMinutes < 0 {
		return errors.Wrap(ErrInvalidInput, "preparation time must not be negative")
	}
	return nil
}

// Repository defines persistence operations for the catalog.
type Repository interface {
	List(ctx context.Context) ([]Item, error)
	ListAvailable(ctx context.Context) ([]Item, error)
	ListByCategory(ctx context.Context, c Category) ([]Item, error)
	Search(ctx context.Context, name string) ([]Item, error)
	ListByPriceRange(ctx context.Context, minPrice, maxPrice decimal.Decimal) ([]Item, error)
	GetByID(ctx context.Context, id string) (*Item, error)
	Create(ctx context.Context, it *Item) error
	Update(ctx context.Context, it *Item) error
	ToggleAvailability(ctx context.Context, id string) (*Item, error)
	Delete(ctx context.Context, id string) error
}
