package order

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/tableside/internal/domain/menu"
	"github.com/xenking/tableside/internal/domain/table"
)

// Limits of a single order, matching the storage columns.
const (
	MaxQuantity     = 999
	MaxInstructions = 200
)

// MaxTotal is the largest order total that can be stored.
var MaxTotal = decimal.RequireFromString("9999999999.99")

// Order is a table's ticket: the ordered lines, their derived total and the
// order's place in the service lifecycle.
type Order struct {
	ID      string
	TableID string
	// Items are kept in insertion order, which is also service order.
	Items        []Item
	Total        decimal.Decimal
	Status       Status
	CustomerNote string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	// CompletedAt is set when the order enters COMPLETED and never cleared.
	CompletedAt *time.Time
}

// Item is a single order line. Name and UnitPrice are captured from the menu
// when the line is added, so later catalog edits leave historical totals
// untouched.
type Item struct {
	ID           string
	MenuItemID   string
	Name         string
	UnitPrice    decimal.Decimal
	Quantity     int
	Instructions string
	Status       ItemStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LineTotal is the captured unit price times quantity.
func (it Item) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// ComputeTotal sums the line totals of items, rounded to the currency's minor
// unit.
func ComputeTotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total.Round(2)
}

func checkTotal(total decimal.Decimal) error {
	if total.GreaterThan(MaxTotal) {
		return errors.Wrapf(ErrInvalidInput, "order total %s exceeds %s", total.StringFixed(2), MaxTotal.StringFixed(2))
	}
	return nil
}

// Recalculate refreshes the derived total and the update timestamp. Every
// change to the item collection must go through it.
func (o *Order) Recalculate(now time.Time) {
	o.Total = ComputeTotal(o.Items)
	o.UpdatedAt = now
}

// Item returns the line with the given id.
func (o *Order) Item(id string) (*Item, error) {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return &o.Items[i], nil
		}
	}
	return nil, &NotFoundError{OrderID: o.ID, ItemID: id}
}

// AddItem appends a new ORDERED line priced from m.
func (o *Order) AddItem(id string, m menu.Item, quantity int, instructions string, now time.Time) (*Item, error) {
	if !m.Available {
		return nil, &UnavailableError{MenuItemID: m.ID, Name: m.Name}
	}
	if quantity < 1 || quantity > MaxQuantity {
		return nil, &InvalidQuantityError{Quantity: quantity}
	}
	if n := utf8.RuneCountInString(instructions); n > MaxInstructions {
		return nil, errors.Wrapf(ErrInvalidInput, "instructions are %d characters, limit is %d", n, MaxInstructions)
	}
	it := Item{
		ID:           id,
		MenuItemID:   m.ID,
		Name:         m.Name,
		UnitPrice:    m.Price,
		Quantity:     quantity,
		Instructions: instructions,
		Status:       ItemOrdered,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := checkTotal(ComputeTotal(o.Items).Add(it.LineTotal())); err != nil {
		return nil, err
	}
	o.Items = append(o.Items, it)
	o.Recalculate(now)
	return &o.Items[len(o.Items)-1], nil
}

// RemoveItem detaches a line from the order entirely.
func (o *Order) RemoveItem(id string, now time.Time) error {
	for i := range o.Items {
		if o.Items[i].ID == id {
			o.Items = append(o.Items[:i], o.Items[i+1:]...)
			o.Recalculate(now)
			return nil
		}
	}
	return &NotFoundError{OrderID: o.ID, ItemID: id}
}

// SetItemQuantity changes the quantity of a line.
func (o *Order) SetItemQuantity(id string, quantity int, now time.Time) error {
	if quantity < 1 || quantity > MaxQuantity {
		return &InvalidQuantityError{Quantity: quantity}
	}
	it, err := o.Item(id)
	if err != nil {
		return err
	}
	next := *it
	next.Quantity = quantity
	if err := checkTotal(ComputeTotal(o.Items).Sub(it.LineTotal()).Add(next.LineTotal())); err != nil {
		return err
	}
	it.Quantity = quantity
	it.UpdatedAt = now
	o.Recalculate(now)
	return nil
}

// SetItemStatus sets a line's kitchen status. Any status may follow any other.
func (o *Order) SetItemStatus(id string, st ItemStatus, now time.Time) error {
	it, err := o.Item(id)
	if err != nil {
		return err
	}
	it.Status = st
	it.UpdatedAt = now
	o.UpdatedAt = now
	return nil
}

// Transition moves the order to a new status under policy p. It does not
// touch the table; see Occupancy for the side effect the engine applies.
func (o *Order) Transition(to Status, p TransitionPolicy, now time.Time) error {
	if err := p.Check(o.Status, to); err != nil {
		return err
	}
	o.Status = to
	o.UpdatedAt = now
	if to == StatusCompleted && o.CompletedAt == nil {
		completed := now
		o.CompletedAt = &completed
	}
	return nil
}

// Occupancy returns the table occupancy forced by entering status s, and
// false when s leaves occupancy untouched.
func Occupancy(s Status) (table.Occupancy, bool) {
	switch s {
	case StatusConfirmed:
		return table.Occupied, true
	case StatusCompleted:
		return table.Available, true
	}
	return "", false
}

// StatusChange is one entry of an order's status history.
type StatusChange struct {
	OrderID   string
	From      Status
	To        Status
	ChangedAt time.Time
}

// Repository persists orders. Reads run outside any lock; every mutation goes
// through Atomic so the order, its lines and its table commit together.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, f Filter) ([]Order, error)
	History(ctx context.Context, orderID string) ([]StatusChange, error)
	// Atomic runs fn in a single transaction. A non-nil error from fn rolls
	// everything back.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the unit of work handed to Repository.Atomic.
type Tx interface {
	// LockOrder loads an order with its lines and holds it against concurrent
	// writers until the transaction ends.
	LockOrder(ctx context.Context, id string) (*Order, error)
	// LockTable loads a table and holds it against concurrent writers.
	LockTable(ctx context.Context, id string) (*table.Table, error)
	GetTable(ctx context.Context, id string) (*table.Table, error)
	GetMenuItem(ctx context.Context, id string) (*menu.Item, error)
	Insert(ctx context.Context, o *Order) error
	// Save writes the order row and makes the stored lines match o.Items.
	Save(ctx context.Context, o *Order) error
	SetOccupancy(ctx context.Context, tableID string, occ table.Occupancy, at time.Time) error
	AppendHistory(ctx context.Context, c StatusChange) error
}
