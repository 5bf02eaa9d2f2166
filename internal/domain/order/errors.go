package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors. Typed errors below unwrap to one of these so callers can
// classify failures with errors.Is.
var (
	ErrNotFound          = errors.New("order not found")
	ErrItemNotFound      = errors.New("order item not found")
	ErrUnavailable       = errors.New("menu item is not available")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidInput      = errors.New("invalid order input")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrOrderClosed       = errors.New("order is closed")
	// ErrConflict means a concurrent mutation of the same order or table won
	// the race. It is safe to retry once after re-reading the order.
	ErrConflict = errors.New("concurrent modification")
)

// NotFoundError names the order or order item that does not exist.
type NotFoundError struct {
	OrderID string
	ItemID  string
}

func (e *NotFoundError) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("order %s has no item %s", e.OrderID, e.ItemID)
	}
	return fmt.Sprintf("order %s not found", e.OrderID)
}

func (e *NotFoundError) Unwrap() error {
	if e.ItemID != "" {
		return ErrItemNotFound
	}
	return ErrNotFound
}

// UnavailableError indicates the menu item cannot be ordered right now.
type UnavailableError struct {
	MenuItemID string
	Name       string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("menu item %s (%s) is not available", e.MenuItemID, e.Name)
}

func (e *UnavailableError) Unwrap() error { return ErrUnavailable }

// InvalidQuantityError indicates a line quantity outside [1, MaxQuantity].
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be between 1 and %d, got %d", MaxQuantity, e.Quantity)
}

func (e *InvalidQuantityError) Unwrap() error { return ErrInvalidQuantity }

// TransitionError is returned when the transition policy rejects a status
// change.
type TransitionError struct {
	From   Status
	To     Status
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s: %s", e.From, e.To, e.Reason)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
