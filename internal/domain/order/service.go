package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/tableside/internal/domain/table"
)

// Config holds the engine's policy switches.
type Config struct {
	// StrictTransitions rejects status skips. Off by default: staff may jump
	// straight from PENDING to SERVED.
	StrictTransitions bool
	// AllowClosedEdits permits item changes on COMPLETED or CANCELLED orders.
	AllowClosedEdits bool
}

// Service is the ticket engine. It owns orders and their lines, enforces the
// status machine and keeps table occupancy in step with order status.
type Service struct {
	orders           Repository
	tables           table.Repository
	policy           TransitionPolicy
	allowClosedEdits bool

	now   func() time.Time
	newID func() string

	transitions metric.Int64Counter
	itemsAdded  metric.Int64Counter
}

// NewService creates the ticket engine.
func NewService(cfg Config, orders Repository, tables table.Repository, meter metric.Meter) (*Service, error) {
	transitions, err := meter.Int64Counter("tableside.order.transitions",
		metric.WithDescription("Order status transitions"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "transitions counter")
	}
	itemsAdded, err := meter.Int64Counter("tableside.order.items_added",
		metric.WithDescription("Order lines added"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "items counter")
	}
	return &Service{
		orders:           orders,
		tables:           tables,
		policy:           TransitionPolicy{Strict: cfg.StrictTransitions},
		allowClosedEdits: cfg.AllowClosedEdits,
		now:              time.Now,
		newID:            uuid.NewString,
		transitions:      transitions,
		itemsAdded:       itemsAdded,
	}, nil
}

// Policy returns the active transition policy.
func (s *Service) Policy() TransitionPolicy { return s.policy }

// Create opens a PENDING order with no lines on the given table. Occupancy is
// left alone until the order is confirmed.
func (s *Service) Create(ctx context.Context, tableID, note string) (*Order, error) {
	var created *Order
	err := s.orders.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetTable(ctx, tableID); err != nil {
			return err
		}
		now := s.now()
		o := &Order{
			ID:           s.newID(),
			TableID:      tableID,
			Items:        []Item{},
			Total:        decimal.Zero,
			Status:       StatusPending,
			CustomerNote: note,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.Insert(ctx, o); err != nil {
			return errors.Wrap(err, "insert order")
		}
		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	zctx.From(ctx).Info("Order created",
		zap.String("order_id", created.ID),
		zap.String("table_id", tableID),
	)
	return created, nil
}

// AddItem appends a line for menuItemID at the item's current price.
func (s *Service) AddItem(ctx context.Context, orderID, menuItemID string, quantity int, instructions string) (*Order, error) {
	o, err := s.mutate(ctx, orderID, func(ctx context.Context, tx Tx, o *Order) error {
		m, err := tx.GetMenuItem(ctx, menuItemID)
		if err != nil {
			return err
		}
		_, err = o.AddItem(s.newID(), *m, quantity, instructions, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.itemsAdded.Add(ctx, int64(quantity))
	return o, nil
}

// RemoveItem deletes a line from the order.
func (s *Service) RemoveItem(ctx context.Context, orderID, itemID string) (*Order, error) {
	return s.mutate(ctx, orderID, func(_ context.Context, _ Tx, o *Order) error {
		return o.RemoveItem(itemID, s.now())
	})
}

// SetItemQuantity changes a line's quantity.
func (s *Service) SetItemQuantity(ctx context.Context, orderID, itemID string, quantity int) (*Order, error) {
	return s.mutate(ctx, orderID, func(_ context.Context, _ Tx, o *Order) error {
		return o.SetItemQuantity(itemID, quantity, s.now())
	})
}

// mutate runs an item-collection change under the order lock and persists
// the recomputed order.
func (s *Service) mutate(ctx context.Context, orderID string, fn func(ctx context.Context, tx Tx, o *Order) error) (*Order, error) {
	var out *Order
	err := s.orders.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status.IsTerminal() && !s.allowClosedEdits {
			return errors.Wrapf(ErrOrderClosed, "order %s is %s", o.ID, o.Status)
		}
		if err := fn(ctx, tx, o); err != nil {
			return err
		}
		if err := tx.Save(ctx, o); err != nil {
			return errors.Wrap(err, "save order")
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetStatus moves the order to status. Entering CONFIRMED marks the table
// OCCUPIED and entering COMPLETED marks it AVAILABLE, in the same transaction
// as the status write.
func (s *Service) SetStatus(ctx context.Context, orderID string, status Status) (*Order, error) {
	var (
		out  *Order
		from Status
	)
	err := s.orders.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		from = o.Status
		now := s.now()
		if err := o.Transition(status, s.policy, now); err != nil {
			return err
		}
		if occ, ok := Occupancy(status); ok {
			if _, err := tx.LockTable(ctx, o.TableID); err != nil {
				return errors.Wrapf(err, "lock table %s", o.TableID)
			}
			if err := tx.SetOccupancy(ctx, o.TableID, occ, now); err != nil {
				return errors.Wrap(err, "set occupancy")
			}
		}
		if err := tx.Save(ctx, o); err != nil {
			return errors.Wrap(err, "save order")
		}
		if err := tx.AppendHistory(ctx, StatusChange{
			OrderID:   o.ID,
			From:      from,
			To:        status,
			ChangedAt: now,
		}); err != nil {
			return errors.Wrap(err, "append history")
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(status)),
	))
	zctx.From(ctx).Info("Order status changed",
		zap.String("order_id", out.ID),
		zap.String("table_id", out.TableID),
		zap.String("from", string(from)),
		zap.String("to", string(status)),
	)
	return out, nil
}

// Confirm moves the order to CONFIRMED.
func (s *Service) Confirm(ctx context.Context, id string) (*Order, error) {
	return s.SetStatus(ctx, id, StatusConfirmed)
}

// StartPreparation moves the order to IN_PREPARATION.
func (s *Service) StartPreparation(ctx context.Context, id string) (*Order, error) {
	return s.SetStatus(ctx, id, StatusInPreparation)
}

// MarkReady moves the order to READY.
func (s *Service) MarkReady(ctx context.Context, id string) (*Order, error) {
	return s.SetStatus(ctx, id, StatusReady)
}

// MarkServed moves the order to SERVED.
func (s *Service) MarkServed(ctx context.Context, id string) (*Order, error) {
	return s.SetStatus(ctx, id, StatusServed)
}

// Complete closes the order after payment.
func (s *Service) Complete(ctx context.Context, id string) (*Order, error) {
	return s.SetStatus(ctx, id, StatusCompleted)
}

// Cancel closes the order without completing it.
func (s *Service) Cancel(ctx context.Context, id string) (*Order, error) {
	return s.SetStatus(ctx, id, StatusCancelled)
}

// SetItemStatus sets the kitchen status of one line. Table occupancy is never
// affected by item statuses.
func (s *Service) SetItemStatus(ctx context.Context, orderID, itemID string, status ItemStatus) (*Order, error) {
	var out *Order
	err := s.orders.Atomic(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := o.SetItemStatus(itemID, status, s.now()); err != nil {
			return err
		}
		if err := tx.Save(ctx, o); err != nil {
			return errors.Wrap(err, "save order")
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a single order with its lines.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// List returns the orders selected by f.
func (s *Service) List(ctx context.Context, f Filter) ([]Order, error) {
	if f.Kind == FilterTable {
		if _, err := s.tables.GetByID(ctx, f.TableID); err != nil {
			return nil, err
		}
	}
	orders, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// Today lists orders created during the current calendar day in loc. The day
// bounds are computed once for the whole query.
func (s *Service) Today(ctx context.Context, loc *time.Location) ([]Order, error) {
	return s.List(ctx, Today(s.now(), loc))
}

// History returns the status changes of an order, oldest first.
func (s *Service) History(ctx context.Context, orderID string) ([]StatusChange, error) {
	if _, err := s.orders.GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.orders.History(ctx, orderID)
}
