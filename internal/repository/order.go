package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/tableside/internal/domain/menu"
	"github.com/xenking/tableside/internal/domain/order"
	"github.com/xenking/tableside/internal/domain/table"
)

const (
	orderColumns = `id, table_id, total, status, customer_note, created_at, updated_at, completed_at`

	getOrderSQL  = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	lockOrderSQL = getOrderSQL + ` FOR UPDATE`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id`

	listActiveOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE status NOT IN ('COMPLETED', 'CANCELLED') ORDER BY created_at, id`

	listKitchenOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE status IN ('CONFIRMED', 'IN_PREPARATION') ORDER BY created_at, id`

	listTableOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE table_id = $1 ORDER BY created_at DESC, id`

	listRangeOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at DESC, id`

	insertOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	updateOrderSQL = `UPDATE orders
		SET total = $2, status = $3, customer_note = $4, updated_at = $5, completed_at = $6
		WHERE id = $1`

	itemColumns = `id, order_id, menu_item_id, name, unit_price, quantity, instructions, status, created_at, updated_at`

	listItemsSQL = `SELECT ` + itemColumns + ` FROM order_items
		WHERE order_id = ANY($1) ORDER BY order_id, position`

	upsertItemSQL = `INSERT INTO order_items
		(id, order_id, menu_item_id, position, name, unit_price, quantity, instructions, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			position = EXCLUDED.position,
			quantity = EXCLUDED.quantity,
			instructions = EXCLUDED.instructions,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`

	pruneItemsSQL = `DELETE FROM order_items WHERE order_id = $1 AND id <> ALL($2)`

	updateOccupancySQL = `UPDATE restaurant_tables SET occupancy = $2, updated_at = $3 WHERE id = $1`

	insertHistorySQL = `INSERT INTO order_status_history (order_id, from_status, to_status, changed_at)
		VALUES ($1, $2, $3, $4)`

	listHistorySQL = `SELECT order_id, from_status, to_status, changed_at FROM order_status_history
		WHERE order_id = $1 ORDER BY id`

	setLockTimeoutSQL = `SELECT set_config('lock_timeout', $1, true)`
)

// DefaultLockTimeout bounds how long a mutation waits for a row lock held by
// a concurrent writer.
const DefaultLockTimeout = 3 * time.Second

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Orders,
// their lines and table occupancy are written in a single transaction with
// the order row locked first and the table row second.
type OrderRepository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
// A zero lockTimeout selects DefaultLockTimeout.
func NewOrderRepository(pool *pgxpool.Pool, lockTimeout time.Duration) *OrderRepository {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &OrderRepository{pool: pool, lockTimeout: lockTimeout}
}

// GetByID returns an order with its lines in insertion order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return getOrder(ctx, r.pool, getOrderSQL, id)
}

// List returns the orders selected by f. Lines for all returned orders are
// loaded with one extra query.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	var (
		sql  string
		args []any
	)
	switch f.Kind {
	case order.FilterAll:
		sql = listOrdersSQL
	case order.FilterActive:
		sql = listActiveOrdersSQL
	case order.FilterKitchen:
		sql = listKitchenOrdersSQL
	case order.FilterTable:
		sql, args = listTableOrdersSQL, []any{f.TableID}
	case order.FilterRange:
		sql, args = listRangeOrdersSQL, []any{f.From, f.To}
	default:
		return nil, fmt.Errorf("unknown filter kind %d", f.Kind)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	if err := attachItems(ctx, r.pool, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// History returns the recorded status changes of an order, oldest first.
func (r *OrderRepository) History(ctx context.Context, orderID string) ([]order.StatusChange, error) {
	rows, err := r.pool.Query(ctx, listHistorySQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing history of order %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.StatusChange, error) {
		var (
			c        order.StatusChange
			from, to string
		)
		err := row.Scan(&c.OrderID, &from, &to, &c.ChangedAt)
		c.From, c.To = order.Status(from), order.Status(to)
		return c, err
	})
}

// Atomic runs fn in a read-committed transaction with a bounded lock wait.
// Lock timeouts, deadlocks and serialization failures surface as
// order.ErrConflict.
func (r *OrderRepository) Atomic(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		timeout := fmt.Sprintf("%dms", r.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, setLockTimeoutSQL, timeout); err != nil {
			return fmt.Errorf("setting lock timeout: %w", err)
		}
		return fn(ctx, &pgTx{tx: tx})
	})
	return conflictErr(err)
}

// pgTx implements order.Tx on top of a pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

var _ order.Tx = (*pgTx)(nil)

func (t *pgTx) LockOrder(ctx context.Context, id string) (*order.Order, error) {
	return getOrder(ctx, t.tx, lockOrderSQL, id)
}

func (t *pgTx) LockTable(ctx context.Context, id string) (*table.Table, error) {
	return getTable(ctx, t.tx, lockTableSQL, id)
}

// GetTable takes a share lock so the table cannot be deleted before the
// transaction commits.
func (t *pgTx) GetTable(ctx context.Context, id string) (*table.Table, error) {
	return getTable(ctx, t.tx, getTableForShareSQL, id)
}

func (t *pgTx) GetMenuItem(ctx context.Context, id string) (*menu.Item, error) {
	return getMenuItem(ctx, t.tx, id)
}

func (t *pgTx) Insert(ctx context.Context, o *order.Order) error {
	_, err := t.tx.Exec(ctx, insertOrderSQL,
		o.ID, o.TableID, o.Total, string(o.Status), o.CustomerNote, o.CreatedAt, o.UpdatedAt, o.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return t.upsertItems(ctx, o)
}

func (t *pgTx) Save(ctx context.Context, o *order.Order) error {
	tag, err := t.tx.Exec(ctx, updateOrderSQL,
		o.ID, o.Total, string(o.Status), o.CustomerNote, o.UpdatedAt, o.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return &order.NotFoundError{OrderID: o.ID}
	}

	keep := make([]string, len(o.Items))
	for i, it := range o.Items {
		keep[i] = it.ID
	}
	if _, err := t.tx.Exec(ctx, pruneItemsSQL, o.ID, keep); err != nil {
		return fmt.Errorf("pruning items of order %q: %w", o.ID, err)
	}
	return t.upsertItems(ctx, o)
}

func (t *pgTx) upsertItems(ctx context.Context, o *order.Order) error {
	if len(o.Items) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for i, it := range o.Items {
		b.Queue(upsertItemSQL,
			it.ID, o.ID, it.MenuItemID, i, it.Name, it.UnitPrice, it.Quantity,
			it.Instructions, string(it.Status), it.CreatedAt, it.UpdatedAt,
		)
	}
	if err := t.tx.SendBatch(ctx, b).Close(); err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return errors.Wrapf(menu.ErrNotFound, "order %s", o.ID)
		}
		return fmt.Errorf("writing items of order %q: %w", o.ID, err)
	}
	return nil
}

func (t *pgTx) SetOccupancy(ctx context.Context, tableID string, occ table.Occupancy, at time.Time) error {
	tag, err := t.tx.Exec(ctx, updateOccupancySQL, tableID, string(occ), at)
	if err != nil {
		return fmt.Errorf("setting occupancy of table %q: %w", tableID, err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(table.ErrNotFound, "table %s", tableID)
	}
	return nil
}

func (t *pgTx) AppendHistory(ctx context.Context, c order.StatusChange) error {
	_, err := t.tx.Exec(ctx, insertHistorySQL, c.OrderID, string(c.From), string(c.To), c.ChangedAt)
	if err != nil {
		return fmt.Errorf("recording status of order %q: %w", c.OrderID, err)
	}
	return nil
}

func getOrder(ctx context.Context, q Querier, sql, id string) (*order.Order, error) {
	rows, err := q.Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &order.NotFoundError{OrderID: id}
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	orders := []order.Order{o}
	if err := attachItems(ctx, q, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// attachItems loads the lines of every order in one query and assigns them
// in place.
func attachItems(ctx context.Context, q Querier, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	idx := make(map[string]int, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		idx[orders[i].ID] = i
		orders[i].Items = []order.Item{}
	}

	rows, err := q.Query(ctx, listItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it       order.Item
			orderID  string
			quantity int32
			status   string
		)
		if err := rows.Scan(
			&it.ID, &orderID, &it.MenuItemID, &it.Name, &it.UnitPrice, &quantity,
			&it.Instructions, &status, &it.CreatedAt, &it.UpdatedAt,
		); err != nil {
			return fmt.Errorf("scanning order item: %w", err)
		}
		it.Quantity = int(quantity)
		it.Status = order.ItemStatus(status)
		if i, ok := idx[orderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.TableID, &o.Total, &status, &o.CustomerNote,
		&o.CreatedAt, &o.UpdatedAt, &o.CompletedAt,
	)
	o.Status = order.Status(status)
	return o, err
}
