package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/tableside/internal/domain/table"
)

const (
	tableColumns = `id, number, capacity, occupancy, qr_code, created_at, updated_at`

	listTablesSQL = `SELECT ` + tableColumns + ` FROM restaurant_tables ORDER BY number`

	listTablesByOccupancySQL = `SELECT ` + tableColumns + ` FROM restaurant_tables
		WHERE occupancy = $1 ORDER BY number`

	findAvailableTablesSQL = `SELECT ` + tableColumns + ` FROM restaurant_tables
		WHERE occupancy = 'AVAILABLE' AND capacity >= $1 ORDER BY capacity, number`

	getTableSQL         = `SELECT ` + tableColumns + ` FROM restaurant_tables WHERE id = $1`
	getTableForShareSQL = getTableSQL + ` FOR SHARE`
	lockTableSQL        = getTableSQL + ` FOR UPDATE`
	getTableByNumberSQL = `SELECT ` + tableColumns + ` FROM restaurant_tables WHERE number = $1`
	getTableByQRSQL     = `SELECT ` + tableColumns + ` FROM restaurant_tables WHERE qr_code = $1`

	insertTableSQL = `INSERT INTO restaurant_tables (` + tableColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	updateTableSQL = `UPDATE restaurant_tables
		SET number = $2, capacity = $3, occupancy = $4, qr_code = $5, updated_at = $6
		WHERE id = $1`

	setOccupancySQL = `UPDATE restaurant_tables SET occupancy = $2, updated_at = $3
		WHERE id = $1 RETURNING ` + tableColumns

	// Closed orders still block deletion through the FK.
	tableHasOpenOrdersSQL = `SELECT EXISTS (SELECT 1 FROM orders
		WHERE table_id = $1 AND status NOT IN ('COMPLETED', 'CANCELLED'))`

	deleteTableSQL = `DELETE FROM restaurant_tables WHERE id = $1`
)

var _ table.Repository = (*TableRepository)(nil)

// TableRepository implements table.Repository backed by PostgreSQL.
type TableRepository struct {
	pool *pgxpool.Pool
}

// NewTableRepository returns a TableRepository that uses the given pool.
func NewTableRepository(pool *pgxpool.Pool) *TableRepository {
	return &TableRepository{pool: pool}
}

// List returns all tables ordered by number.
func (r *TableRepository) List(ctx context.Context) ([]table.Table, error) {
	rows, err := r.pool.Query(ctx, listTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	return pgx.CollectRows(rows, scanTable)
}

// ListByOccupancy returns tables in the given occupancy state.
func (r *TableRepository) ListByOccupancy(ctx context.Context, o table.Occupancy) ([]table.Table, error) {
	rows, err := r.pool.Query(ctx, listTablesByOccupancySQL, string(o))
	if err != nil {
		return nil, fmt.Errorf("listing %s tables: %w", o, err)
	}
	return pgx.CollectRows(rows, scanTable)
}

// FindAvailable returns available tables seating at least capacity guests,
// smallest first.
func (r *TableRepository) FindAvailable(ctx context.Context, capacity int) ([]table.Table, error) {
	rows, err := r.pool.Query(ctx, findAvailableTablesSQL, capacity)
	if err != nil {
		return nil, fmt.Errorf("finding tables for %d: %w", capacity, err)
	}
	return pgx.CollectRows(rows, scanTable)
}

// GetByID returns a single table.
func (r *TableRepository) GetByID(ctx context.Context, id string) (*table.Table, error) {
	return getTable(ctx, r.pool, getTableSQL, id)
}

// GetByNumber returns the table carrying the given number.
func (r *TableRepository) GetByNumber(ctx context.Context, number string) (*table.Table, error) {
	return getTable(ctx, r.pool, getTableByNumberSQL, number)
}

// GetByQRCode returns the table whose QR code payload matches.
func (r *TableRepository) GetByQRCode(ctx context.Context, code string) (*table.Table, error) {
	return getTable(ctx, r.pool, getTableByQRSQL, code)
}

// Create inserts a new table.
func (r *TableRepository) Create(ctx context.Context, t *table.Table) error {
	_, err := r.pool.Exec(ctx, insertTableSQL,
		t.ID, t.Number, t.Capacity, string(t.Occupancy), t.QRCode, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return table.ErrDuplicateNumber
		}
		return fmt.Errorf("creating table %q: %w", t.Number, err)
	}
	return nil
}

// Update overwrites number, capacity, occupancy and QR code.
func (r *TableRepository) Update(ctx context.Context, t *table.Table) error {
	tag, err := r.pool.Exec(ctx, updateTableSQL,
		t.ID, t.Number, t.Capacity, string(t.Occupancy), t.QRCode, t.UpdatedAt,
	)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return table.ErrDuplicateNumber
		}
		return fmt.Errorf("updating table %q: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return table.ErrNotFound
	}
	return nil
}

// SetOccupancy overrides the occupancy state of a table.
func (r *TableRepository) SetOccupancy(ctx context.Context, id string, o table.Occupancy, at time.Time) (*table.Table, error) {
	rows, err := r.pool.Query(ctx, setOccupancySQL, id, string(o), at)
	if err != nil {
		return nil, fmt.Errorf("setting occupancy of table %q: %w", id, conflictErr(err))
	}
	t, err := pgx.CollectExactlyOneRow(rows, scanTable)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, table.ErrNotFound
		}
		return nil, fmt.Errorf("setting occupancy of table %q: %w", id, conflictErr(err))
	}
	return &t, nil
}

// Delete removes a table that no order references.
func (r *TableRepository) Delete(ctx context.Context, id string) error {
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := getTable(ctx, tx, lockTableSQL, id); err != nil {
			return err
		}
		var open bool
		if err := tx.QueryRow(ctx, tableHasOpenOrdersSQL, id).Scan(&open); err != nil {
			return fmt.Errorf("checking open orders of table %q: %w", id, err)
		}
		if open {
			return table.ErrInUse
		}
		if _, err := tx.Exec(ctx, deleteTableSQL, id); err != nil {
			if pgCode(err) == codeForeignKeyViolation {
				return table.ErrInUse
			}
			return fmt.Errorf("deleting table %q: %w", id, err)
		}
		return nil
	})
}

func getTable(ctx context.Context, q Querier, sql, arg string) (*table.Table, error) {
	rows, err := q.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting table %q: %w", arg, conflictErr(err))
	}
	t, err := pgx.CollectExactlyOneRow(rows, scanTable)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(table.ErrNotFound, "table %s", arg)
		}
		return nil, fmt.Errorf("getting table %q: %w", arg, conflictErr(err))
	}
	return &t, nil
}

func scanTable(row pgx.CollectableRow) (table.Table, error) {
	var (
		t         table.Table
		capacity  int32
		occupancy string
	)
	err := row.Scan(&t.ID, &t.Number, &capacity, &occupancy, &t.QRCode, &t.CreatedAt, &t.UpdatedAt)
	t.Capacity = int(capacity)
	t.Occupancy = table.Occupancy(occupancy)
	return t, err
}
