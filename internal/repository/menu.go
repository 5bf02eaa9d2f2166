package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/tableside/internal/domain/menu"
)

const (
	menuColumns = `id, name, description, price, category, image_url, available, prep_minutes, created_at, updated_at`

	listMenuSQL = `SELECT ` + menuColumns + ` FROM menu_items ORDER BY category, name`

	listAvailableMenuSQL = `SELECT ` + menuColumns + ` FROM menu_items
		WHERE available ORDER BY category, name`

	listMenuByCategorySQL = `SELECT ` + menuColumns + ` FROM menu_items
		WHERE category = $1 AND available ORDER BY name`

	searchMenuSQL = `SELECT ` + menuColumns + ` FROM menu_items
		WHERE name ILIKE '%' || $1 || '%' ESCAPE '\' AND available ORDER BY name`

	listMenuByPriceSQL = `SELECT ` + menuColumns + ` FROM menu_items
		WHERE price BETWEEN $1 AND $2 AND available ORDER BY price, name`

	getMenuItemSQL = `SELECT ` + menuColumns + ` FROM menu_items WHERE id = $1`

	insertMenuItemSQL = `INSERT INTO menu_items (` + menuColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	updateMenuItemSQL = `UPDATE menu_items SET name = $2, description = $3, price = $4, category = $5,
		image_url = $6, available = $7, prep_minutes = $8, updated_at = $9
		WHERE id = $1`

	toggleMenuItemSQL = `UPDATE menu_items SET available = NOT available, updated_at = now()
		WHERE id = $1 RETURNING ` + menuColumns

	deleteMenuItemSQL = `DELETE FROM menu_items WHERE id = $1`
)

var _ menu.Repository = (*MenuRepository)(nil)

// MenuRepository implements menu.Repository backed by PostgreSQL.
type MenuRepository struct {
	pool *pgxpool.Pool
}

// NewMenuRepository returns a MenuRepository that uses the given pool.
func NewMenuRepository(pool *pgxpool.Pool) *MenuRepository {
	return &MenuRepository{pool: pool}
}

// List returns the whole catalog grouped by category.
func (r *MenuRepository) List(ctx context.Context) ([]menu.Item, error) {
	return r.collect(ctx, "listing menu", listMenuSQL)
}

// ListAvailable returns the items that can currently be ordered.
func (r *MenuRepository) ListAvailable(ctx context.Context) ([]menu.Item, error) {
	return r.collect(ctx, "listing available menu", listAvailableMenuSQL)
}

// ListByCategory returns the available items of one category.
func (r *MenuRepository) ListByCategory(ctx context.Context, c menu.Category) ([]menu.Item, error) {
	return r.collect(ctx, "listing menu by category", listMenuByCategorySQL, string(c))
}

// Search returns available items whose name contains the given text,
// ignoring case.
func (r *MenuRepository) Search(ctx context.Context, name string) ([]menu.Item, error) {
	return r.collect(ctx, "searching menu", searchMenuSQL, escapeLike(name))
}

// ListByPriceRange returns available items priced within [minPrice, maxPrice],
// cheapest first.
func (r *MenuRepository) ListByPriceRange(ctx context.Context, minPrice, maxPrice decimal.Decimal) ([]menu.Item, error) {
	return r.collect(ctx, "listing menu by price", listMenuByPriceSQL, minPrice, maxPrice)
}

// GetByID returns a single menu item by its identifier.
func (r *MenuRepository) GetByID(ctx context.Context, id string) (*menu.Item, error) {
	return getMenuItem(ctx, r.pool, id)
}

// Create inserts a new menu item.
func (r *MenuRepository) Create(ctx context.Context, it *menu.Item) error {
	_, err := r.pool.Exec(ctx, insertMenuItemSQL,
		it.ID, it.Name, it.Description, it.Price, string(it.Category),
		it.ImageURL, it.Available, it.PrepMinutes, it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating menu item %q: %w", it.ID, err)
	}
	return nil
}

// Update overwrites the editable fields of a menu item.
func (r *MenuRepository) Update(ctx context.Context, it *menu.Item) error {
	tag, err := r.pool.Exec(ctx, updateMenuItemSQL,
		it.ID, it.Name, it.Description, it.Price, string(it.Category),
		it.ImageURL, it.Available, it.PrepMinutes, it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating menu item %q: %w", it.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return menu.ErrNotFound
	}
	return nil
}

// ToggleAvailability flips the availability flag and returns the new state.
func (r *MenuRepository) ToggleAvailability(ctx context.Context, id string) (*menu.Item, error) {
	rows, err := r.pool.Query(ctx, toggleMenuItemSQL, id)
	if err != nil {
		return nil, fmt.Errorf("toggling menu item %q: %w", id, err)
	}
	it, err := pgx.CollectExactlyOneRow(rows, scanMenuItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, menu.ErrNotFound
		}
		return nil, fmt.Errorf("toggling menu item %q: %w", id, err)
	}
	return &it, nil
}

// Delete removes a menu item. Items referenced by order lines are kept and
// menu.ErrInUse is returned.
func (r *MenuRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteMenuItemSQL, id)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return menu.ErrInUse
		}
		return fmt.Errorf("deleting menu item %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return menu.ErrNotFound
	}
	return nil
}

func (r *MenuRepository) collect(ctx context.Context, op, sql string, args ...any) ([]menu.Item, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return pgx.CollectRows(rows, scanMenuItem)
}

func getMenuItem(ctx context.Context, q Querier, id string) (*menu.Item, error) {
	rows, err := q.Query(ctx, getMenuItemSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting menu item %q: %w", id, err)
	}

	it, err := pgx.CollectExactlyOneRow(rows, scanMenuItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, menu.ErrNotFound
		}
		return nil, fmt.Errorf("getting menu item %q: %w", id, err)
	}
	return &it, nil
}

func scanMenuItem(row pgx.CollectableRow) (menu.Item, error) {
	var (
		it       menu.Item
		category string
		prep     int32
	)
	err := row.Scan(
		&it.ID, &it.Name, &it.Description, &it.Price, &category,
		&it.ImageURL, &it.Available, &prep, &it.CreatedAt, &it.UpdatedAt,
	)
	it.Category = menu.Category(category)
	it.PrepMinutes = int(prep)
	return it, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
