// Package memory implements the domain repositories in process memory. It
// serializes units of work and discards a unit's changes when it fails, which
// makes it a drop-in substitute for the PostgreSQL repositories in tests.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/tableside/internal/domain/menu"
	"github.com/xenking/tableside/internal/domain/order"
	"github.com/xenking/tableside/internal/domain/table"
)

// Store holds all entities.
type Store struct {
	mu      sync.Mutex
	state   state
	failing map[string]error
}

type state struct {
	menu    map[string]menu.Item
	tables  map[string]table.Table
	orders  map[string]order.Order
	history []order.StatusChange
}

func (s state) clone() state {
	c := state{
		menu:    make(map[string]menu.Item, len(s.menu)),
		tables:  make(map[string]table.Table, len(s.tables)),
		orders:  make(map[string]order.Order, len(s.orders)),
		history: slices.Clone(s.history),
	}
	for k, v := range s.menu {
		c.menu[k] = v
	}
	for k, v := range s.tables {
		c.tables[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = copyOrder(v)
	}
	return c
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		state: state{
			menu:   map[string]menu.Item{},
			tables: map[string]table.Table{},
			orders: map[string]order.Order{},
		},
		failing: map[string]error{},
	}
}

// FailNext makes the next call of the named unit-of-work operation
// ("Insert", "Save", "SetOccupancy", "AppendHistory", "LockTable") return err.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[op] = err
}

func (s *Store) injected(op string) error {
	if err, ok := s.failing[op]; ok {
		delete(s.failing, op)
		return err
	}
	return nil
}

// Menu returns the catalog repository.
func (s *Store) Menu() *MenuRepository { return &MenuRepository{s: s} }

// Tables returns the table registry repository.
func (s *Store) Tables() *TableRepository { return &TableRepository{s: s} }

// Orders returns the order repository.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{s: s} }

func copyOrder(o order.Order) order.Order {
	o.Items = slices.Clone(o.Items)
	if o.Items == nil {
		o.Items = []order.Item{}
	}
	if o.CompletedAt != nil {
		at := *o.CompletedAt
		o.CompletedAt = &at
	}
	return o
}

// MenuRepository implements menu.Repository.
type MenuRepository struct{ s *Store }

var _ menu.Repository = (*MenuRepository)(nil)

func (r *MenuRepository) selectItems(keep func(menu.Item) bool, less func(a, b menu.Item) int) []menu.Item {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]menu.Item, 0, len(r.s.state.menu))
	for _, it := range r.s.state.menu {
		if keep(it) {
			out = append(out, it)
		}
	}
	slices.SortFunc(out, less)
	return out
}

func byCategoryName(a, b menu.Item) int {
	if c := strings.Compare(string(a.Category), string(b.Category)); c != 0 {
		return c
	}
	return strings.Compare(a.Name, b.Name)
}

func byName(a, b menu.Item) int { return strings.Compare(a.Name, b.Name) }

func (r *MenuRepository) List(context.Context) ([]menu.Item, error) {
	return r.selectItems(func(menu.Item) bool { return true }, byCategoryName), nil
}

func (r *MenuRepository) ListAvailable(context.Context) ([]menu.Item, error) {
	return r.selectItems(func(it menu.Item) bool { return it.Available }, byCategoryName), nil
}

func (r *MenuRepository) ListByCategory(_ context.Context, c menu.Category) ([]menu.Item, error) {
	return r.selectItems(func(it menu.Item) bool { return it.Available && it.Category == c }, byName), nil
}

func (r *MenuRepository) Search(_ context.Context, name string) ([]menu.Item, error) {
	q := strings.ToLower(name)
	return r.selectItems(func(it menu.Item) bool {
		return it.Available && strings.Contains(strings.ToLower(it.Name), q)
	}, byName), nil
}

func (r *MenuRepository) ListByPriceRange(_ context.Context, minPrice, maxPrice decimal.Decimal) ([]menu.Item, error) {
	return r.selectItems(func(it menu.Item) bool {
		return it.Available && !it.Price.LessThan(minPrice) && !it.Price.GreaterThan(maxPrice)
	}, func(a, b menu.Item) int {
		if c := a.Price.Cmp(b.Price); c != 0 {
			return c
		}
		return byName(a, b)
	}), nil
}

func (r *MenuRepository) GetByID(_ context.Context, id string) (*menu.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return getMenuItem(r.s.state, id)
}

func getMenuItem(st state, id string) (*menu.Item, error) {
	it, ok := st.menu[id]
	if !ok {
		return nil, menu.ErrNotFound
	}
	return &it, nil
}

func (r *MenuRepository) Create(_ context.Context, it *menu.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.state.menu[it.ID]; ok {
		return errors.Errorf("menu item %s exists", it.ID)
	}
	r.s.state.menu[it.ID] = *it
	return nil
}

func (r *MenuRepository) Update(_ context.Context, it *menu.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.state.menu[it.ID]; !ok {
		return menu.ErrNotFound
	}
	r.s.state.menu[it.ID] = *it
	return nil
}

func (r *MenuRepository) ToggleAvailability(_ context.Context, id string) (*menu.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.state.menu[id]
	if !ok {
		return nil, menu.ErrNotFound
	}
	it.Available = !it.Available
	it.UpdatedAt = time.Now()
	r.s.state.menu[id] = it
	return &it, nil
}

func (r *MenuRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.state.menu[id]; !ok {
		return menu.ErrNotFound
	}
	for _, o := range r.s.state.orders {
		for _, it := range o.Items {
			if it.MenuItemID == id {
				return menu.ErrInUse
			}
		}
	}
	delete(r.s.state.menu, id)
	return nil
}

// TableRepository implements table.Repository.
type TableRepository struct{ s *Store }

var _ table.Repository = (*TableRepository)(nil)

func (r *TableRepository) selectTables(keep func(table.Table) bool, less func(a, b table.Table) int) []table.Table {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]table.Table, 0, len(r.s.state.tables))
	for _, t := range r.s.state.tables {
		if keep(t) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, less)
	return out
}

func byNumber(a, b table.Table) int { return strings.Compare(a.Number, b.Number) }

func (r *TableRepository) List(context.Context) ([]table.Table, error) {
	return r.selectTables(func(table.Table) bool { return true }, byNumber), nil
}

func (r *TableRepository) ListByOccupancy(_ context.Context, o table.Occupancy) ([]table.Table, error) {
	return r.selectTables(func(t table.Table) bool { return t.Occupancy == o }, byNumber), nil
}

func (r *TableRepository) FindAvailable(_ context.Context, capacity int) ([]table.Table, error) {
	return r.selectTables(func(t table.Table) bool {
		return t.Occupancy == table.Available && t.Capacity >= capacity
	}, func(a, b table.Table) int {
		if a.Capacity != b.Capacity {
			return a.Capacity - b.Capacity
		}
		return byNumber(a, b)
	}), nil
}

func (r *TableRepository) find(match func(table.Table) bool) (*table.Table, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.state.tables {
		if match(t) {
			return &t, nil
		}
	}
	return nil, table.ErrNotFound
}

func (r *TableRepository) GetByID(_ context.Context, id string) (*table.Table, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return getTable(r.s.state, id)
}

func getTable(st state, id string) (*table.Table, error) {
	t, ok := st.tables[id]
	if !ok {
		return nil, errors.Wrapf(table.ErrNotFound, "table %s", id)
	}
	return &t, nil
}

func (r *TableRepository) GetByNumber(_ context.Context, number string) (*table.Table, error) {
	return r.find(func(t table.Table) bool { return t.Number == number })
}

func (r *TableRepository) GetByQRCode(_ context.Context, code string) (*table.Table, error) {
	return r.find(func(t table.Table) bool { return t.QRCode == code })
}

func (r *TableRepository) numberTaken(number, exceptID string) bool {
	for _, t := range r.s.state.tables {
		if t.Number == number && t.ID != exceptID {
			return true
		}
	}
	return false
}

func (r *TableRepository) Create(_ context.Context, t *table.Table) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.numberTaken(t.Number, t.ID) {
		return table.ErrDuplicateNumber
	}
	r.s.state.tables[t.ID] = *t
	return nil
}

func (r *TableRepository) Update(_ context.Context, t *table.Table) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.state.tables[t.ID]; !ok {
		return table.ErrNotFound
	}
	if r.numberTaken(t.Number, t.ID) {
		return table.ErrDuplicateNumber
	}
	r.s.state.tables[t.ID] = *t
	return nil
}

func (r *TableRepository) SetOccupancy(_ context.Context, id string, o table.Occupancy, at time.Time) (*table.Table, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.state.tables[id]
	if !ok {
		return nil, table.ErrNotFound
	}
	t.Occupancy = o
	t.UpdatedAt = at
	r.s.state.tables[id] = t
	return &t, nil
}

func (r *TableRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.state.tables[id]; !ok {
		return table.ErrNotFound
	}
	for _, o := range r.s.state.orders {
		if o.TableID == id {
			return table.ErrInUse
		}
	}
	delete(r.s.state.tables, id)
	return nil
}

// OrderRepository implements order.Repository. Atomic holds the store lock
// for the whole unit of work and works on a copy that replaces the live
// state only when fn succeeds.
type OrderRepository struct{ s *Store }

var _ order.Repository = (*OrderRepository)(nil)

func (r *OrderRepository) GetByID(_ context.Context, id string) (*order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return getOrder(r.s.state, id)
}

func getOrder(st state, id string) (*order.Order, error) {
	o, ok := st.orders[id]
	if !ok {
		return nil, &order.NotFoundError{OrderID: id}
	}
	c := copyOrder(o)
	return &c, nil
}

func (r *OrderRepository) List(_ context.Context, f order.Filter) ([]order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	all := make([]order.Order, 0, len(r.s.state.orders))
	for _, o := range r.s.state.orders {
		all = append(all, copyOrder(o))
	}
	// Map iteration is random; fix the base order so equal timestamps sort
	// deterministically.
	slices.SortFunc(all, func(a, b order.Order) int { return strings.Compare(a.ID, b.ID) })
	return f.Apply(all), nil
}

func (r *OrderRepository) History(_ context.Context, orderID string) ([]order.StatusChange, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []order.StatusChange
	for _, c := range r.s.state.history {
		if c.OrderID == orderID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *OrderRepository) Atomic(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	tx := &memTx{s: r.s, st: r.s.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.s.state = tx.st
	return nil
}

type memTx struct {
	s  *Store
	st state
}

var _ order.Tx = (*memTx)(nil)

func (t *memTx) LockOrder(_ context.Context, id string) (*order.Order, error) {
	return getOrder(t.st, id)
}

func (t *memTx) LockTable(_ context.Context, id string) (*table.Table, error) {
	if err := t.s.injected("LockTable"); err != nil {
		return nil, err
	}
	return getTable(t.st, id)
}

func (t *memTx) GetTable(_ context.Context, id string) (*table.Table, error) {
	return getTable(t.st, id)
}

func (t *memTx) GetMenuItem(_ context.Context, id string) (*menu.Item, error) {
	return getMenuItem(t.st, id)
}

func (t *memTx) Insert(_ context.Context, o *order.Order) error {
	if err := t.s.injected("Insert"); err != nil {
		return err
	}
	if _, ok := t.st.orders[o.ID]; ok {
		return errors.Errorf("order %s exists", o.ID)
	}
	t.st.orders[o.ID] = copyOrder(*o)
	return nil
}

func (t *memTx) Save(_ context.Context, o *order.Order) error {
	if err := t.s.injected("Save"); err != nil {
		return err
	}
	if _, ok := t.st.orders[o.ID]; !ok {
		return &order.NotFoundError{OrderID: o.ID}
	}
	t.st.orders[o.ID] = copyOrder(*o)
	return nil
}

func (t *memTx) SetOccupancy(_ context.Context, tableID string, occ table.Occupancy, at time.Time) error {
	if err := t.s.injected("SetOccupancy"); err != nil {
		return err
	}
	tb, ok := t.st.tables[tableID]
	if !ok {
		return errors.Wrapf(table.ErrNotFound, "table %s", tableID)
	}
	tb.Occupancy = occ
	tb.UpdatedAt = at
	t.st.tables[tableID] = tb
	return nil
}

func (t *memTx) AppendHistory(_ context.Context, c order.StatusChange) error {
	if err := t.s.injected("AppendHistory"); err != nil {
		return err
	}
	t.st.history = append(t.st.history, c)
	return nil
}
