//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/tableside/internal/domain/auth"
	"github.com/xenking/tableside/internal/domain/menu"
	"github.com/xenking/tableside/internal/domain/order"
	"github.com/xenking/tableside/internal/domain/table"
	"github.com/xenking/tableside/internal/repository"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "tableside",
				"POSTGRES_PASSWORD": "tableside",
				"POSTGRES_DB":       "tableside",
			},
			// The entrypoint restarts the server once after init.
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := pg.Terminate(context.Background()); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	host, err := pg.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://tableside:tableside@%s:%s/tableside?sslmode=disable", host, port.Port())
	pool, err = repository.NewPool(ctx, dsn)
	if err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	// Migrations are idempotent.
	if err := repository.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migrations rerun: %v", err)
	}

	return m.Run()
}

type env struct {
	tables  *repository.TableRepository
	items   *repository.MenuRepository
	orders  *order.Service
	tableID string
	ramen   *menu.Item
	gyoza   *menu.Item
}

// newEnv registers a fresh table and two dishes. Table numbers are unique per
// test so tests can share the database.
func newEnv(t *testing.T, number string) *env {
	t.Helper()
	ctx := context.Background()

	tables := repository.NewTableRepository(pool)
	items := repository.NewMenuRepository(pool)

	tb, err := table.NewService(table.ServiceConfig{}, tables).Create(ctx, number, 4)
	require.NoError(t, err)

	menuSvc := menu.NewService(items)
	ramen, err := menuSvc.Create(ctx, menu.Item{
		Name: "Tonkotsu Ramen " + number, Price: decimal.RequireFromString("780"),
		Category: menu.CategoryNoodles, Available: true,
	})
	require.NoError(t, err)
	gyoza, err := menuSvc.Create(ctx, menu.Item{
		Name: "Gyoza " + number, Price: decimal.RequireFromString("480"),
		Category: menu.CategoryAppetizer, Available: true,
	})
	require.NoError(t, err)

	svc, err := order.NewService(order.Config{},
		repository.NewOrderRepository(pool, 0), tables, noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	return &env{tables: tables, items: items, orders: svc, tableID: tb.ID, ramen: ramen, gyoza: gyoza}
}

func (e *env) occupancy(t *testing.T) table.Occupancy {
	t.Helper()
	tb, err := e.tables.GetByID(context.Background(), e.tableID)
	require.NoError(t, err)
	return tb.Occupancy
}

func TestOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, "L1")

	o, err := e.orders.Create(ctx, e.tableID, "birthday")
	require.NoError(t, err)

	o, err = e.orders.AddItem(ctx, o.ID, e.ramen.ID, 2, "firm noodles")
	require.NoError(t, err)
	o, err = e.orders.AddItem(ctx, o.ID, e.gyoza.ID, 1, "")
	require.NoError(t, err)
	assert.Equal(t, "2040.00", o.Total.StringFixed(2))

	_, err = e.orders.Confirm(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, table.Occupied, e.occupancy(t))

	kitchen, err := e.orders.List(ctx, order.KitchenQueue())
	require.NoError(t, err)
	assert.Contains(t, orderIDs(kitchen), o.ID)

	o, err = e.orders.SetItemQuantity(ctx, o.ID, o.Items[1].ID, 3)
	require.NoError(t, err)
	assert.Equal(t, "3000.00", o.Total.StringFixed(2))

	o, err = e.orders.SetItemStatus(ctx, o.ID, o.Items[0].ID, order.ItemReady)
	require.NoError(t, err)

	_, err = e.orders.MarkServed(ctx, o.ID)
	require.NoError(t, err)
	done, err := e.orders.Complete(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, table.Available, e.occupancy(t))

	got, err := e.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, e.ramen.ID, got.Items[0].MenuItemID)
	assert.Equal(t, order.ItemReady, got.Items[0].Status)
	assert.Equal(t, "firm noodles", got.Items[0].Instructions)
	assert.Equal(t, 3, got.Items[1].Quantity)
	assert.Equal(t, "3000.00", got.Total.StringFixed(2))
	assert.Equal(t, order.StatusCompleted, got.Status)
	assert.Equal(t, "birthday", got.CustomerNote)

	history, err := e.orders.History(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, order.StatusConfirmed, history[0].To)
	assert.Equal(t, order.StatusCompleted, history[2].To)

	byTable, err := e.orders.List(ctx, order.ByTable(e.tableID))
	require.NoError(t, err)
	assert.Equal(t, []string{o.ID}, orderIDs(byTable))

	_, err = e.orders.AddItem(ctx, o.ID, e.gyoza.ID, 1, "")
	require.ErrorIs(t, err, order.ErrOrderClosed)
}

func TestPriceSnapshot(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, "P1")

	o, err := e.orders.Create(ctx, e.tableID, "")
	require.NoError(t, err)
	_, err = e.orders.AddItem(ctx, o.ID, e.ramen.ID, 1, "")
	require.NoError(t, err)

	upd := *e.ramen
	upd.Price = decimal.RequireFromString("1200")
	_, err = menu.NewService(e.items).Update(ctx, e.ramen.ID, upd)
	require.NoError(t, err)

	got, err := e.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "780.00", got.Total.StringFixed(2))
	assert.Equal(t, "780.00", got.Items[0].UnitPrice.StringFixed(2))
}

func TestReferentialGuards(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, "R1")

	o, err := e.orders.Create(ctx, e.tableID, "")
	require.NoError(t, err)
	_, err = e.orders.AddItem(ctx, o.ID, e.ramen.ID, 1, "")
	require.NoError(t, err)

	require.ErrorIs(t, e.items.Delete(ctx, e.ramen.ID), menu.ErrInUse)
	require.ErrorIs(t, e.tables.Delete(ctx, e.tableID), table.ErrInUse)

	_, err = e.orders.Cancel(ctx, o.ID)
	require.NoError(t, err)
	require.ErrorIs(t, e.tables.Delete(ctx, e.tableID), table.ErrInUse)

	require.NoError(t, e.items.Delete(ctx, e.gyoza.ID))
	require.ErrorIs(t, e.items.Delete(ctx, e.gyoza.ID), menu.ErrNotFound)

	err = e.tables.Create(ctx, &table.Table{
		ID: "dup-r1", Number: "R1", Capacity: 2, Occupancy: table.Available,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	})
	require.ErrorIs(t, err, table.ErrDuplicateNumber)
}

func TestConcurrentAddItem(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, "C1")

	o, err := e.orders.Create(ctx, e.tableID, "")
	require.NoError(t, err)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.orders.AddItem(ctx, o.ID, e.gyoza.ID, 1, "")
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	got, err := e.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, n)
	assert.Equal(t, "4800.00", got.Total.StringFixed(2))
}

func TestConcurrentCompleteAndCancel(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, "C2")

	o, err := e.orders.Create(ctx, e.tableID, "")
	require.NoError(t, err)
	_, err = e.orders.Confirm(ctx, o.ID)
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  []order.Status
		fails []error
	)
	for _, to := range []order.Status{order.StatusCompleted, order.StatusCancelled} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.orders.SetStatus(ctx, o.ID, to)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fails = append(fails, err)
				return
			}
			wins = append(wins, to)
		}()
	}
	wg.Wait()

	require.Len(t, wins, 1)
	require.Len(t, fails, 1)
	assert.True(t, errors.Is(fails[0], order.ErrInvalidTransition) || errors.Is(fails[0], order.ErrConflict), fails[0])

	got, err := e.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, wins[0], got.Status)

	want := table.Occupied
	if wins[0] == order.StatusCompleted {
		want = table.Available
	}
	assert.Equal(t, want, e.occupancy(t))
}

func TestTodayRange(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, "T1")

	o, err := e.orders.Create(ctx, e.tableID, "")
	require.NoError(t, err)

	today, err := e.orders.Today(ctx, time.UTC)
	require.NoError(t, err)
	assert.Contains(t, orderIDs(today), o.ID)

	past, err := e.orders.List(ctx, order.Between(o.CreatedAt.Add(-48*time.Hour), o.CreatedAt.Add(-24*time.Hour)))
	require.NoError(t, err)
	assert.NotContains(t, orderIDs(past), o.ID)

	_, err = repository.NewOrderRepository(pool, 0).List(ctx, order.Filter{Kind: order.FilterKind(99)})
	require.ErrorContains(t, err, "unknown filter kind 99")
}

func TestStaffKeys(t *testing.T) {
	ctx := context.Background()
	a := auth.NewAuthenticator(repository.NewAPIKeyRepository(pool), []byte("pepper"))

	_, err := a.Register(ctx, "key-1", "Kitchen display", "kds-secret", []string{auth.ScopeKitchen})
	require.NoError(t, err)

	k, err := a.Authenticate(ctx, "kds-secret", auth.ScopeKitchen)
	require.NoError(t, err)
	assert.Equal(t, "Kitchen display", k.Name)

	_, err = a.Authenticate(ctx, "kds-secret", auth.ScopeAdmin)
	require.ErrorIs(t, err, auth.ErrForbidden)
	_, err = a.Authenticate(ctx, "wrong", auth.ScopeKitchen)
	require.ErrorIs(t, err, auth.ErrUnauthorized)
}

func orderIDs(orders []order.Order) []string {
	out := make([]string, len(orders))
	for i := range orders {
		out[i] = orders[i].ID
	}
	return out
}
