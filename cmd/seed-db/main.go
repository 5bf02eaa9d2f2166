package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/tableside/internal/domain/auth"
	"github.com/xenking/tableside/internal/domain/menu"
	"github.com/xenking/tableside/internal/domain/table"
	"github.com/xenking/tableside/internal/repository"
)

type menuItemJSON struct {
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	Price              decimal.Decimal `json:"price"`
	Category           string          `json:"category"`
	ImageURL           string          `json:"imageUrl"`
	PreparationMinutes int             `json:"preparationMinutes"`
}

type tableJSON struct {
	TableNumber string `json:"tableNumber"`
	Capacity    int    `json:"capacity"`
}

type options struct {
	databaseURL string
	menuFile    string
	tablesFile  string
	qrBaseURL   string
	staffKey    string
	staffName   string
	staffScopes string
	pepper      string
}

func main() {
	var o options

	flag.StringVar(&o.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&o.menuFile, "menu-file", "db/seed/menu.json", "path to menu items JSON file")
	flag.StringVar(&o.tablesFile, "tables-file", "db/seed/tables.json", "path to tables JSON file")
	flag.StringVar(&o.qrBaseURL, "qr-base-url", "", "ordering page encoded into table QR codes (or TABLESIDE_TABLES_QR_BASE_URL env)")
	flag.StringVar(&o.staffKey, "staff-key", "", "staff API key to register (or TABLESIDE_SEED_STAFF_KEY env)")
	flag.StringVar(&o.staffName, "staff-name", "Default staff key", "name of the registered staff key")
	flag.StringVar(&o.staffScopes, "staff-scopes", auth.ScopeAdmin, "comma-separated scopes of the staff key")
	flag.StringVar(&o.pepper, "auth-pepper", "", "HMAC pepper for staff API key hashing (or TABLESIDE_AUTH_PEPPER env)")
	flag.Parse()

	if o.databaseURL == "" {
		o.databaseURL = os.Getenv("DATABASE_URL")
	}
	if o.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if o.qrBaseURL == "" {
		o.qrBaseURL = os.Getenv("TABLESIDE_TABLES_QR_BASE_URL")
	}
	if o.staffKey == "" {
		o.staffKey = os.Getenv("TABLESIDE_SEED_STAFF_KEY")
	}
	if o.pepper == "" {
		o.pepper = os.Getenv("TABLESIDE_AUTH_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, o); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, o options) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, o.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	tables := repository.NewTableRepository(pool)
	if err := seedTables(ctx, tables, table.NewService(table.ServiceConfig{QRBaseURL: o.qrBaseURL}, tables), o.tablesFile); err != nil {
		return errors.Wrap(err, "seed tables")
	}

	items := repository.NewMenuRepository(pool)
	if err := seedMenu(ctx, items, menu.NewService(items), o.menuFile); err != nil {
		return errors.Wrap(err, "seed menu")
	}

	if o.staffKey != "" {
		keys := auth.NewAuthenticator(repository.NewAPIKeyRepository(pool), []byte(o.pepper))
		if err := seedStaffKey(ctx, keys, o); err != nil {
			return errors.Wrap(err, "seed staff key")
		}
	}

	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}
	return nil
}

// seedTables creates every table whose number is not registered yet.
func seedTables(ctx context.Context, repo table.Repository, svc *table.Service, path string) error {
	slog.Info("reading tables file", slog.String("path", path))

	var tables []tableJSON
	if err := readJSON(path, &tables); err != nil {
		return err
	}

	for _, t := range tables {
		if _, err := repo.GetByNumber(ctx, t.TableNumber); err == nil {
			slog.Info("table exists", slog.String("number", t.TableNumber))
			continue
		} else if !errors.Is(err, table.ErrNotFound) {
			return errors.Wrapf(err, "look up table %s", t.TableNumber)
		}

		created, err := svc.Create(ctx, t.TableNumber, t.Capacity)
		if err != nil {
			return errors.Wrapf(err, "create table %s", t.TableNumber)
		}

		slog.Info("created table",
			slog.String("id", created.ID),
			slog.String("number", created.Number),
			slog.String("qr_code", created.QRCode),
		)
	}

	return nil
}

// seedMenu creates the menu once; a non-empty catalog is left alone.
func seedMenu(ctx context.Context, repo menu.Repository, svc *menu.Service, path string) error {
	existing, err := repo.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list menu")
	}
	if len(existing) > 0 {
		slog.Info("menu already seeded", slog.Int("count", len(existing)))
		return nil
	}

	slog.Info("reading menu file", slog.String("path", path))

	var items []menuItemJSON
	if err := readJSON(path, &items); err != nil {
		return err
	}

	slog.Info("creating menu items", slog.Int("count", len(items)))

	for _, it := range items {
		created, err := svc.Create(ctx, menu.Item{
			Name:        it.Name,
			Description: it.Description,
			Price:       it.Price,
			Category:    menu.Category(it.Category),
			ImageURL:    it.ImageURL,
			Available:   true,
			PrepMinutes: it.PreparationMinutes,
		})
		if err != nil {
			return errors.Wrapf(err, "create menu item %q", it.Name)
		}

		slog.Info("created menu item", slog.String("id", created.ID), slog.String("name", created.Name))
	}

	return nil
}

func seedStaffKey(ctx context.Context, keys *auth.Authenticator, o options) error {
	if o.pepper == "" {
		slog.Warn("registering staff key without a pepper")
	}

	var scopes []string
	for _, s := range strings.Split(o.staffScopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopes = append(scopes, s)
		}
	}

	k, err := keys.Register(ctx, uuid.NewString(), o.staffName, o.staffKey, scopes)
	if err != nil {
		return err
	}

	slog.Info("registered staff key",
		slog.String("id", k.ID),
		slog.String("name", k.Name),
		slog.String("scopes", strings.Join(k.Scopes, ",")),
	)

	return nil
}
