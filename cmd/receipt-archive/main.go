package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/tableside/internal/domain/order"
	"github.com/xenking/tableside/internal/domain/table"
	"github.com/xenking/tableside/internal/receipt"
	"github.com/xenking/tableside/internal/repository"
)

type options struct {
	databaseURL string
	day         string
	timezone    string
	outDir      string
	workers     int
	shopName    string
	taxRate     string
	currency    string
}

func main() {
	var o options

	flag.StringVar(&o.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&o.day, "date", "", "local day to archive as YYYY-MM-DD (default: today)")
	flag.StringVar(&o.timezone, "tz", "Local", "IANA time zone of the restaurant")
	flag.StringVar(&o.outDir, "out", "receipts", "directory the gzip receipts are written to")
	flag.IntVar(&o.workers, "workers", 4, "number of receipts written in parallel")
	flag.StringVar(&o.shopName, "shop-name", receipt.DefaultConfig().ShopName, "shop name printed on receipts")
	flag.StringVar(&o.taxRate, "tax-rate", receipt.DefaultConfig().TaxRate.String(), "consumption tax rate")
	flag.StringVar(&o.currency, "currency-symbol", receipt.DefaultConfig().CurrencySymbol, "currency symbol")
	flag.Parse()

	if o.databaseURL == "" {
		o.databaseURL = os.Getenv("DATABASE_URL")
	}
	if o.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, o); err != nil {
		slog.Error("receipt archive failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, o options) error {
	loc := time.Local
	if o.timezone != "" && o.timezone != "Local" {
		l, err := time.LoadLocation(o.timezone)
		if err != nil {
			return errors.Wrapf(err, "load time zone %q", o.timezone)
		}
		loc = l
	}
	day := time.Now()
	if o.day != "" {
		d, err := time.ParseInLocation(time.DateOnly, o.day, loc)
		if err != nil {
			return errors.Wrapf(err, "parse date %q", o.day)
		}
		day = d
	}
	rate, err := decimal.NewFromString(o.taxRate)
	if err != nil {
		return errors.Wrapf(err, "parse tax rate %q", o.taxRate)
	}
	f := receipt.NewFormatter(receipt.Config{
		ShopName:       o.shopName,
		TaxRate:        rate,
		CurrencySymbol: o.currency,
		Location:       loc,
	})

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, o.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	orders, err := repository.NewOrderRepository(pool, 0).List(ctx, order.Today(day, loc))
	if err != nil {
		return errors.Wrap(err, "list orders")
	}
	tables, err := repository.NewTableRepository(pool).List(ctx)
	if err != nil {
		return errors.Wrap(err, "list tables")
	}
	byID := make(map[string]*table.Table, len(tables))
	for i := range tables {
		byID[tables[i].ID] = &tables[i]
	}

	if err := os.MkdirAll(o.outDir, 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}

	from, _ := order.DayRange(day, loc)
	slog.Info("archiving receipts",
		slog.String("day", from.Format(time.DateOnly)),
		slog.Int("orders", len(orders)),
		slog.Int("workers", o.workers),
	)

	var written atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(o.workers, 1))
	for i := range orders {
		ord := &orders[i]
		if ord.Status != order.StatusCompleted {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := writeReceipt(f, o.outDir, ord, byID[ord.TableID]); err != nil {
				return errors.Wrapf(err, "order %s", ord.ID)
			}
			written.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("receipt archive completed", slog.Int64("written", written.Load()), slog.String("dir", o.outDir))
	return nil
}

func writeReceipt(f *receipt.Formatter, dir string, o *order.Order, t *table.Table) (err error) {
	path := filepath.Join(dir, receipt.Filename(o, "txt.gz"))
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create file")
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close file")
		}
	}()
	return f.WriteGzip(file, o, t)
}
