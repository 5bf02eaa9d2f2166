// Package receipt renders read-only order snapshots as printable receipts.
package receipt

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/tableside/internal/domain/order"
	"github.com/xenking/tableside/internal/domain/table"
)

const (
	width       = 40
	nameWidth   = 20
	timeLayout  = "2006-01-02 15:04"
	defaultName = "Tableside Izakaya"
)

// Config controls receipt content and money formatting.
type Config struct {
	ShopName string
	Address  string
	Phone    string
	// TaxRate is the consumption tax added on top of the subtotal.
	TaxRate        decimal.Decimal
	CurrencySymbol string
	// CurrencyDigits is the number of minor-unit digits printed.
	CurrencyDigits int32
	Location       *time.Location
}

// DefaultConfig returns the defaults used when no receipt settings are given.
func DefaultConfig() Config {
	return Config{
		ShopName:       defaultName,
		TaxRate:        decimal.NewFromFloat(0.10),
		CurrencySymbol: "¥",
		CurrencyDigits: 0,
		Location:       time.Local,
	}
}

// Formatter renders receipts. It holds no state besides its configuration
// and is safe for concurrent use.
type Formatter struct {
	cfg Config
}

// NewFormatter returns a Formatter, filling zero fields of cfg from
// DefaultConfig.
func NewFormatter(cfg Config) *Formatter {
	def := DefaultConfig()
	if cfg.ShopName == "" {
		cfg.ShopName = def.ShopName
	}
	if cfg.CurrencySymbol == "" {
		cfg.CurrencySymbol = def.CurrencySymbol
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.TaxRate.IsNegative() {
		cfg.TaxRate = def.TaxRate
	}
	return &Formatter{cfg: cfg}
}

// Totals is the money breakdown printed at the bottom of a receipt.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Totals computes subtotal, tax and grand total for o. The subtotal is the
// order's stored total; tax is rounded to the printed precision.
func (f *Formatter) Totals(o *order.Order) Totals {
	sub := o.Total
	tax := sub.Mul(f.cfg.TaxRate).Round(f.cfg.CurrencyDigits)
	return Totals{Subtotal: sub, Tax: tax, Total: sub.Add(tax)}
}

// Number is the short order number printed on receipts.
func Number(o *order.Order) string {
	id := strings.ReplaceAll(o.ID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return strings.ToUpper(id)
}

// Money formats an amount with the configured symbol, precision and
// thousands separators.
func (f *Formatter) Money(d decimal.Decimal) string {
	s := d.StringFixed(f.cfg.CurrencyDigits)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return sign + f.cfg.CurrencySymbol + b.String()
}

// Text renders the plain-text receipt.
func (f *Formatter) Text(o *order.Order, t *table.Table) string {
	var (
		b      strings.Builder
		double = strings.Repeat("=", width) + "\n"
		single = strings.Repeat("-", width) + "\n"
	)

	b.WriteString(double)
	b.WriteString(center(f.cfg.ShopName, width) + "\n")
	b.WriteString(double)
	b.WriteString("RECEIPT\n\n")

	fmt.Fprintf(&b, "Order: %s\n", Number(o))
	fmt.Fprintf(&b, "Table: %s\n", tableNumber(t))
	fmt.Fprintf(&b, "Date:  %s\n", o.CreatedAt.In(f.cfg.Location).Format(timeLayout))
	fmt.Fprintf(&b, "Status: %s\n", StatusLabel(o.Status))
	b.WriteString(single)
	fmt.Fprintf(&b, "%-20s %4s %14s\n", "Item", "Qty", "Amount")
	b.WriteString(single)

	for _, it := range o.Items {
		fmt.Fprintf(&b, "%-20s %4d %14s\n", truncate(it.Name, nameWidth), it.Quantity, f.Money(it.LineTotal()))
		if it.Instructions != "" {
			fmt.Fprintf(&b, "  * %s\n", it.Instructions)
		}
	}
	b.WriteString(single)

	tot := f.Totals(o)
	fmt.Fprintf(&b, "%-20s %19s\n", "Subtotal:", f.Money(tot.Subtotal))
	fmt.Fprintf(&b, "%-20s %19s\n", "Tax ("+f.taxPercent()+"):", f.Money(tot.Tax))
	fmt.Fprintf(&b, "%-20s %19s\n", "Total:", f.Money(tot.Total))
	b.WriteString(double)

	if o.CustomerNote != "" {
		fmt.Fprintf(&b, "Note: %s\n", o.CustomerNote)
		b.WriteString(single)
	}

	b.WriteString("Thank you for dining with us!\n")
	b.WriteString("We look forward to your next visit.\n\n")
	if f.cfg.Address != "" {
		fmt.Fprintf(&b, "Address: %s\n", f.cfg.Address)
	}
	if f.cfg.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", f.cfg.Phone)
	}
	b.WriteString(double)
	return b.String()
}

// WriteGzip writes the gzip-compressed text receipt to w.
func (f *Formatter) WriteGzip(w io.Writer, o *order.Order, t *table.Table) error {
	zw := pgzip.NewWriter(w)
	zw.Name = Filename(o, "txt")
	zw.ModTime = o.UpdatedAt
	if _, err := io.WriteString(zw, f.Text(o, t)); err != nil {
		_ = zw.Close()
		return errors.Wrap(err, "write receipt")
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "close gzip")
	}
	return nil
}

// Filename is the download name of the receipt for o.
func Filename(o *order.Order, ext string) string {
	return "receipt_" + Number(o) + "." + ext
}

func (f *Formatter) taxPercent() string {
	return f.cfg.TaxRate.Shift(2).String() + "%"
}

func tableNumber(t *table.Table) string {
	if t == nil {
		return "-"
	}
	return t.Number
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}

func center(s string, n int) string {
	pad := (n - utf8.RuneCountInString(s)) / 2
	if pad <= 0 {
		return s
	}
	return strings.Repeat(" ", pad) + s
}
