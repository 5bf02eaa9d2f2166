package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/tableside/internal/receipt"
)

// Config holds the complete application configuration, loadable from
// environment variables (TABLESIDE_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (TABLESIDE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Timezone    string `default:"Local" usage:"IANA time zone of the restaurant, used for the today listing"`
	Orders      OrdersConfig
	Tables      TablesConfig
	Receipt     ReceiptConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// OrdersConfig holds the ticket engine policy switches.
type OrdersConfig struct {
	StrictTransitions bool          `default:"false" usage:"Only allow the next status on the forward path" flag:"strict-transitions"`
	AllowClosedEdits  bool          `default:"false" usage:"Allow item changes on completed or cancelled orders" flag:"allow-closed-edits"`
	LockTimeout       time.Duration `default:"3s" usage:"How long a write waits for an order or table lock" flag:"lock-timeout"`
}

// TablesConfig holds table registry settings.
type TablesConfig struct {
	QRBaseURL string `default:"http://localhost:3000/order?table=" usage:"Ordering page encoded into table QR codes" flag:"qr-base-url"`
}

// ReceiptConfig controls receipt content.
type ReceiptConfig struct {
	ShopName       string `default:"Tableside Izakaya" usage:"Shop name printed on receipts"`
	Address        string `default:"" usage:"Shop address printed on receipts"`
	Phone          string `default:"" usage:"Shop phone printed on receipts"`
	TaxRate        string `default:"0.10" usage:"Consumption tax rate added to the subtotal"`
	CurrencySymbol string `default:"¥" usage:"Currency symbol"`
	CurrencyDigits int32  `default:"0" usage:"Minor-unit digits printed for amounts"`
}

// AuthConfig controls staff API keys. Staff routes are open when Pepper is
// empty.
type AuthConfig struct {
	Pepper string `usage:"HMAC pepper for staff API key hashing (TABLESIDE_AUTH_PEPPER)" flag:"auth-pepper"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "TABLESIDE",
		Files:     []string{"config.yaml", "/etc/tableside/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set TABLESIDE_DATABASE_URL or DATABASE_URL")
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	if _, err := cfg.Receipt.Formatter(time.Local); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's TABLESIDE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "load time zone %q", c.Timezone)
	}
	return loc, nil
}

// Formatter builds the receipt formatter for loc.
func (c ReceiptConfig) Formatter(loc *time.Location) (*receipt.Formatter, error) {
	rate := receipt.DefaultConfig().TaxRate
	if c.TaxRate != "" {
		r, err := decimal.NewFromString(c.TaxRate)
		if err != nil {
			return nil, errors.Wrapf(err, "parse tax rate %q", c.TaxRate)
		}
		if r.IsNegative() {
			return nil, errors.Errorf("tax rate %s is negative", c.TaxRate)
		}
		rate = r
	}
	return receipt.NewFormatter(receipt.Config{
		ShopName:       c.ShopName,
		Address:        c.Address,
		Phone:          c.Phone,
		TaxRate:        rate,
		CurrencySymbol: c.CurrencySymbol,
		CurrencyDigits: c.CurrencyDigits,
		Location:       loc,
	}), nil
}
