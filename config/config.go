package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	SourceOKX         = "okx"
	SourceBinance     = "binance"
	SourceBybit       = "bybit"
	SourceHyperliquid = "hyperliquid"
)

// Config is the typed monitor configuration.
type Config struct {
	MarketSource         string
	OKXBaseURL           string
	QuoteCurrencies      []string
	PriceCacheTTL        time.Duration
	SessionCacheTTL      time.Duration
	ResolveTimeout       time.Duration
	RequestTimeout       time.Duration
	RequestsPerSecond    float64
	MaxTickerPages       int
	TickerPageLimit      int
	PriceCacheDB         string
	SnapshotDir          string
	HistoryWindow        time.Duration
	HistoryRows          int
	Schedule             string
	WebAddr              string
	DiscrepancyThreshold decimal.Decimal

	Credentials Credentials
	Mode        Mode
}

// Mode holds per-invocation switches that never come from yaml.
type Mode struct {
	Setup   bool
	Debug   bool
	Daemon  bool
	History bool
}

// Credentials are OKX API credentials read from the environment.
type Credentials struct {
	APIKey     string
	SecretKey  string
	Passphrase string
	// Simulated routes requests to the demo trading environment (OKX_FLAG=1).
	Simulated bool
}

// Complete reports whether every signing credential is present.
func (c Credentials) Complete() bool {
	return c.APIKey != "" && c.SecretKey != "" && c.Passphrase != ""
}

// ConfigTmp is the yaml shape; numeric fields are strings so that absent
// values can be told apart from zero.
type ConfigTmp struct {
	MarketSource            string        `yaml:"market_source,omitempty"`
	OKXBaseURL              string        `yaml:"okx_base_url,omitempty"`
	QuoteCurrencies         []string      `yaml:"quote_currencies,omitempty"`
	PriceCacheTTL           time.Duration `yaml:"price_cache_ttl,omitempty"`
	SessionCacheTTL         time.Duration `yaml:"session_cache_ttl,omitempty"`
	ResolveTimeout          time.Duration `yaml:"resolve_timeout,omitempty"`
	RequestTimeout          time.Duration `yaml:"request_timeout,omitempty"`
	RequestsPerSecondStr    string        `yaml:"requests_per_second,omitempty"`
	MaxTickerPagesStr       string        `yaml:"max_ticker_pages,omitempty"`
	TickerPageLimitStr      string        `yaml:"ticker_page_limit,omitempty"`
	PriceCacheDB            string        `yaml:"price_cache_db,omitempty"`
	SnapshotDir             string        `yaml:"snapshot_dir,omitempty"`
	HistoryWindow           time.Duration `yaml:"history_window,omitempty"`
	HistoryRowsStr          string        `yaml:"history_rows,omitempty"`
	Schedule                string        `yaml:"schedule,omitempty"`
	WebAddr                 string        `yaml:"web_addr,omitempty"`
	DiscrepancyThresholdStr string        `yaml:"discrepancy_threshold,omitempty"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		MarketSource:         SourceOKX,
		OKXBaseURL:           "https://www.okx.com",
		QuoteCurrencies:      []string{"USDT", "USDC", "USD"},
		PriceCacheTTL:        300 * time.Second,
		SessionCacheTTL:      30 * time.Second,
		ResolveTimeout:       30 * time.Second,
		RequestTimeout:       10 * time.Second,
		RequestsPerSecond:    10,
		MaxTickerPages:       5,
		TickerPageLimit:      100,
		PriceCacheDB:         "./data/price_cache.db",
		SnapshotDir:          "./wal/loan",
		HistoryWindow:        24 * time.Hour,
		HistoryRows:          10,
		Schedule:             "@every 5m",
		WebAddr:              "",
		DiscrepancyThreshold: decimal.NewFromInt(10),
	}
}

// Get parses os.Args, loads .env if present and reads credentials.
func Get() (Config, error) {
	_ = godotenv.Load()
	return Parse(os.Args[1:], os.Getenv)
}

// Parse builds a Config from command line args. With --config the yaml
// file supplies settings; otherwise the flags do.
func Parse(args []string, getenv func(string) string) (Config, error) {
	def := Default()
	fs := flag.NewFlagSet("loanmon", flag.ContinueOnError)

	configPath := fs.String("config", "", "path to yaml config")
	setup := fs.Bool("setup", false, "run the interactive configuration wizard")
	debug := fs.Bool("debug", false, "development logging")
	daemon := fs.Bool("daemon", false, "run on schedule instead of once")
	history := fs.Bool("history", false, "print snapshot history and exit")

	source := fs.String("source", def.MarketSource, "market data source: okx, binance, bybit, hyperliquid")
	quotes := fs.String("quotes", strings.Join(def.QuoteCurrencies, ","), "quote currency priority, comma separated")
	priceTTL := fs.Duration("price-cache-ttl", def.PriceCacheTTL, "durable price cache ttl")
	sessionTTL := fs.Duration("session-cache-ttl", def.SessionCacheTTL, "in-process price cache ttl")
	resolveTimeout := fs.Duration("resolve-timeout", def.ResolveTimeout, "deadline of one price resolution pass")
	db := fs.String("price-cache-db", def.PriceCacheDB, "sqlite price cache path")
	snapshots := fs.String("snapshot-dir", def.SnapshotDir, "loan snapshot WAL directory")
	schedule := fs.String("schedule", def.Schedule, "cron schedule for --daemon")
	webAddr := fs.String("web", def.WebAddr, "http listen address, empty disables")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	var cfg Config
	if *configPath != "" {
		var err error
		cfg, err = getYaml(*configPath)
		if err != nil {
			return Config{}, err
		}
	} else {
		cfg = def
		cfg.MarketSource = *source
		cfg.QuoteCurrencies = splitQuotes(*quotes)
		cfg.PriceCacheTTL = *priceTTL
		cfg.SessionCacheTTL = *sessionTTL
		cfg.ResolveTimeout = *resolveTimeout
		cfg.PriceCacheDB = *db
		cfg.SnapshotDir = *snapshots
		cfg.Schedule = *schedule
		cfg.WebAddr = *webAddr
	}

	cfg.Mode = Mode{Setup: *setup, Debug: *debug, Daemon: *daemon, History: *history}
	cfg.Credentials = Credentials{
		APIKey:     getenv("OKX_API_KEY"),
		SecretKey:  getenv("OKX_SECRET_KEY"),
		Passphrase: getenv("OKX_PASSPHRASE"),
		Simulated:  getenv("OKX_FLAG") == "1",
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.MarketSource {
	case SourceOKX, SourceBinance, SourceBybit, SourceHyperliquid:
	default:
		return fmt.Errorf("unsupported market source: %s", c.MarketSource)
	}
	if len(c.QuoteCurrencies) == 0 {
		return fmt.Errorf("at least one quote currency is required")
	}
	if c.PriceCacheTTL <= 0 || c.SessionCacheTTL <= 0 || c.ResolveTimeout <= 0 {
		return fmt.Errorf("cache ttls and resolve timeout must be positive")
	}
	return nil
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var c ConfigTmp
	if err := yaml.Unmarshal(f, &c); err != nil {
		return Config{}, fmt.Errorf("parse yaml config %s: %w", path, err)
	}

	return c.toConfig()
}

func (c ConfigTmp) toConfig() (Config, error) {
	cfg := Default()

	if c.MarketSource != "" {
		cfg.MarketSource = strings.ToLower(c.MarketSource)
	}
	if c.OKXBaseURL != "" {
		cfg.OKXBaseURL = c.OKXBaseURL
	}
	if len(c.QuoteCurrencies) > 0 {
		cfg.QuoteCurrencies = splitQuotes(strings.Join(c.QuoteCurrencies, ","))
	}
	if c.PriceCacheTTL != 0 {
		cfg.PriceCacheTTL = c.PriceCacheTTL
	}
	if c.SessionCacheTTL != 0 {
		cfg.SessionCacheTTL = c.SessionCacheTTL
	}
	if c.ResolveTimeout != 0 {
		cfg.ResolveTimeout = c.ResolveTimeout
	}
	if c.RequestTimeout != 0 {
		cfg.RequestTimeout = c.RequestTimeout
	}
	if c.PriceCacheDB != "" {
		cfg.PriceCacheDB = c.PriceCacheDB
	}
	if c.SnapshotDir != "" {
		cfg.SnapshotDir = c.SnapshotDir
	}
	if c.HistoryWindow != 0 {
		cfg.HistoryWindow = c.HistoryWindow
	}
	if c.Schedule != "" {
		cfg.Schedule = c.Schedule
	}
	cfg.WebAddr = c.WebAddr

	if c.RequestsPerSecondStr != "" {
		rps, err := strconv.ParseFloat(c.RequestsPerSecondStr, 64)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'requests_per_second' param in yaml config (must be a number), error: %w", err)
		}
		cfg.RequestsPerSecond = rps
	}

	ints := []struct {
		name string
		raw  string
		dst  *int
	}{
		{"max_ticker_pages", c.MaxTickerPagesStr, &cfg.MaxTickerPages},
		{"ticker_page_limit", c.TickerPageLimitStr, &cfg.TickerPageLimit},
		{"history_rows", c.HistoryRowsStr, &cfg.HistoryRows},
	}
	for _, f := range ints {
		if f.raw == "" {
			continue
		}
		v, err := strconv.Atoi(f.raw)
		if err != nil || v <= 0 {
			return Config{}, fmt.Errorf("incorrect '%s' param in yaml config (must be a positive integer): %q", f.name, f.raw)
		}
		*f.dst = v
	}

	if c.DiscrepancyThresholdStr != "" {
		th, err := decimal.NewFromString(c.DiscrepancyThresholdStr)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'discrepancy_threshold' param in yaml config (must be a decimal), error: %w", err)
		}
		cfg.DiscrepancyThreshold = th
	}

	return cfg, nil
}

// ToTmp converts a Config back to its yaml shape.
func (c Config) ToTmp() ConfigTmp {
	return ConfigTmp{
		MarketSource:            c.MarketSource,
		OKXBaseURL:              c.OKXBaseURL,
		QuoteCurrencies:         c.QuoteCurrencies,
		PriceCacheTTL:           c.PriceCacheTTL,
		SessionCacheTTL:         c.SessionCacheTTL,
		ResolveTimeout:          c.ResolveTimeout,
		RequestTimeout:          c.RequestTimeout,
		RequestsPerSecondStr:    strconv.FormatFloat(c.RequestsPerSecond, 'f', -1, 64),
		MaxTickerPagesStr:       strconv.Itoa(c.MaxTickerPages),
		TickerPageLimitStr:      strconv.Itoa(c.TickerPageLimit),
		PriceCacheDB:            c.PriceCacheDB,
		SnapshotDir:             c.SnapshotDir,
		HistoryWindow:           c.HistoryWindow,
		HistoryRowsStr:          strconv.Itoa(c.HistoryRows),
		Schedule:                c.Schedule,
		WebAddr:                 c.WebAddr,
		DiscrepancyThresholdStr: c.DiscrepancyThreshold.String(),
	}
}

func splitQuotes(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, q := range strings.Split(s, ",") {
		q = strings.ToUpper(strings.TrimSpace(q))
		if q == "" {
			continue
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}
