// Package config loads the quantbts YAML configuration and applies
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"quantbts/internal/backtest"
	"quantbts/internal/domain"
	"quantbts/internal/stats"
	"quantbts/internal/store"
	"quantbts/internal/strategy"
	"quantbts/internal/strategy/builtins"
)

// DefaultPath is used when QUANTBTS_CONFIG is unset.
const DefaultPath = "config/quantbts.yaml"

// PathEnv names the environment variable holding the config path.
const PathEnv = "QUANTBTS_CONFIG"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for quantbts.
type Config struct {
	Storage    Storage    `yaml:"storage"`
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
	Backtest   Backtest   `yaml:"backtest"`
	Strategies Strategies `yaml:"strategies"`
	Alpaca     Alpaca     `yaml:"alpaca"`
	Gather     Gather     `yaml:"gather"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
	// Backend selects the bar store: "sqlite" or "parquet". Run history is
	// always kept in SQLite.
	Backend string `yaml:"backend"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// GRPCPort serves the streaming backtest service; 0 disables it.
	GRPCPort int `yaml:"grpc_port"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Backtest holds engine and report parameters.
type Backtest struct {
	InitialCapital    float64 `yaml:"initial_capital"`
	Commission        float64 `yaml:"commission"`
	RiskFreeRate      float64 `yaml:"risk_free_rate"`
	AlphaRiskFreeRate float64 `yaml:"alpha_risk_free_rate"`
	MarketReturn      float64 `yaml:"market_return"`
	MaxParallel       int     `yaml:"max_parallel"`
}

// Strategies holds default parameters per built-in strategy.
type Strategies struct {
	SMA      SMAConfig      `yaml:"sma"`
	Momentum MomentumConfig `yaml:"momentum"`
}

// SMAConfig parameterizes the sma-cross strategy.
type SMAConfig struct {
	ShortWindow int `yaml:"short_window"`
	LongWindow  int `yaml:"long_window"`
}

// MomentumConfig parameterizes the momentum strategy.
type MomentumConfig struct {
	Days          int     `yaml:"days"`
	BuyThreshold  float64 `yaml:"buy_threshold"`
	SellThreshold float64 `yaml:"sell_threshold"`
}

// Alpaca holds credentials and the endpoint for the Alpaca market data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// Gather controls the daily bar download.
type Gather struct {
	Symbols         []string `yaml:"symbols"`
	StartDate       string   `yaml:"start_date"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min"`
	MaxAttempts     int      `yaml:"max_attempts"`
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

// Default returns a fully populated configuration.
func Default() *Config {
	cfg := &Config{
		Server: Server{GRPCPort: 9090},
		Backtest: Backtest{
			Commission:        backtest.DefaultCommission,
			AlphaRiskFreeRate: stats.DefaultAlphaRiskFreeRate,
			MarketReturn:      stats.DefaultMarketReturn,
		},
	}
	cfg.Defaults()
	return cfg
}

// Defaults fills fields whose zero value is not usable. Commission, the
// risk-free rates, the market return and the gRPC port may legitimately be
// zero and are only set by Default.
func (c *Config) Defaults() {
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data/quantbts.db"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = store.BackendSQLite
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Backtest.InitialCapital == 0 {
		c.Backtest.InitialCapital = backtest.DefaultInitialCapital
	}
	if c.Backtest.MaxParallel <= 0 {
		c.Backtest.MaxParallel = 4
	}
	if c.Strategies.SMA.ShortWindow == 0 {
		c.Strategies.SMA.ShortWindow = builtins.DefaultShortWindow
	}
	if c.Strategies.SMA.LongWindow == 0 {
		c.Strategies.SMA.LongWindow = builtins.DefaultLongWindow
	}
	if c.Strategies.Momentum.Days == 0 {
		c.Strategies.Momentum.Days = builtins.DefaultMomentumDays
	}
	if c.Strategies.Momentum.BuyThreshold == 0 {
		c.Strategies.Momentum.BuyThreshold = builtins.DefaultBuyThreshold
	}
	if c.Strategies.Momentum.SellThreshold == 0 {
		c.Strategies.Momentum.SellThreshold = builtins.DefaultSellThreshold
	}
	if c.Alpaca.Feed == "" {
		c.Alpaca.Feed = "iex"
	}
	if c.Gather.StartDate == "" {
		c.Gather.StartDate = "2015-01-01"
	}
	if c.Gather.RateLimitPerMin == 0 {
		c.Gather.RateLimitPerMin = 180
	}
	if c.Gather.MaxAttempts == 0 {
		c.Gather.MaxAttempts = 3
	}
}

// Validate checks the values the engine and stores cannot recover from.
func (c *Config) Validate() error {
	if err := c.Engine().Validate(); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case store.BackendSQLite, store.BackendParquet:
	default:
		return fmt.Errorf("%w: storage.backend %q", domain.ErrInvalidConfig, c.Storage.Backend)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d", domain.ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("%w: server.grpc_port %d", domain.ErrInvalidConfig, c.Server.GRPCPort)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Derived settings
// ---------------------------------------------------------------------------

// Engine returns the backtest engine configuration.
func (c *Config) Engine() backtest.Config {
	return backtest.Config{
		InitialCapital: c.Backtest.InitialCapital,
		Commission:     c.Backtest.Commission,
	}
}

// ReportOptions returns the statistics options without benchmark curves.
func (c *Config) ReportOptions() stats.ReportOptions {
	return stats.ReportOptions{
		RiskFreeRate:      c.Backtest.RiskFreeRate,
		AlphaRiskFreeRate: c.Backtest.AlphaRiskFreeRate,
		MarketReturn:      c.Backtest.MarketReturn,
	}
}

// StrategyParams returns the configured parameters for the named strategy.
// Strategies without parameters get the zero Params.
func (c *Config) StrategyParams(name string) strategy.Params {
	switch name {
	case builtins.NameSMACross:
		return strategy.Params{
			ShortWindow: c.Strategies.SMA.ShortWindow,
			LongWindow:  c.Strategies.SMA.LongWindow,
		}
	case builtins.NameMomentum:
		return strategy.Params{
			Days:          c.Strategies.Momentum.Days,
			BuyThreshold:  c.Strategies.Momentum.BuyThreshold,
			SellThreshold: c.Strategies.Momentum.SellThreshold,
		}
	default:
		return strategy.Params{}
	}
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// GRPCAddr returns the gRPC listen address, or "" when gRPC is disabled.
func (c *Config) GRPCAddr() string {
	if c.Server.GRPCPort == 0 {
		return ""
	}
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.GRPCPort))
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Path returns $QUANTBTS_CONFIG or DefaultPath.
func Path() string {
	if v := os.Getenv(PathEnv); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads the YAML configuration file at path over the defaults, applies
// environment variable overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.Defaults()

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults with
// environment overrides applied.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		applyEnvOverrides(cfg)
		return cfg, cfg.Validate()
	}
	return cfg, err
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	// Standard Alpaca env vars win over the ALPACA_* names.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
