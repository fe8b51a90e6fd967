// Package backtest simulates a single-asset, fully-invested-or-cash position
// driven by strategy signals over daily bars, and runs such simulations
// against a bar store.
package backtest

import (
	"fmt"

	"quantbts/internal/domain"
	"quantbts/internal/stats"
	"quantbts/internal/strategy"
)

// Engine defaults.
const (
	DefaultInitialCapital = 10000.0
	DefaultCommission     = 0.001
)

// Config holds the simulation parameters.
type Config struct {
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
	// Commission is a fraction of the traded cash charged per fill.
	Commission float64 `json:"commission" yaml:"commission"`
}

// DefaultConfig returns a Config with capital 10000 and commission 0.001.
func DefaultConfig() Config {
	return Config{
		InitialCapital: DefaultInitialCapital,
		Commission:     DefaultCommission,
	}
}

// Validate requires a positive capital and a commission in [0, 1).
func (c Config) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial capital %v must be positive", domain.ErrInvalidConfig, c.InitialCapital)
	}
	if c.Commission < 0 || c.Commission >= 1 {
		return fmt.Errorf("%w: commission %v must be in [0, 1)", domain.ErrInvalidConfig, c.Commission)
	}
	return nil
}

// Fill is one executed trade.
type Fill struct {
	Index        int           `json:"index"`
	Date         int           `json:"date"`
	Side         domain.Signal `json:"side"`
	Price        float64       `json:"price"`
	Shares       float64       `json:"shares"`
	Commission   float64       `json:"commission"`
	CapitalAfter float64       `json:"capital_after"`
}

// Result is the outcome of one simulation. Signals, Equity and Bars are
// aligned by index.
type Result struct {
	Strategy string
	Config   Config
	Bars     []domain.Bar
	Signals  []domain.Signal
	Equity   []float64
	Fills    []Fill
	Stats    *stats.Statistics
}

// NumTrades returns the number of executed fills.
func (r *Result) NumTrades() int {
	return len(r.Fills)
}

// Engine runs simulations with a fixed Config. It holds no per-run state and
// is safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Run applies s to bars and simulates the resulting signals.
func (e *Engine) Run(bars []domain.Bar, s strategy.Strategy) (*Result, error) {
	if err := domain.ValidateBars(bars); err != nil {
		return nil, err
	}
	signals := s.Apply(bars)
	if err := strategy.Validate(s, bars, signals); err != nil {
		return nil, err
	}
	res, err := e.simulate(bars, signals)
	if err != nil {
		return nil, err
	}
	res.Strategy = s.Name()
	return res, nil
}

// Simulate runs the position simulation on a precomputed signal sequence.
func (e *Engine) Simulate(bars []domain.Bar, signals []domain.Signal) (*Result, error) {
	if err := domain.ValidateBars(bars); err != nil {
		return nil, err
	}
	if err := domain.ValidateSignals(bars, signals); err != nil {
		return nil, err
	}
	return e.simulate(bars, signals)
}

// simulate walks the bars once. A buy converts all cash to shares after a
// commission on the pre-trade cash; a sell converts all shares to cash and
// then charges commission on the proceeds.
func (e *Engine) simulate(bars []domain.Bar, signals []domain.Signal) (*Result, error) {
	capital := e.cfg.InitialCapital
	position := 0.0

	equity := make([]float64, 0, len(bars))
	var fills []Fill

	for i, bar := range bars {
		switch {
		case signals[i] == domain.SignalBuy && capital > 0:
			fee := e.cfg.Commission * capital
			shares := (capital - fee) / bar.Close
			position += shares
			capital = 0
			fills = append(fills, Fill{
				Index: i, Date: bar.Date, Side: domain.SignalBuy,
				Price: bar.Close, Shares: shares, Commission: fee, CapitalAfter: capital,
			})
		case signals[i] == domain.SignalSell && position > 0:
			shares := position
			capital += position * bar.Close
			position = 0
			fee := e.cfg.Commission * capital
			capital -= fee
			fills = append(fills, Fill{
				Index: i, Date: bar.Date, Side: domain.SignalSell,
				Price: bar.Close, Shares: shares, Commission: fee, CapitalAfter: capital,
			})
		}
		equity = append(equity, capital+position*bar.Close)
	}

	st, err := stats.New(equity)
	if err != nil {
		return nil, err
	}

	sig := make([]domain.Signal, len(signals))
	copy(sig, signals)
	return &Result{
		Config:  e.cfg,
		Bars:    bars,
		Signals: sig,
		Equity:  equity,
		Fills:   fills,
		Stats:   st,
	}, nil
}
