package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"quantbts/internal/domain"
	"quantbts/internal/stats"
	"quantbts/internal/store"
	"quantbts/internal/strategy"
)

// Job names one backtest: a strategy with parameters, run on a symbol over
// an inclusive YYYYMMDD date range.
type Job struct {
	Strategy string          `json:"strategy"`
	Params   strategy.Params `json:"params"`
	Symbol   string          `json:"symbol"`
	Start    int             `json:"start"`
	End      int             `json:"end"`
	// Config overrides the runner's engine configuration when set.
	Config *Config `json:"config,omitempty"`
}

// Runner replays stored bar data through registered strategies.
type Runner struct {
	store       store.BarStore
	registry    *strategy.Registry
	cfg         Config
	maxParallel int
	logger      *slog.Logger
}

// NewRunner creates a Runner that reads bars from barStore, builds strategies
// from registry and simulates with cfg. maxParallel bounds RunBatch; values
// below one mean one job at a time.
func NewRunner(barStore store.BarStore, registry *strategy.Registry, cfg Config, maxParallel int, logger *slog.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if maxParallel < 1 {
		maxParallel = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:       barStore,
		registry:    registry,
		cfg:         cfg,
		maxParallel: maxParallel,
		logger:      logger,
	}, nil
}

// Registry returns the strategy registry used by the runner.
func (r *Runner) Registry() *strategy.Registry {
	return r.registry
}

// MaxParallel returns the RunBatch concurrency limit.
func (r *Runner) MaxParallel() int {
	return r.maxParallel
}

// Config returns the default engine configuration.
func (r *Runner) Config() Config {
	return r.cfg
}

// Run executes a single job.
func (r *Runner) Run(ctx context.Context, job Job) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := r.cfg
	if job.Config != nil {
		cfg = *job.Config
	}
	engine, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	strat, err := r.registry.Build(job.Strategy, job.Params)
	if err != nil {
		return nil, err
	}

	bars, err := r.store.ReadBars(ctx, job.Symbol, job.Start, job.End)
	if err != nil {
		return nil, fmt.Errorf("reading bars for %s: %w", job.Symbol, err)
	}

	began := time.Now()
	res, err := engine.Run(bars, strat)
	if err != nil {
		return nil, fmt.Errorf("%s on %s [%d, %d]: %w", job.Strategy, job.Symbol, job.Start, job.End, err)
	}
	r.logger.Debug("backtest complete",
		"strategy", job.Strategy,
		"symbol", job.Symbol,
		"bars", len(bars),
		"trades", res.NumTrades(),
		"final", res.Stats.FinalAssets(),
		"elapsed", time.Since(began),
	)
	return res, nil
}

// RunBatch runs independent jobs concurrently, at most maxParallel at a time.
// Results are returned in job order. The first failure cancels the jobs that
// have not started and is returned.
func (r *Runner) RunBatch(ctx context.Context, jobs []Job) ([]*Result, error) {
	results := make([]*Result, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxParallel)

	for i, job := range jobs {
		g.Go(func() error {
			res, err := r.Run(gctx, job)
			if err != nil {
				r.logger.Warn("backtest failed", "strategy", job.Strategy, "symbol", job.Symbol, "error", err)
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	r.logger.Info("batch complete", "jobs", len(jobs))
	return results, nil
}

// Benchmark reads symbol over the date range of res and returns its closes
// aligned with res.Bars, for use as stats.ReportOptions.Benchmark. Every
// simulated date must have a benchmark bar.
func (r *Runner) Benchmark(ctx context.Context, symbol string, res *Result) ([]float64, error) {
	if len(res.Bars) == 0 {
		return nil, domain.ErrEmptyBars
	}
	bars, err := r.store.ReadBars(ctx, symbol, res.Bars[0].Date, res.Bars[len(res.Bars)-1].Date)
	if err != nil {
		return nil, fmt.Errorf("reading benchmark %s: %w", symbol, err)
	}
	byDate := make(map[int]float64, len(bars))
	for _, b := range bars {
		byDate[b.Date] = b.Close
	}
	closes := make([]float64, len(res.Bars))
	for i, b := range res.Bars {
		c, ok := byDate[b.Date]
		if !ok {
			return nil, fmt.Errorf("%w: benchmark %s has no bar on %d", domain.ErrLengthMismatch, symbol, b.Date)
		}
		closes[i] = c
	}
	return closes, nil
}

// NewRunRecord summarizes a finished job for a RunStore.
func NewRunRecord(job Job, res *Result, rep stats.Report) *store.RunRecord {
	return &store.RunRecord{
		Strategy:       res.Strategy,
		Params:         job.Params,
		Symbol:         job.Symbol,
		Start:          job.Start,
		End:            job.End,
		InitialCapital: res.Config.InitialCapital,
		Commission:     res.Config.Commission,
		NumTrades:      res.NumTrades(),
		Report:         rep,
	}
}
