package gather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"quantbts/internal/domain"
	"quantbts/internal/store"
	"quantbts/internal/util"
)

// ---------------------------------------------------------------------------
// Compile-time interface checks
// ---------------------------------------------------------------------------

var _ Gatherer = (*DailyGatherer)(nil)
var _ BarSource = (*AlpacaSource)(nil)

// ---------------------------------------------------------------------------
// AlpacaSource: daily bars from the Alpaca market-data API.
// ---------------------------------------------------------------------------

// AlpacaSource fetches one-day bars through the Alpaca market-data client.
type AlpacaSource struct {
	client *marketdata.Client
	feed   marketdata.Feed
}

// NewAlpacaSource creates an AlpacaSource with the given credentials. An
// empty dataURL uses the client default; an empty feed uses "iex".
func NewAlpacaSource(apiKey, apiSecret, dataURL, feed string) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if feed == "" {
		feed = "iex"
	}
	return &AlpacaSource{
		client: marketdata.NewClient(opts),
		feed:   marketdata.Feed(feed),
	}
}

// DailyBars fetches daily bars for symbols in a single API call. Bar dates
// are the UTC calendar day of the bar timestamp.
func (a *AlpacaSource) DailyBars(ctx context.Context, symbols []string, start, end time.Time) (map[string][]domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	multiBars, err := a.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
		Feed:      a.feed,
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	out := make(map[string][]domain.Bar, len(multiBars))
	for symbol, alpacaBars := range multiBars {
		bars := make([]domain.Bar, 0, len(alpacaBars))
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Date:   util.DateFromTime(ab.Timestamp.UTC()),
				Open:   ab.Open,
				High:   ab.High,
				Low:    ab.Low,
				Close:  ab.Close,
				Volume: int64(ab.Volume),
			})
		}
		out[strings.ToUpper(symbol)] = bars
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// DailyGatherer: incremental daily bar download for a symbol list.
// ---------------------------------------------------------------------------

// DailyOptions configures a DailyGatherer.
type DailyOptions struct {
	Symbols []string
	// StartDate is the first date fetched for a symbol with no history,
	// as YYYY-MM-DD or YYYYMMDD.
	StartDate       string
	BatchSize       int
	RateLimitPerMin int
	MaxAttempts     int
	// StateDir holds the resume files.
	StateDir string
	Logger   *slog.Logger
}

// DailyGatherer fetches daily bars for a fixed symbol list from the first
// missing date through yesterday and writes them to a BarStore. Runs are
// resumable and idempotent within a day.
type DailyGatherer struct {
	source    BarSource
	store     store.BarStore
	symbols   []string
	startDate int
	batchSize int
	limiter   *util.RateLimiter
	retry     util.RetryPolicy
	stateDir  string
	now       func() time.Time
	log       *slog.Logger
}

// NewDailyGatherer validates opts and returns a DailyGatherer.
func NewDailyGatherer(src BarSource, s store.BarStore, opts DailyOptions) (*DailyGatherer, error) {
	start, err := util.ParseDate(opts.StartDate)
	if err != nil {
		return nil, fmt.Errorf("parsing start date: %w", err)
	}
	if len(opts.Symbols) == 0 {
		return nil, fmt.Errorf("%w: no symbols to gather", domain.ErrInvalidConfig)
	}
	if opts.StateDir == "" {
		return nil, fmt.Errorf("%w: no state directory", domain.ErrInvalidConfig)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	seen := make(map[string]struct{}, len(opts.Symbols))
	var symbols []string
	for _, sym := range opts.Symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if _, dup := seen[sym]; dup || sym == "" {
			continue
		}
		seen[sym] = struct{}{}
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	return &DailyGatherer{
		source:    src,
		store:     s,
		symbols:   symbols,
		startDate: start,
		batchSize: opts.BatchSize,
		limiter:   util.NewRateLimiter(opts.RateLimitPerMin),
		retry: util.RetryPolicy{
			MaxAttempts: opts.MaxAttempts,
			BaseDelay:   time.Second,
			MaxDelay:    30 * time.Second,
		},
		stateDir: opts.StateDir,
		now:      time.Now,
		log:      opts.Logger.With("gatherer", "alpaca-daily"),
	}, nil
}

// Name returns the gatherer identifier.
func (g *DailyGatherer) Name() string { return "alpaca-daily" }

// Run fetches every symbol from the day after its last fetched date through
// yesterday. A batch that still fails after retries is logged and skipped;
// Run then reports an error and the day is not marked completed.
func (g *DailyGatherer) Run(ctx context.Context) error {
	end := util.Yesterday(g.now())

	tracker, err := newProgressTracker(g.stateDir)
	if err != nil {
		return fmt.Errorf("creating progress tracker: %w", err)
	}
	defer tracker.Close()

	if tracker.LastCompleted() == end {
		g.log.Info("already completed", "end", end)
		return nil
	}

	// Group symbols by the first date they still need so each batch shares
	// one request window.
	pending := make(map[int][]string)
	for _, sym := range g.symbols {
		from := g.startDate
		if last := tracker.FetchedThrough(sym); last > 0 {
			from = util.DateFromTime(util.TimeFromDate(last).AddDate(0, 0, 1))
		}
		if from > end {
			continue
		}
		pending[from] = append(pending[from], sym)
	}

	froms := make([]int, 0, len(pending))
	for from := range pending {
		froms = append(froms, from)
	}
	sort.Ints(froms)

	var batches []batch
	for _, from := range froms {
		syms := pending[from]
		for i := 0; i < len(syms); i += g.batchSize {
			batches = append(batches, batch{from: from, symbols: syms[i:min(i+g.batchSize, len(syms))]})
		}
	}

	g.log.Info("starting alpaca-daily",
		"end", end,
		"symbols", len(g.symbols),
		"batches", len(batches),
	)

	var (
		failed   int
		written  int
		runStart = time.Now()
	)
	for i, b := range batches {
		n, err := g.runBatch(ctx, b, end, tracker)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			failed++
			g.log.Error("batch failed",
				"batch", fmt.Sprintf("%d/%d", i+1, len(batches)),
				"from", b.from,
				"error", err,
			)
			continue
		}
		written += n
		g.log.Info("batch done",
			"batch", fmt.Sprintf("%d/%d", i+1, len(batches)),
			"bars", n,
			"elapsed", time.Since(runStart).Round(time.Second),
		)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d batches failed", failed, len(batches))
	}
	if err := tracker.MarkCompleted(end); err != nil {
		return fmt.Errorf("marking completed: %w", err)
	}
	g.log.Info("complete", "bars", written, "elapsed", time.Since(runStart).Round(time.Second))
	return nil
}

// endOfDay is the last second of a YYYYMMDD date in UTC.
func endOfDay(date int) time.Time {
	return util.TimeFromDate(date).Add(24*time.Hour - time.Second)
}

type batch struct {
	from    int
	symbols []string
}

// runBatch fetches, stores and records one batch, returning the number of
// bars written.
func (g *DailyGatherer) runBatch(ctx context.Context, b batch, end int, tracker *progressTracker) (int, error) {
	var bySymbol map[string][]domain.Bar
	err := util.Retry(ctx, g.retry, func() error {
		if err := g.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		bySymbol, err = g.source.DailyBars(ctx, b.symbols, util.TimeFromDate(b.from), endOfDay(end))
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return util.Permanent(err)
		}
		return err
	})
	if err != nil {
		return 0, err
	}

	written := 0
	for _, sym := range b.symbols {
		bars := bySymbol[sym]
		if len(bars) == 0 {
			continue
		}
		if err := g.store.WriteBars(ctx, sym, bars); err != nil {
			return written, fmt.Errorf("writing %s: %w", sym, err)
		}
		written += len(bars)
	}
	if err := tracker.MarkFetched(b.symbols, end); err != nil {
		return written, err
	}
	return written, nil
}
