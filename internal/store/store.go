// Package store defines storage interfaces for persisting and retrieving
// daily bars and backtest run records, with Parquet and SQLite backends.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"quantbts/internal/domain"
	"quantbts/internal/stats"
	"quantbts/internal/strategy"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Backend names accepted by OpenBarStore.
const (
	BackendSQLite  = "sqlite"
	BackendParquet = "parquet"
)

// BarStore persists and retrieves daily OHLCV bars keyed by symbol.
type BarStore interface {
	// WriteBars persists a batch of bars for symbol.
	WriteBars(ctx context.Context, symbol string, bars []domain.Bar) error

	// ReadBars returns bars for symbol with start <= date <= end (YYYYMMDD),
	// ascending by date.
	ReadBars(ctx context.Context, symbol string, start, end int) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols with stored bars, sorted.
	ListSymbols(ctx context.Context) ([]string, error)
}

// RunRecord is the persisted summary of one backtest run.
type RunRecord struct {
	ID             string          `json:"id"`
	Strategy       string          `json:"strategy"`
	Params         strategy.Params `json:"params"`
	Symbol         string          `json:"symbol"`
	Start          int             `json:"start"`
	End            int             `json:"end"`
	InitialCapital float64         `json:"initial_capital"`
	Commission     float64         `json:"commission"`
	NumTrades      int             `json:"num_trades"`
	CreatedAt      time.Time       `json:"created_at"`
	Report         stats.Report    `json:"report"`
}

// RunStore persists backtest run history.
type RunStore interface {
	// SaveRun inserts rec, assigning an ID and creation time when unset.
	SaveRun(ctx context.Context, rec *RunRecord) error

	// GetRun retrieves a single run by ID, or ErrNotFound.
	GetRun(ctx context.Context, id string) (*RunRecord, error)

	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// OpenBarStore returns the bar store for backend. The SQLite backend shares
// db; the Parquet backend is rooted at dataDir.
func OpenBarStore(backend, dataDir string, db *SQLiteStore) (BarStore, error) {
	switch strings.ToLower(backend) {
	case "", BackendSQLite:
		if db == nil {
			return nil, fmt.Errorf("%w: sqlite backend without a database", domain.ErrInvalidConfig)
		}
		return db, nil
	case BackendParquet:
		if dataDir == "" {
			return nil, fmt.Errorf("%w: parquet backend without data_dir", domain.ErrInvalidConfig)
		}
		return NewParquetStore(dataDir), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", domain.ErrInvalidConfig, backend)
	}
}

// normalizeSymbol upper-cases and trims a ticker.
func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
