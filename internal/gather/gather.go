// Package gather downloads daily bars from market data providers into a
// BarStore.
package gather

import (
	"context"
	"time"

	"quantbts/internal/domain"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs one gathering pass and returns when it is done or ctx is
	// cancelled.
	Run(ctx context.Context) error
}

// BarSource fetches daily bars for several symbols over [start, end].
type BarSource interface {
	DailyBars(ctx context.Context, symbols []string, start, end time.Time) (map[string][]domain.Bar, error)
}
