// Package builtins provides the built-in strategy implementations that ship
// with quantbts and registers them by name.
package builtins

import (
	"fmt"

	"quantbts/internal/domain"
	"quantbts/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// Default SMA crossover windows.
const (
	DefaultShortWindow = 5
	DefaultLongWindow  = 20
)

// SMACross implements a simple moving average crossover strategy. It emits a
// buy when the short-window SMA is above the long-window SMA and a sell when
// it is below, suppressing a signal identical to the previous bar's.
type SMACross struct {
	shortWindow int
	longWindow  int
}

// NewSMACross creates a new SMACross strategy. It requires
// 0 < short < long.
func NewSMACross(short, long int) (*SMACross, error) {
	if short <= 0 || long <= 0 {
		return nil, fmt.Errorf("%w: sma windows must be positive (short=%d, long=%d)", domain.ErrInvalidConfig, short, long)
	}
	if short >= long {
		return nil, fmt.Errorf("%w: sma short window %d must be less than long window %d", domain.ErrInvalidConfig, short, long)
	}
	return &SMACross{
		shortWindow: short,
		longWindow:  long,
	}, nil
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return NameSMACross
}

// Windows returns the short and long window lengths.
func (s *SMACross) Windows() (short, long int) {
	return s.shortWindow, s.longWindow
}

// Apply computes crossover signals. Both averages at index i cover the bars
// strictly before i; the first longWindow bars are warm-up and hold.
func (s *SMACross) Apply(bars []domain.Bar) []domain.Signal {
	signals := make([]domain.Signal, len(bars))
	for i := s.longWindow; i < len(bars); i++ {
		shortSMA := mean(bars, i-s.shortWindow, i)
		longSMA := mean(bars, i-s.longWindow, i)

		switch {
		case shortSMA > longSMA && signals[i-1] != domain.SignalBuy:
			signals[i] = domain.SignalBuy
		case shortSMA < longSMA && signals[i-1] != domain.SignalSell:
			signals[i] = domain.SignalSell
		}
	}
	return signals
}

// mean returns the average close over bars[start:end].
func mean(bars []domain.Bar, start, end int) float64 {
	sum := 0.0
	for i := start; i < end; i++ {
		sum += bars[i].Close
	}
	return sum / float64(end-start)
}
