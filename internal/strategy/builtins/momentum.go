package builtins

import (
	"fmt"

	"quantbts/internal/domain"
	"quantbts/internal/strategy"
)

var _ strategy.Strategy = (*Momentum)(nil)

// Default momentum parameters.
const (
	DefaultMomentumDays  = 10
	DefaultBuyThreshold  = 1.05
	DefaultSellThreshold = 0.96
)

// Momentum compares each close with the close a fixed number of bars earlier
// and buys above buyThreshold, sells below sellThreshold.
type Momentum struct {
	days          int
	buyThreshold  float64
	sellThreshold float64
}

// NewMomentum creates a Momentum strategy. It requires days >= 1,
// buyThreshold > 1 and 0 < sellThreshold < 1.
func NewMomentum(days int, buyThreshold, sellThreshold float64) (*Momentum, error) {
	if days < 1 {
		return nil, fmt.Errorf("%w: momentum lookback must be at least 1 day, got %d", domain.ErrInvalidConfig, days)
	}
	if buyThreshold <= 1 {
		return nil, fmt.Errorf("%w: momentum buy threshold %v must exceed 1", domain.ErrInvalidConfig, buyThreshold)
	}
	if sellThreshold <= 0 || sellThreshold >= 1 {
		return nil, fmt.Errorf("%w: momentum sell threshold %v must be in (0, 1)", domain.ErrInvalidConfig, sellThreshold)
	}
	return &Momentum{
		days:          days,
		buyThreshold:  buyThreshold,
		sellThreshold: sellThreshold,
	}, nil
}

// Name returns "momentum".
func (m *Momentum) Name() string { return NameMomentum }

// Apply emits a signal per bar from close[i]/close[i-days]. Each index is
// evaluated independently. With days >= len(bars) every bar holds.
func (m *Momentum) Apply(bars []domain.Bar) []domain.Signal {
	signals := make([]domain.Signal, len(bars))
	if m.days >= len(bars) {
		return signals
	}
	for i := m.days; i < len(bars); i++ {
		momentum := bars[i].Close / bars[i-m.days].Close
		if momentum > m.buyThreshold {
			signals[i] = domain.SignalBuy
		} else if momentum < m.sellThreshold {
			signals[i] = domain.SignalSell
		}
	}
	return signals
}
