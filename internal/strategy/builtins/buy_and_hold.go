package builtins

import (
	"quantbts/internal/domain"
	"quantbts/internal/strategy"
)

var _ strategy.Strategy = BuyAndHold{}

// BuyAndHold buys on the first bar and never trades again.
type BuyAndHold struct{}

// Name returns "buy-and-hold".
func (BuyAndHold) Name() string { return NameBuyAndHold }

// Apply marks the first bar as a buy; every other bar holds.
func (BuyAndHold) Apply(bars []domain.Bar) []domain.Signal {
	signals := make([]domain.Signal, len(bars))
	if len(bars) > 0 {
		signals[0] = domain.SignalBuy
	}
	return signals
}
