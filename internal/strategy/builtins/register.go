package builtins

import "quantbts/internal/strategy"

// Registered strategy names.
const (
	NameBuyAndHold = "buy-and-hold"
	NameSMACross   = "sma-cross"
	NameMomentum   = "momentum"
)

// Register adds every built-in strategy to r.
func Register(r *strategy.Registry) {
	r.Register(NameBuyAndHold, func(_ strategy.Params) (strategy.Strategy, error) {
		return BuyAndHold{}, nil
	})
	r.Register(NameSMACross, func(p strategy.Params) (strategy.Strategy, error) {
		short, long := p.ShortWindow, p.LongWindow
		if short == 0 {
			short = DefaultShortWindow
		}
		if long == 0 {
			long = DefaultLongWindow
		}
		return NewSMACross(short, long)
	})
	r.Register(NameMomentum, func(p strategy.Params) (strategy.Strategy, error) {
		days, buy, sell := p.Days, p.BuyThreshold, p.SellThreshold
		if days == 0 {
			days = DefaultMomentumDays
		}
		if buy == 0 {
			buy = DefaultBuyThreshold
		}
		if sell == 0 {
			sell = DefaultSellThreshold
		}
		return NewMomentum(days, buy, sell)
	})
}

// NewRegistry returns a Registry holding all built-in strategies.
func NewRegistry() *strategy.Registry {
	r := strategy.NewRegistry()
	Register(r)
	return r
}
