// Package domain defines the value types shared by the strategy, backtest and
// statistics packages, and by the storage and ingestion layers around them.
package domain

import "fmt"

// Bar is one trading day of OHLCV data. Date is encoded as YYYYMMDD.
type Bar struct {
	Date   int     `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// Signal is a per-bar trading instruction produced by a strategy.
type Signal int8

// Signal values. Hold is the zero value.
const (
	SignalSell Signal = -1
	SignalHold Signal = 0
	SignalBuy  Signal = 1
)

// String returns "buy", "sell" or "hold".
func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "buy"
	case SignalSell:
		return "sell"
	case SignalHold:
		return "hold"
	default:
		return fmt.Sprintf("signal(%d)", int8(s))
	}
}

// Valid reports whether s is one of the three defined signal values.
func (s Signal) Valid() bool {
	return s >= SignalSell && s <= SignalBuy
}

// MarshalText encodes the signal by name so JSON output reads "buy"/"sell"/"hold".
func (s Signal) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSignal, int8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (s *Signal) UnmarshalText(text []byte) error {
	v, err := ParseSignal(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSignal converts "buy", "sell" or "hold" to a Signal.
func ParseSignal(name string) (Signal, error) {
	switch name {
	case "buy":
		return SignalBuy, nil
	case "sell":
		return SignalSell, nil
	case "hold":
		return SignalHold, nil
	}
	return SignalHold, fmt.Errorf("%w: %q", ErrInvalidSignal, name)
}

// Closes returns the closing prices of bars in order.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Close
	}
	return out
}
