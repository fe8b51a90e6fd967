package domain

import (
	"errors"
	"fmt"
)

// Error classes. Concrete errors wrap one of these so callers can branch with
// errors.Is.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidConfig = errors.New("invalid configuration")
)

var (
	ErrEmptyBars        = fmt.Errorf("%w: empty bar sequence", ErrInvalidInput)
	ErrUnsortedBars     = fmt.Errorf("%w: bar dates not strictly ascending", ErrInvalidInput)
	ErrNonPositivePrice = fmt.Errorf("%w: non-positive close price", ErrInvalidInput)
	ErrLengthMismatch   = fmt.Errorf("%w: sequence length mismatch", ErrInvalidInput)
	ErrInvalidSignal    = fmt.Errorf("%w: signal out of range", ErrInvalidInput)
)

// ValidateBars checks that bars is non-empty, strictly ascending by date and
// carries a positive close on every bar.
func ValidateBars(bars []Bar) error {
	if len(bars) == 0 {
		return ErrEmptyBars
	}
	for i := range bars {
		if bars[i].Close <= 0 {
			return fmt.Errorf("%w: bar %d (date %d) close %v", ErrNonPositivePrice, i, bars[i].Date, bars[i].Close)
		}
		if i > 0 && bars[i].Date <= bars[i-1].Date {
			return fmt.Errorf("%w: bar %d date %d follows %d", ErrUnsortedBars, i, bars[i].Date, bars[i-1].Date)
		}
	}
	return nil
}

// ValidateSignals checks that signals is aligned with bars and in range.
func ValidateSignals(bars []Bar, signals []Signal) error {
	if len(signals) != len(bars) {
		return fmt.Errorf("%w: %d signals for %d bars", ErrLengthMismatch, len(signals), len(bars))
	}
	for i, s := range signals {
		if !s.Valid() {
			return fmt.Errorf("%w: index %d value %d", ErrInvalidSignal, i, int8(s))
		}
	}
	return nil
}
