// Package strategy defines the Strategy interface for signal-generating
// trading strategies and a Registry that builds them by name.
package strategy

import (
	"errors"
	"fmt"
	"sort"

	"quantbts/internal/domain"
)

// ErrUnknownStrategy is returned by Registry.Build for an unregistered name.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Strategy is the interface that all trading strategies must implement.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Apply returns one signal per bar, aligned by index. Implementations
	// must not retain or modify bars.
	Apply(bars []domain.Bar) []domain.Signal
}

// Params carries the tunable parameters of every built-in strategy. A
// strategy reads only the fields it uses; zero values select its defaults.
type Params struct {
	ShortWindow   int     `json:"short_window,omitempty" yaml:"short_window"`
	LongWindow    int     `json:"long_window,omitempty" yaml:"long_window"`
	Days          int     `json:"days,omitempty" yaml:"days"`
	BuyThreshold  float64 `json:"buy_threshold,omitempty" yaml:"buy_threshold"`
	SellThreshold float64 `json:"sell_threshold,omitempty" yaml:"sell_threshold"`
}

// Factory constructs a configured Strategy, validating p.
type Factory func(p Params) (Strategy, error)

// Registry holds a named collection of strategy factories for lookup and
// enumeration.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under name, replacing any previous entry.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Build constructs the named strategy with the given parameters.
func (r *Registry) Build(name string, p Params) (Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	s, err := f(p)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", name, err)
	}
	return s, nil
}

// Has reports whether a factory is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.factories[name]
	return ok
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks a signal sequence produced by s against the Strategy
// contract for bars.
func Validate(s Strategy, bars []domain.Bar, signals []domain.Signal) error {
	if err := domain.ValidateSignals(bars, signals); err != nil {
		return fmt.Errorf("strategy %s: %w", s.Name(), err)
	}
	return nil
}
