package builtins

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantbts/internal/domain"
	"quantbts/internal/strategy"
)

func barsFromCloses(closes ...float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{Date: 20240101 + i, Open: c, High: c, Low: c, Close: c, Volume: 100}
	}
	return bars
}

func randomWalk(n int, seed int64) []domain.Bar {
	rng := rand.New(rand.NewSource(seed))
	closes := make([]float64, n)
	price := 100.0
	for i := range closes {
		price *= 1 + (rng.Float64()-0.5)*0.06
		closes[i] = price
	}
	return barsFromCloses(closes...)
}

func TestBuyAndHold(t *testing.T) {
	sig := BuyAndHold{}.Apply(barsFromCloses(10, 12, 9))
	assert.Equal(t, []domain.Signal{domain.SignalBuy, domain.SignalHold, domain.SignalHold}, sig)

	empty := BuyAndHold{}.Apply(nil)
	assert.Empty(t, empty)
}

func TestSMACross_Construction(t *testing.T) {
	_, err := NewSMACross(20, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = NewSMACross(5, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = NewSMACross(0, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	s, err := NewSMACross(5, 20)
	require.NoError(t, err)
	short, long := s.Windows()
	assert.Equal(t, 5, short)
	assert.Equal(t, 20, long)
}

func TestSMACross_Signals(t *testing.T) {
	s, err := NewSMACross(1, 2)
	require.NoError(t, err)

	// i=2: short=2 > long=1.5 -> buy; i=3: short=3 > long=2.5 but already
	// bought -> hold; i=4: short=2 < long=2.5 -> sell.
	got := s.Apply(barsFromCloses(1, 2, 3, 2, 1))
	want := []domain.Signal{0, 0, domain.SignalBuy, 0, domain.SignalSell}
	assert.Equal(t, want, got)
}

func TestSMACross_WarmupAndFlat(t *testing.T) {
	s, err := NewSMACross(2, 4)
	require.NoError(t, err)

	got := s.Apply(barsFromCloses(5, 5, 5, 5, 5, 5, 5))
	for i, sig := range got {
		assert.Equalf(t, domain.SignalHold, sig, "index %d", i)
	}

	short := s.Apply(barsFromCloses(1, 2, 3))
	assert.Len(t, short, 3)
	assert.Equal(t, []domain.Signal{0, 0, 0}, short)
}

func TestSMACross_NoConsecutiveDuplicates(t *testing.T) {
	s, err := NewSMACross(3, 8)
	require.NoError(t, err)

	for seed := int64(1); seed <= 20; seed++ {
		bars := randomWalk(300, seed)
		sig := s.Apply(bars)
		require.Len(t, sig, len(bars))
		for i := 1; i < len(sig); i++ {
			if sig[i] != domain.SignalHold && sig[i] == sig[i-1] {
				t.Fatalf("seed %d: repeated %s at index %d", seed, sig[i], i)
			}
		}
	}
}

func TestMomentum_Construction(t *testing.T) {
	_, err := NewMomentum(0, 1.05, 0.96)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = NewMomentum(10, 1.0, 0.96)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = NewMomentum(10, 1.05, 1.0)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = NewMomentum(10, 1.05, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestMomentum_Signals(t *testing.T) {
	m, err := NewMomentum(1, 1.01, 0.99)
	require.NoError(t, err)

	got := m.Apply(barsFromCloses(10, 10.2, 10.0))
	assert.Equal(t, []domain.Signal{domain.SignalHold, domain.SignalBuy, domain.SignalSell}, got)
}

func TestMomentum_NoDebounce(t *testing.T) {
	m, err := NewMomentum(1, 1.01, 0.99)
	require.NoError(t, err)

	got := m.Apply(barsFromCloses(10, 11, 12, 13))
	assert.Equal(t, []domain.Signal{0, domain.SignalBuy, domain.SignalBuy, domain.SignalBuy}, got)
}

func TestMomentum_LookbackTooLong(t *testing.T) {
	m, err := NewMomentum(5, 1.01, 0.99)
	require.NoError(t, err)

	for _, n := range []int{0, 1, 4, 5} {
		bars := randomWalk(n, int64(n))
		got := m.Apply(bars)
		require.Len(t, got, n)
		for _, s := range got {
			assert.Equal(t, domain.SignalHold, s)
		}
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{NameBuyAndHold, NameMomentum, NameSMACross}, r.List())

	s, err := r.Build(NameSMACross, strategy.Params{})
	require.NoError(t, err)
	short, long := s.(*SMACross).Windows()
	assert.Equal(t, DefaultShortWindow, short)
	assert.Equal(t, DefaultLongWindow, long)

	m, err := r.Build(NameMomentum, strategy.Params{Days: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, m.(*Momentum).days)
	assert.Equal(t, DefaultBuyThreshold, m.(*Momentum).buyThreshold)

	_, err = r.Build(NameSMACross, strategy.Params{ShortWindow: 30, LongWindow: 10})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestSignalLengthMatchesBars(t *testing.T) {
	r := NewRegistry()
	bars := randomWalk(50, 7)
	for _, name := range r.List() {
		s, err := r.Build(name, strategy.Params{})
		require.NoError(t, err)
		sig := s.Apply(bars)
		assert.NoError(t, strategy.Validate(s, bars, sig), name)
	}
}
