package stats

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"quantbts/internal/domain"
)

const floatTol = 1e-9

func mustNew(t *testing.T, ec ...float64) *Statistics {
	t.Helper()
	s, err := New(ec)
	require.NoError(t, err)
	return s
}

func randomCurve(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	ec := make([]float64, n)
	v := 10000.0
	for i := range ec {
		v *= 1 + (rng.Float64()-0.48)*0.04
		ec[i] = v
	}
	return ec
}

func TestNew_Empty(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrEmptyCurve)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNew_CopiesInput(t *testing.T) {
	ec := []float64{1000, 1100}
	s := mustNew(t, ec...)
	ec[1] = 0
	assert.Equal(t, 1100.0, s.FinalAssets())
	assert.Equal(t, []float64{1000, 1100}, s.EquityCurve())
}

func TestKnownCurve(t *testing.T) {
	s := mustNew(t, 1000, 1200, 900)

	assert.Equal(t, 900.0, s.FinalAssets())
	assert.InDelta(t, -0.1, s.TotalReturn(), floatTol)
	assert.InDeltaSlice(t, []float64{0.2, -0.25}, s.DailyReturns(), floatTol)
	assert.InDelta(t, -0.025, s.MeanDailyReturn(), floatTol)
	assert.InDelta(t, 0.225, s.StdDailyReturn(), floatTol)
	assert.InDelta(t, 0.225*math.Sqrt(252), s.AnnualizedVolatility(), floatTol)
	assert.InDelta(t, math.Pow(0.9, 84)-1, s.AnnualizedReturn(), floatTol)
	assert.InDelta(t, 0.25, s.MaxDrawdown(), floatTol)

	wantSharpe := (math.Pow(0.9, 84) - 1) / (0.225 * math.Sqrt(252))
	assert.InDelta(t, wantSharpe, s.SharpeRatio(0), floatTol)
	assert.InDelta(t, (math.Pow(0.9, 84)-1)/0.25, s.CalmarRatio(), floatTol)
}

func TestSortino(t *testing.T) {
	s := mustNew(t, 100, 110, 99)

	// Daily returns are +0.1 and -0.1; the RMS uses both entries in the
	// denominator.
	wantDD := math.Sqrt(0.01/2) * math.Sqrt(252)
	assert.InDelta(t, wantDD, s.DownsideDeviation(0), floatTol)
	assert.InDelta(t, s.AnnualizedReturn()/wantDD, s.SortinoRatio(0, 0), floatTol)

	rising := mustNew(t, 100, 101, 102)
	assert.False(t, Defined(rising.SortinoRatio(0, 0)), "no downside should be undefined")
}

func TestFlatCurve(t *testing.T) {
	s := mustNew(t, 1000, 1000, 1000)

	assert.Equal(t, 0.0, s.TotalReturn())
	assert.Equal(t, 0.0, s.AnnualizedReturn())
	assert.Equal(t, 0.0, s.AnnualizedVolatility())
	assert.Equal(t, 0.0, s.MaxDrawdown())

	assert.True(t, math.IsNaN(s.SharpeRatio(0)), "Sharpe on flat curve must be undefined")
	assert.False(t, Defined(s.SortinoRatio(0, 0)))
	assert.False(t, Defined(s.CalmarRatio()))
	assert.False(t, Defined(s.IC(s.EquityCurve())))
	assert.False(t, Defined(s.Beta(s.EquityCurve())))
}

func TestConstantGrowthCurve(t *testing.T) {
	// Every daily return is 1%, so the return series has zero variance even
	// though float rounding leaves a residue.
	s := mustNew(t, 1000, 1010, 1020.1, 1030.301, 1040.60401)

	assert.InDelta(t, 0.01, s.MeanDailyReturn(), floatTol)
	assert.Equal(t, 0.0, s.StdDailyReturn())
	assert.Equal(t, 0.0, s.AnnualizedVolatility())
	assert.False(t, Defined(s.SharpeRatio(0)), "Sharpe with zero volatility must be undefined")
	assert.False(t, Defined(s.SortinoRatio(0, 0)))
	assert.False(t, Defined(s.CalmarRatio()))

	rets := s.DailyReturns()
	returns := mustNew(t, rets...)
	assert.False(t, Defined(s.Beta(append([]float64{rets[0]}, rets...))), "zero variance market")
	assert.False(t, Defined(returns.IC(rets)), "zero variance prediction")
}

func TestSelfCorrelationIsExact(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		ec := randomCurve(120, seed)
		s := mustNew(t, ec...)
		assert.Equal(t, 1.0, s.IC(ec), "seed %d", seed)
		assert.Equal(t, 1.0, s.Beta(ec), "seed %d", seed)
	}
}

func TestShortCurve(t *testing.T) {
	s := mustNew(t, 1000)

	assert.Equal(t, 1000.0, s.FinalAssets())
	assert.Equal(t, 0.0, s.TotalReturn())
	assert.Empty(t, s.DailyReturns())
	assert.False(t, Defined(s.MeanDailyReturn()))
	assert.False(t, Defined(s.StdDailyReturn()))
	assert.False(t, Defined(s.AnnualizedVolatility()))
	assert.False(t, Defined(s.SharpeRatio(0)))
	assert.False(t, Defined(s.SortinoRatio(0, 0)))
}

func TestZeroBase(t *testing.T) {
	s := mustNew(t, 0, 10)

	assert.False(t, Defined(s.TotalReturn()))
	assert.False(t, Defined(s.AnnualizedReturn()))
	assert.False(t, Defined(s.MeanDailyReturn()))
	assert.False(t, Defined(s.MaxDrawdown()))
}

func TestCompoundedDailyReturnsMatchTotalReturn(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		s := mustNew(t, randomCurve(200, seed)...)
		growth := make([]float64, 0, 199)
		for _, r := range s.DailyReturns() {
			growth = append(growth, 1+r)
		}
		assert.InDelta(t, s.TotalReturn(), floats.Prod(growth)-1, 1e-9, "seed %d", seed)
	}
}

func TestMaxDrawdownBoundedAndMonotone(t *testing.T) {
	ec := randomCurve(150, 42)
	prev := 0.0
	for n := 1; n <= len(ec); n++ {
		dd := mustNew(t, ec[:n]...).MaxDrawdown()
		require.GreaterOrEqual(t, dd, 0.0)
		require.LessOrEqual(t, dd, 1.0)
		require.GreaterOrEqual(t, dd, prev, "prefix %d", n)
		prev = dd
	}
}

func TestBetaAndIC(t *testing.T) {
	s := mustNew(t, 10, 12, 14)

	assert.InDelta(t, 2.0, s.Beta([]float64{1, 2, 3}), floatTol)
	assert.InDelta(t, 1.0, s.IC([]float64{1, 2, 3}), floatTol)
	assert.InDelta(t, -1.0, s.IC([]float64{3, 2, 1}), floatTol)

	assert.False(t, Defined(s.Beta([]float64{1, 2})), "length mismatch")
	assert.False(t, Defined(s.IC([]float64{1})), "length mismatch")
	assert.False(t, Defined(s.Beta([]float64{5, 5, 5})), "zero variance market")
}

func TestAlpha(t *testing.T) {
	assert.InDelta(t, 0.065, Alpha(0.2, 0.03, 1.5, 0.1), floatTol)
	assert.InDelta(t, 0.0, Alpha(0.1, 0.03, 1, 0.1), floatTol)
}

func TestSummarySelfReference(t *testing.T) {
	s := mustNew(t, randomCurve(60, 3)...)
	rep := s.Summary()

	require.Len(t, rep, 13)
	assert.Equal(t, MetricFinalAssets, rep[0].Name)
	assert.Equal(t, MetricIC, rep[len(rep)-1].Name)

	beta, ok := rep.Get(MetricBeta)
	require.True(t, ok)
	assert.Equal(t, 1.0, beta)

	ic, _ := rep.Get(MetricIC)
	assert.Equal(t, 1.0, ic)

	alpha, _ := rep.Get(MetricAlpha)
	assert.InDelta(t, Alpha(s.AnnualizedReturn(), 0.03, 1, 0.1), alpha, floatTol)

	_, ok = rep.Get("nope")
	assert.False(t, ok)
}

func TestReportWithBenchmark(t *testing.T) {
	s := mustNew(t, 10, 12, 14)
	bench := []float64{1, 2, 3}
	rep := s.Report(ReportOptions{AlphaRiskFreeRate: 0.03, Benchmark: bench})

	beta, _ := rep.Get(MetricBeta)
	assert.InDelta(t, 2.0, beta, floatTol)

	bs := mustNew(t, bench...)
	alpha, _ := rep.Get(MetricAlpha)
	assert.InDelta(t, Alpha(s.AnnualizedReturn(), 0.03, 2.0, bs.AnnualizedReturn()), alpha, floatTol)
}

func TestReportJSON(t *testing.T) {
	rep := mustNew(t, 1000, 1000, 1000).Summary()

	data, err := json.Marshal(rep)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Sharpe Ratio":null`)
	assert.Contains(t, string(data), `"Final Assets":1000`)

	var back Report
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back, len(rep))
	for i := range rep {
		assert.Equal(t, rep[i].Name, back[i].Name)
		if Defined(rep[i].Value) {
			assert.Equal(t, rep[i].Value, back[i].Value)
		} else {
			assert.False(t, Defined(back[i].Value), rep[i].Name)
		}
	}

	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &back))
}

func TestReportMap(t *testing.T) {
	m := Report{{Name: "a", Value: 1}, {Name: "b", Value: 2}}.Map()
	assert.Equal(t, map[string]float64{"a": 1, "b": 2}, m)
}
