// Package stats computes return, risk and correlation metrics from an equity
// curve. Every metric is a pure function of the curve; a metric with no
// value for the curve returns Undefined (NaN), never a divide-by-zero
// artifact.
package stats

import (
	"fmt"
	"math"

	"quantbts/internal/domain"
)

// TradingDays is the number of trading days per year used to annualize.
const TradingDays = 252

// ErrEmptyCurve is returned by New for an empty equity curve.
var ErrEmptyCurve = fmt.Errorf("%w: empty equity curve", domain.ErrInvalidInput)

// Statistics holds a completed equity curve and its daily returns. It is
// read-only after construction.
type Statistics struct {
	equity []float64
	daily  []float64
}

// New builds Statistics from a copy of equity. A daily return whose base
// value is zero is recorded as Undefined.
func New(equity []float64) (*Statistics, error) {
	if len(equity) == 0 {
		return nil, ErrEmptyCurve
	}
	ec := make([]float64, len(equity))
	copy(ec, equity)

	daily := make([]float64, 0, len(ec)-1)
	for i := 1; i < len(ec); i++ {
		daily = append(daily, safeDiv(ec[i]-ec[i-1], ec[i-1]))
	}
	return &Statistics{equity: ec, daily: daily}, nil
}

// EquityCurve returns a copy of the equity curve.
func (s *Statistics) EquityCurve() []float64 {
	out := make([]float64, len(s.equity))
	copy(out, s.equity)
	return out
}

// DailyReturns returns a copy of the daily return series.
func (s *Statistics) DailyReturns() []float64 {
	out := make([]float64, len(s.daily))
	copy(out, s.daily)
	return out
}

// FinalAssets is the last equity value.
func (s *Statistics) FinalAssets() float64 {
	return s.equity[len(s.equity)-1]
}

// TotalReturn is (last - first) / first.
func (s *Statistics) TotalReturn() float64 {
	first := s.equity[0]
	return safeDiv(s.FinalAssets()-first, first)
}

// AnnualizedReturn compounds TotalReturn to a 252-day year using the curve
// length as the holding period.
func (s *Statistics) AnnualizedReturn() float64 {
	tr := s.TotalReturn()
	if math.IsNaN(tr) {
		return Undefined
	}
	return math.Pow(1+tr, float64(TradingDays)/float64(len(s.equity))) - 1
}

// MaxDrawdown is the largest peak-to-trough decline as a fraction of the
// running peak. It is in [0, 1] for a non-negative curve.
func (s *Statistics) MaxDrawdown() float64 {
	peak := s.equity[0]
	maxDD := 0.0
	for _, v := range s.equity {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			return Undefined
		}
		if dd := (peak - v) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// MeanDailyReturn is the mean of the daily returns.
func (s *Statistics) MeanDailyReturn() float64 {
	return mean(s.daily)
}

// StdDailyReturn is the population standard deviation of the daily returns.
func (s *Statistics) StdDailyReturn() float64 {
	return popStdDev(s.daily)
}

// AnnualizedVolatility scales StdDailyReturn by sqrt(252).
func (s *Statistics) AnnualizedVolatility() float64 {
	return s.StdDailyReturn() * math.Sqrt(TradingDays)
}

// SharpeRatio is (AnnualizedReturn - riskFreeRate) / AnnualizedVolatility.
func (s *Statistics) SharpeRatio(riskFreeRate float64) float64 {
	return safeDiv(s.AnnualizedReturn()-riskFreeRate, s.AnnualizedVolatility())
}

// DownsideDeviation is the annualized root mean square of the daily
// shortfalls below targetReturn. Returns at or above the target contribute
// zero but still count in the denominator.
func (s *Statistics) DownsideDeviation(targetReturn float64) float64 {
	if len(s.daily) == 0 {
		return Undefined
	}
	sum := 0.0
	for _, r := range s.daily {
		if math.IsNaN(r) {
			return Undefined
		}
		if r < targetReturn {
			sum += (r - targetReturn) * (r - targetReturn)
		}
	}
	return math.Sqrt(sum/float64(len(s.daily))) * math.Sqrt(TradingDays)
}

// SortinoRatio is (AnnualizedReturn - riskFreeRate) / DownsideDeviation.
func (s *Statistics) SortinoRatio(riskFreeRate, targetReturn float64) float64 {
	return safeDiv(s.AnnualizedReturn()-riskFreeRate, s.DownsideDeviation(targetReturn))
}

// CalmarRatio is AnnualizedReturn / MaxDrawdown.
func (s *Statistics) CalmarRatio() float64 {
	return safeDiv(s.AnnualizedReturn(), s.MaxDrawdown())
}

// IC is the Pearson correlation between prediction and the equity curve,
// using population moments. prediction must match the curve length.
func (s *Statistics) IC(prediction []float64) float64 {
	if len(prediction) != len(s.equity) {
		return Undefined
	}
	return correlation(prediction, s.equity)
}

// Beta is cov(equity, market) / var(market). market must match the curve
// length.
func (s *Statistics) Beta(market []float64) float64 {
	if len(market) != len(s.equity) {
		return Undefined
	}
	return safeDiv(popCovariance(s.equity, market), popVariance(market))
}

// Alpha is the excess of the strategy's annualized return over the return
// predicted by beta:
//
//	annualizedStrategyReturn - (riskFreeRate + beta*(annualizedMarketReturn - riskFreeRate))
func Alpha(annualizedStrategyReturn, riskFreeRate, beta, annualizedMarketReturn float64) float64 {
	return annualizedStrategyReturn - (riskFreeRate + beta*(annualizedMarketReturn-riskFreeRate))
}
