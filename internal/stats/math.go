package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Undefined is the sentinel returned by metrics whose formula has no value
// for the given curve (division by zero, too few points).
var Undefined = math.NaN()

// Defined reports whether v is a computed metric value rather than the
// Undefined sentinel or an infinity.
func Defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// mean is the arithmetic mean, Undefined for an empty series.
func mean(x []float64) float64 {
	if len(x) == 0 {
		return Undefined
	}
	return stat.Mean(x, nil)
}

// relTolerance bounds the rounding residue left in a dispersion that is
// zero in exact arithmetic, relative to the magnitude of the series.
const relTolerance = 1e-12

// nearZero reports whether a dispersion v of a series whose largest
// absolute value is scale is rounding residue rather than signal.
func nearZero(v, scale float64) bool {
	return math.Abs(v) <= relTolerance*scale
}

func maxAbs(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

// popStdDev is the population (N denominator) standard deviation. A
// deviation within rounding of zero, as left by a constant-growth curve's
// daily returns, is reported as exactly zero.
func popStdDev(x []float64) float64 {
	if len(x) == 0 {
		return Undefined
	}
	_, std := stat.PopMeanStdDev(x, nil)
	if nearZero(std, maxAbs(x)) {
		return 0
	}
	return std
}

// popVariance is popCovariance(x, x) with the same zero snapping as
// popStdDev.
func popVariance(x []float64) float64 {
	v := popCovariance(x, x)
	if nearZero(math.Sqrt(v), maxAbs(x)) {
		return 0
	}
	return v
}

// popCovariance is the population covariance of two equal-length series.
func popCovariance(x, y []float64) float64 {
	if len(x) == 0 || len(x) != len(y) {
		return Undefined
	}
	mx, my := mean(x), mean(y)
	cov := 0.0
	for i := range x {
		cov += (x[i] - mx) * (y[i] - my)
	}
	return cov / float64(len(x))
}

// correlation is the Pearson correlation built from popCovariance alone,
// so a series correlated with itself gives exactly 1.
func correlation(x, y []float64) float64 {
	return safeDiv(popCovariance(x, y), math.Sqrt(popVariance(x)*popVariance(y)))
}

// safeDiv returns num/den, or Undefined when den is zero or either operand
// is already undefined.
func safeDiv(num, den float64) float64 {
	if math.IsNaN(num) || math.IsNaN(den) || den == 0 {
		return Undefined
	}
	return num / den
}
