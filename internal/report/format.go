package report

import (
	"fmt"
	"math"
	"strings"

	"quantbts/internal/stats"
)

// NA is printed for undefined metric values.
const NA = "n/a"

// FormatInt formats an integer with comma separators.
func FormatInt(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	b.WriteString(sign)
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatMoney formats v with two decimals and comma separators.
func FormatMoney(v float64) string {
	if !stats.Defined(v) {
		return NA
	}
	cents := int64(math.Round(math.Abs(v) * 100))
	s := fmt.Sprintf("%s.%02d", FormatInt(cents/100), cents%100)
	if v < 0 && cents != 0 {
		return "-" + s
	}
	return s
}

// FormatPct formats a fraction as a signed percentage with two decimals.
func FormatPct(v float64) string {
	if !stats.Defined(v) {
		return NA
	}
	return fmt.Sprintf("%+.2f%%", v*100)
}

// FormatRatio formats a dimensionless value with four decimals.
func FormatRatio(v float64) string {
	if !stats.Defined(v) {
		return NA
	}
	return fmt.Sprintf("%.4f", v)
}

// FormatMetric renders a report value according to its metric.
func FormatMetric(name string, v float64) string {
	switch name {
	case stats.MetricFinalAssets:
		return FormatMoney(v)
	case stats.MetricTotalReturn, stats.MetricAnnualizedReturn, stats.MetricMaxDrawdown,
		stats.MetricAnnualizedVolatility, stats.MetricMeanDailyReturn, stats.MetricStdDailyReturn,
		stats.MetricAlpha:
		return FormatPct(v)
	default:
		return FormatRatio(v)
	}
}
