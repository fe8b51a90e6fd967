package stats

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Metric names in report order.
const (
	MetricFinalAssets          = "Final Assets"
	MetricTotalReturn          = "Total Return"
	MetricMeanDailyReturn      = "Mean Daily Return"
	MetricStdDailyReturn       = "Std Daily Return"
	MetricAnnualizedReturn     = "Annualized Return"
	MetricMaxDrawdown          = "Max Drawdown"
	MetricAnnualizedVolatility = "Annualized Volatility"
	MetricSharpeRatio          = "Sharpe Ratio"
	MetricSortinoRatio         = "Sortino Ratio"
	MetricCalmarRatio          = "Calmar Ratio"
	MetricAlpha                = "Alpha"
	MetricBeta                 = "Beta"
	MetricIC                   = "IC"
)

// Defaults for ReportOptions.
const (
	DefaultAlphaRiskFreeRate = 0.03
	DefaultMarketReturn      = 0.10
)

// ReportOptions parameterizes Statistics.Report.
type ReportOptions struct {
	// RiskFreeRate is the annual rate subtracted in Sharpe and Sortino.
	RiskFreeRate float64
	// TargetReturn is the daily return below which Sortino counts downside.
	TargetReturn float64
	// AlphaRiskFreeRate is the annual rate used by Alpha.
	AlphaRiskFreeRate float64
	// MarketReturn is the annualized market return used by Alpha when
	// Benchmark is empty.
	MarketReturn float64
	// Benchmark is the market curve for Beta and Alpha. When empty the
	// equity curve itself is used, so Beta is 1.
	Benchmark []float64
	// Prediction is the curve correlated against equity for IC. When empty
	// the equity curve itself is used, so IC is 1.
	Prediction []float64
}

// DefaultReportOptions returns the options used by Summary.
func DefaultReportOptions() ReportOptions {
	return ReportOptions{
		AlphaRiskFreeRate: DefaultAlphaRiskFreeRate,
		MarketReturn:      DefaultMarketReturn,
	}
}

// Metric is one named value of a Report.
type Metric struct {
	Name  string
	Value float64
}

// Report is an ordered list of metrics. Undefined metrics hold NaN.
type Report []Metric

// Summary computes the full metric set with DefaultReportOptions. With no
// benchmark the curve is compared with itself: IC and Beta are 1 by
// construction.
func (s *Statistics) Summary() Report {
	return s.Report(DefaultReportOptions())
}

// Report computes the full metric set.
func (s *Statistics) Report(opts ReportOptions) Report {
	market := opts.Benchmark
	marketReturn := opts.MarketReturn
	if len(market) == 0 {
		market = s.equity
	} else if bs, err := New(market); err == nil {
		marketReturn = bs.AnnualizedReturn()
	}
	prediction := opts.Prediction
	if len(prediction) == 0 {
		prediction = s.equity
	}

	annReturn := s.AnnualizedReturn()
	beta := s.Beta(market)

	return Report{
		{MetricFinalAssets, s.FinalAssets()},
		{MetricTotalReturn, s.TotalReturn()},
		{MetricMeanDailyReturn, s.MeanDailyReturn()},
		{MetricStdDailyReturn, s.StdDailyReturn()},
		{MetricAnnualizedReturn, annReturn},
		{MetricMaxDrawdown, s.MaxDrawdown()},
		{MetricAnnualizedVolatility, s.AnnualizedVolatility()},
		{MetricSharpeRatio, s.SharpeRatio(opts.RiskFreeRate)},
		{MetricSortinoRatio, s.SortinoRatio(opts.RiskFreeRate, opts.TargetReturn)},
		{MetricCalmarRatio, s.CalmarRatio()},
		{MetricAlpha, Alpha(annReturn, opts.AlphaRiskFreeRate, beta, marketReturn)},
		{MetricBeta, beta},
		{MetricIC, s.IC(prediction)},
	}
}

// Get returns the value of the named metric.
func (r Report) Get(name string) (float64, bool) {
	for _, m := range r {
		if m.Name == name {
			return m.Value, true
		}
	}
	return 0, false
}

// Map returns the metrics keyed by name.
func (r Report) Map() map[string]float64 {
	out := make(map[string]float64, len(r))
	for _, m := range r {
		out[m.Name] = m.Value
	}
	return out
}

// MarshalJSON encodes the report as a JSON object in report order, with
// undefined values as null.
func (r Report) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if !Defined(m.Value) {
			buf.WriteString("null")
			continue
		}
		val, err := json.Marshal(m.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object written by MarshalJSON, keeping key order
// and mapping null to Undefined.
func (r *Report) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("stats report: expected object, got %v", tok)
	}

	var out Report
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("stats report: expected key, got %v", tok)
		}
		var v *float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("stats report: decoding %q: %w", name, err)
		}
		value := Undefined
		if v != nil {
			value = *v
		}
		out = append(out, Metric{Name: name, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}
