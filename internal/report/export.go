package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/parquet-go/parquet-go"

	"quantbts/internal/backtest"
)

// EquityRow is one bar of an exported equity curve.
type EquityRow struct {
	Date   int64   `csv:"date" parquet:"date" json:"date"`
	Close  float64 `csv:"close" parquet:"close" json:"close"`
	Signal int32   `csv:"signal" parquet:"signal" json:"signal"`
	Equity float64 `csv:"equity" parquet:"equity" json:"equity"`
}

// EquityRows flattens a result into per-bar rows.
func EquityRows(res *backtest.Result) []EquityRow {
	rows := make([]EquityRow, len(res.Equity))
	for i := range res.Equity {
		rows[i] = EquityRow{
			Date:   int64(res.Bars[i].Date),
			Close:  res.Bars[i].Close,
			Signal: int32(res.Signals[i]),
			Equity: res.Equity[i],
		}
	}
	return rows
}

// WriteEquityCSV writes the equity curve of res as CSV with a header row.
func WriteEquityCSV(w io.Writer, res *backtest.Result) error {
	rows := EquityRows(res)
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("writing equity csv: %w", err)
	}
	return nil
}

// WriteEquityCSVFile creates path and writes the equity curve to it.
func WriteEquityCSVFile(path string, res *backtest.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteEquityCSV(f, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteEquityParquet writes the equity curve of res to a Parquet file.
func WriteEquityParquet(path string, res *backtest.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := parquet.WriteFile(path, EquityRows(res)); err != nil {
		return fmt.Errorf("writing equity parquet %s: %w", path, err)
	}
	return nil
}

// ReadEquityParquet reads a file written by WriteEquityParquet.
func ReadEquityParquet(path string) ([]EquityRow, error) {
	return parquet.ReadFile[EquityRow](path)
}
