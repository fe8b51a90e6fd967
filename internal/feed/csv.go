// Package feed loads daily bars from delimited files.
package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/gocarina/gocsv"

	"quantbts/internal/domain"
)

// Columns lists the positional layout of a bar file. The file's own header
// row is skipped and these names are used instead.
var Columns = []string{"date", "open", "high", "low", "close", "volume"}

type csvBar struct {
	Date   int     `csv:"date"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume int64   `csv:"volume"`
}

// positionalReader yields header first, then the remaining records of r.
type positionalReader struct {
	r      *csv.Reader
	header []string
}

func (p *positionalReader) Read() ([]string, error) {
	if h := p.header; h != nil {
		p.header = nil
		return h, nil
	}
	return p.r.Read()
}

// positionalHeader replaces a file's header row with Columns so gocsv maps
// fields by position regardless of the header text.
func positionalHeader(rec []string) ([]string, error) {
	if len(rec) < len(Columns) {
		return nil, fmt.Errorf("%w: header has %d columns, want at least %d", domain.ErrInvalidInput, len(rec), len(Columns))
	}
	out := make([]string, len(rec))
	for i := range rec {
		if i < len(Columns) {
			out[i] = Columns[i]
		} else {
			out[i] = fmt.Sprintf("extra_%d", i+1)
		}
	}
	return out, nil
}

func (p *positionalReader) ReadAll() ([][]string, error) {
	var out [][]string
	for {
		rec, err := p.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// LoadCSV reads comma-separated bars from r. The first row is a header and
// is skipped; the remaining rows are date (YYYYMMDD), open, high, low, close,
// volume. The result is sorted ascending by date and when a date repeats the
// first row wins. Malformed rows are reported with their line number.
func LoadCSV(r io.Reader) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	first, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parsing bars: %w", err)
	}
	header, err := positionalHeader(first)
	if err != nil {
		return nil, err
	}

	var rows []csvBar
	if err := gocsv.UnmarshalCSV(&positionalReader{r: cr, header: header}, &rows); err != nil {
		return nil, fmt.Errorf("parsing bars: %w", err)
	}

	bars := make([]domain.Bar, 0, len(rows))
	seen := make(map[int]struct{}, len(rows))
	for i, row := range rows {
		if row.Date <= 0 {
			return nil, fmt.Errorf("%w: line %d: date %d", domain.ErrInvalidInput, i+2, row.Date)
		}
		if _, dup := seen[row.Date]; dup {
			continue
		}
		seen[row.Date] = struct{}{}
		bars = append(bars, domain.Bar(row))
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date < bars[j].Date })
	return bars, nil
}

// LoadCSVFile opens path and calls LoadCSV.
func LoadCSVFile(path string) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := LoadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}
