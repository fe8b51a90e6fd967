package store

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"quantbts/internal/domain"
	"quantbts/internal/stats"
	"quantbts/internal/strategy"
)

func sampleBars() []domain.Bar {
	return []domain.Bar{
		{Date: 20231229, Open: 193.9, High: 194.4, Low: 191.7, Close: 192.5, Volume: 42628800},
		{Date: 20240102, Open: 187.2, High: 188.4, Low: 183.9, Close: 185.6, Volume: 82488700},
		{Date: 20240103, Open: 184.2, High: 185.9, Low: 183.4, Close: 184.3, Volume: 58414500},
	}
}

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")

	bp := ps.barPath("aapl", 2024)
	want := filepath.Join("/data", "daily", "AAPL", "2024.parquet")
	if bp != want {
		t.Errorf("barPath mismatch:\n  got  %s\n  want %s", bp, want)
	}
	if !strings.Contains(bp, "AAPL") {
		t.Errorf("barPath should contain upper-case symbol 'AAPL': %s", bp)
	}
}

func TestParquetStoreWriteReadBars(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	if err := ps.WriteBars(ctx, "AAPL", sampleBars()); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	got, err := ps.ReadBars(ctx, "AAPL", 20230101, 20241231)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ReadBars returned %d bars, want 3", len(got))
	}
	if got[0] != sampleBars()[0] {
		t.Errorf("first bar = %+v, want %+v", got[0], sampleBars()[0])
	}

	// Range bounds are inclusive and span year files.
	got, err = ps.ReadBars(ctx, "AAPL", 20231229, 20240102)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 || got[0].Date != 20231229 || got[1].Date != 20240102 {
		t.Errorf("ReadBars(20231229, 20240102) = %+v", got)
	}

	got, err = ps.ReadBars(ctx, "MSFT", 20230101, 20241231)
	if err != nil {
		t.Fatalf("ReadBars(MSFT): %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ReadBars(MSFT) returned %d bars, want 0", len(got))
	}
}

func TestParquetStoreMergeBars(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	first := []domain.Bar{{Date: 20240301, Open: 400, High: 405, Low: 399, Close: 403, Volume: 30000000}}
	if err := ps.WriteBars(ctx, "MSFT", first); err != nil {
		t.Fatalf("WriteBars (first): %v", err)
	}

	// A new date merges; a repeated date replaces the stored bar.
	second := []domain.Bar{
		{Date: 20240301, Open: 400, High: 405, Low: 399, Close: 404, Volume: 31000000},
		{Date: 20240304, Open: 403, High: 410, Low: 402, Close: 408, Volume: 35000000},
	}
	if err := ps.WriteBars(ctx, "MSFT", second); err != nil {
		t.Fatalf("WriteBars (second): %v", err)
	}

	got, err := ps.ReadBars(ctx, "MSFT", 20240101, 20241231)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars after merge, want 2", len(got))
	}
	if got[0].Close != 404 {
		t.Errorf("merged close = %v, want 404", got[0].Close)
	}
}

func TestParquetStoreListSymbols(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	symbols, err := ps.ListSymbols(ctx)
	if err != nil {
		t.Fatalf("ListSymbols on empty dir: %v", err)
	}
	if len(symbols) != 0 {
		t.Errorf("ListSymbols on empty dir = %v, want none", symbols)
	}

	for _, sym := range []string{"GOOGL", "AAPL"} {
		if err := ps.WriteBars(ctx, sym, sampleBars()[:1]); err != nil {
			t.Fatalf("WriteBars(%s): %v", sym, err)
		}
	}

	symbols, err = ps.ListSymbols(ctx)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "AAPL" || symbols[1] != "GOOGL" {
		t.Errorf("ListSymbols = %v, want [AAPL GOOGL]", symbols)
	}
}

func openSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore(%q) returned error: %v", dbPath, err)
	}
	t.Cleanup(func() {
		if cerr := s.Close(); cerr != nil {
			t.Errorf("Close() returned error: %v", cerr)
		}
	})
	return s
}

func TestSQLiteStoreOpen(t *testing.T) {
	s := openSQLite(t)
	if err := s.db.Ping(); err != nil {
		t.Fatalf("db.Ping() returned error: %v", err)
	}
}

func TestSQLiteStoreBars(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	if err := s.WriteBars(ctx, "aapl", sampleBars()); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	// Existing rows are kept on conflict.
	dup := []domain.Bar{{Date: 20240102, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1}}
	if err := s.WriteBars(ctx, "AAPL", dup); err != nil {
		t.Fatalf("WriteBars (duplicate): %v", err)
	}

	got, err := s.ReadBars(ctx, "AAPL", 20240101, 20240103)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(got))
	}
	if got[0] != sampleBars()[1] {
		t.Errorf("first bar = %+v, want %+v", got[0], sampleBars()[1])
	}

	symbols, err := s.ListSymbols(ctx)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 1 || symbols[0] != "AAPL" {
		t.Errorf("ListSymbols = %v, want [AAPL]", symbols)
	}

	if err := s.WriteBars(ctx, " ", sampleBars()); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("WriteBars(empty symbol) err = %v, want ErrInvalidInput", err)
	}
}

func TestSQLiteStoreRuns(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"buy-and-hold", "sma-cross", "momentum"} {
		rec := &RunRecord{
			Strategy:       name,
			Params:         strategy.Params{ShortWindow: 5, LongWindow: 20},
			Symbol:         "spy",
			Start:          20230101,
			End:            20231231,
			InitialCapital: 10000,
			Commission:     0.001,
			NumTrades:      i,
			CreatedAt:      base.Add(time.Duration(i) * time.Hour),
			Report: stats.Report{
				{Name: stats.MetricFinalAssets, Value: 10500},
				{Name: stats.MetricSharpeRatio, Value: stats.Undefined},
			},
		}
		if err := s.SaveRun(ctx, rec); err != nil {
			t.Fatalf("SaveRun(%s): %v", name, err)
		}
		if rec.ID == "" {
			t.Fatalf("SaveRun(%s) did not assign an ID", name)
		}
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("ListRuns(2) returned %d runs, want 2", len(runs))
	}
	if runs[0].Strategy != "momentum" || runs[1].Strategy != "sma-cross" {
		t.Errorf("ListRuns order = [%s %s], want [momentum sma-cross]", runs[0].Strategy, runs[1].Strategy)
	}

	got, err := s.GetRun(ctx, runs[1].ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Symbol != "SPY" {
		t.Errorf("Symbol = %q, want %q", got.Symbol, "SPY")
	}
	if got.Params.LongWindow != 20 {
		t.Errorf("Params.LongWindow = %d, want 20", got.Params.LongWindow)
	}
	if !got.CreatedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, base.Add(time.Hour))
	}
	if v, _ := got.Report.Get(stats.MetricFinalAssets); v != 10500 {
		t.Errorf("Final Assets = %v, want 10500", v)
	}
	if v, ok := got.Report.Get(stats.MetricSharpeRatio); !ok || !math.IsNaN(v) {
		t.Errorf("Sharpe Ratio = %v (present %v), want undefined", v, ok)
	}

	if _, err := s.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRun(missing) err = %v, want ErrNotFound", err)
	}
}

func TestOpenBarStore(t *testing.T) {
	s := openSQLite(t)

	bs, err := OpenBarStore("sqlite", "", s)
	if err != nil || bs != BarStore(s) {
		t.Errorf("OpenBarStore(sqlite) = %v, %v", bs, err)
	}
	bs, err = OpenBarStore("parquet", t.TempDir(), nil)
	if err != nil {
		t.Fatalf("OpenBarStore(parquet): %v", err)
	}
	if _, ok := bs.(*ParquetStore); !ok {
		t.Errorf("OpenBarStore(parquet) = %T, want *ParquetStore", bs)
	}
	if _, err := OpenBarStore("influx", "", s); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("OpenBarStore(influx) err = %v, want ErrInvalidConfig", err)
	}
}
