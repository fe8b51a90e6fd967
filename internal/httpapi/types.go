// Package httpapi provides an HTTP REST API for running backtests against
// stored bar data and browsing saved runs.
package httpapi

import (
	"quantbts/internal/backtest"
	"quantbts/internal/domain"
	"quantbts/internal/report"
	"quantbts/internal/stats"
	"quantbts/internal/store"
)

// StrategiesResponse lists the registered strategy names.
type StrategiesResponse struct {
	Strategies []string `json:"strategies"`
}

// SymbolsResponse lists the symbols with stored bars.
type SymbolsResponse struct {
	Symbols []string `json:"symbols"`
}

// BarsResponse is the response for GET /api/bars/{symbol}.
type BarsResponse struct {
	Symbol string       `json:"symbol"`
	Start  int          `json:"start"`
	End    int          `json:"end"`
	Bars   []domain.Bar `json:"bars"`
}

// BacktestRequest is the body of POST /api/backtest.
type BacktestRequest struct {
	backtest.Job
	// Benchmark is a stored symbol whose closes feed Beta and Alpha.
	Benchmark string `json:"benchmark,omitempty"`
	// Save persists the run to the run history.
	Save bool `json:"save,omitempty"`
}

// BacktestResponse is the result of one backtest.
type BacktestResponse struct {
	RunID          string             `json:"run_id,omitempty"`
	Strategy       string             `json:"strategy"`
	Symbol         string             `json:"symbol"`
	Start          int                `json:"start"`
	End            int                `json:"end"`
	Bars           int                `json:"bars"`
	Trades         int                `json:"trades"`
	InitialCapital float64            `json:"initial_capital"`
	Commission     float64            `json:"commission"`
	Report         stats.Report       `json:"report"`
	Equity         []report.EquityRow `json:"equity"`
	Fills          []backtest.Fill    `json:"fills"`
}

// RunsResponse lists saved runs, newest first.
type RunsResponse struct {
	Runs []store.RunRecord `json:"runs"`
}

func backtestResponse(req BacktestRequest, res *backtest.Result, rep stats.Report) BacktestResponse {
	resp := BacktestResponse{
		Strategy:       res.Strategy,
		Symbol:         req.Symbol,
		Start:          res.Bars[0].Date,
		End:            res.Bars[len(res.Bars)-1].Date,
		Bars:           len(res.Bars),
		Trades:         res.NumTrades(),
		InitialCapital: res.Config.InitialCapital,
		Commission:     res.Config.Commission,
		Report:         rep,
		Equity:         report.EquityRows(res),
		Fills:          res.Fills,
	}
	if resp.Fills == nil {
		resp.Fills = []backtest.Fill{}
	}
	return resp
}
