package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"quantbts/internal/backtest"
	"quantbts/internal/domain"
	"quantbts/internal/stats"
	"quantbts/internal/store"
	"quantbts/internal/strategy"
	"quantbts/internal/util"
)

// maxBodyBytes caps POST bodies.
const maxBodyBytes = 1 << 20

// Server serves the backtest HTTP API.
type Server struct {
	runner *backtest.Runner
	bars   store.BarStore
	runs   store.RunStore // nil disables saving and run history
	opts   stats.ReportOptions
	log    *slog.Logger
}

// NewServer creates a Server. opts carries the report parameters applied to
// every backtest; a request benchmark replaces opts.Benchmark.
func NewServer(runner *backtest.Runner, bars store.BarStore, runs store.RunStore, opts stats.ReportOptions, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		runner: runner,
		bars:   bars,
		runs:   runs,
		opts:   opts,
		log:    log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/strategies", s.handleStrategies)
	mux.HandleFunc("GET /api/symbols", s.handleSymbols)
	mux.HandleFunc("GET /api/bars/{symbol}", s.handleBars)
	mux.HandleFunc("POST /api/backtest", s.handleBacktest)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, domain.ErrEmptyBars):
		return http.StatusNotFound
	case errors.Is(err, strategy.ErrUnknownStrategy),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidConfig):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// dateParam parses an optional YYYYMMDD or YYYY-MM-DD query parameter.
func dateParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return util.ParseDate(v)
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, StrategiesResponse{Strategies: s.runner.Registry().List()})
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.bars.ListSymbols(r.Context())
	if err != nil {
		s.log.Error("listing symbols", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list symbols")
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	writeJSON(w, SymbolsResponse{Symbols: symbols})
}

func (s *Server) handleBars(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	start, err := dateParam(r, "start", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := dateParam(r, "end", 99991231)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bars, err := s.bars.ReadBars(r.Context(), symbol, start, end)
	if err != nil {
		s.log.Error("reading bars", "symbol", symbol, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read bars")
		return
	}
	if bars == nil {
		bars = []domain.Bar{}
	}
	writeJSON(w, BarsResponse{Symbol: symbol, Start: start, End: end, Bars: bars})
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Symbol == "" || req.Strategy == "" {
		writeError(w, http.StatusBadRequest, "strategy and symbol required")
		return
	}
	if req.End == 0 {
		req.End = 99991231
	}
	if req.Save && s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run history not configured")
		return
	}

	ctx := r.Context()
	res, err := s.runner.Run(ctx, req.Job)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	opts := s.opts
	if req.Benchmark != "" {
		opts.Benchmark, err = s.runner.Benchmark(ctx, req.Benchmark, res)
		if err != nil {
			writeError(w, errorStatus(err), err.Error())
			return
		}
	}
	rep := res.Stats.Report(opts)
	resp := backtestResponse(req, res, rep)

	if req.Save {
		rec := backtest.NewRunRecord(req.Job, res, rep)
		if err := s.runs.SaveRun(ctx, rec); err != nil {
			s.log.Error("saving run", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to save run")
			return
		}
		resp.RunID = rec.ID
	}

	s.log.Info("backtest",
		"strategy", req.Strategy,
		"symbol", req.Symbol,
		"bars", resp.Bars,
		"trades", resp.Trades,
		"run_id", resp.RunID,
	)
	writeJSON(w, resp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeJSON(w, RunsResponse{Runs: []store.RunRecord{}})
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.log.Error("listing runs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []store.RunRecord{}
	}
	writeJSON(w, RunsResponse{Runs: runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run history not configured")
		return
	}
	id := r.PathValue("id")
	rec, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", id))
			return
		}
		s.log.Error("getting run", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	writeJSON(w, rec)
}
