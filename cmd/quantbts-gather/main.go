package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"quantbts/internal/config"
	"quantbts/internal/gather"
	"quantbts/internal/store"
	"quantbts/internal/util"
)

func main() {
	symbols := flag.String("symbols", "", "comma-separated symbols, overriding gather.symbols in the config")
	start := flag.String("start", "", "first date for symbols with no history, overriding gather.start_date")
	flag.Parse()

	cfg, err := config.LoadOrDefault(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *symbols != "" {
		cfg.Gather.Symbols = strings.Split(*symbols, ",")
	}
	if *start != "" {
		cfg.Gather.StartDate = *start
	}
	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		log.Fatal("alpaca.api_key and alpaca.api_secret are required")
	}

	// Dual logger: stdout + /tmp log file.
	logFileName := fmt.Sprintf("/tmp/quantbts-gather-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatalf("failed to open log file: %v", err)
	}
	defer logFile.Close()

	logger := util.NewLoggerTo(io.MultiWriter(os.Stdout, logFile), cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	bars, err := store.OpenBarStore(cfg.Storage.Backend, cfg.Storage.DataDir, db)
	if err != nil {
		log.Fatalf("opening bar store: %v", err)
	}

	src := gather.NewAlpacaSource(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, cfg.Alpaca.Feed)
	var g gather.Gatherer
	g, err = gather.NewDailyGatherer(src, bars, gather.DailyOptions{
		Symbols:         cfg.Gather.Symbols,
		StartDate:       cfg.Gather.StartDate,
		RateLimitPerMin: cfg.Gather.RateLimitPerMin,
		MaxAttempts:     cfg.Gather.MaxAttempts,
		StateDir:        filepath.Join(cfg.Storage.DataDir, "state", cfg.Storage.Backend),
		Logger:          logger,
	})
	if err != nil {
		log.Fatalf("creating gatherer: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting quantbts-gather", "gatherer", g.Name(), "logFile", logFileName, "symbols", len(cfg.Gather.Symbols))
	if err := g.Run(ctx); err != nil {
		log.Fatalf("gather error: %v", err)
	}
}
