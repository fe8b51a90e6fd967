package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"quantbts/internal/backtest"
	"quantbts/internal/config"
	"quantbts/internal/grpcapi"
	"quantbts/internal/httpapi"
	"quantbts/internal/store"
	"quantbts/internal/strategy/builtins"
	"quantbts/internal/util"
)

func main() {
	cfg, err := config.LoadOrDefault(config.Path())
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer db.Close()

	bars, err := store.OpenBarStore(cfg.Storage.Backend, cfg.Storage.DataDir, db)
	if err != nil {
		log.Fatalf("opening bar store: %v", err)
	}

	runner, err := backtest.NewRunner(bars, builtins.NewRegistry(), cfg.Engine(), cfg.Backtest.MaxParallel, logger)
	if err != nil {
		log.Fatalf("creating runner: %v", err)
	}
	srv := httpapi.NewServer(runner, bars, db, cfg.ReportOptions(), logger)

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		logger.Info("quantbts-server listening",
			"addr", httpServer.Addr,
			"backend", cfg.Storage.Backend,
			"strategies", runner.Registry().List(),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	var grpcServer *grpc.Server
	if addr := cfg.GRPCAddr(); addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			log.Fatalf("listening on %s: %v", addr, err)
		}
		grpcServer = grpc.NewServer()
		grpcapi.NewServer(runner, cfg.ReportOptions(), logger).RegisterGRPC(grpcServer)
		go func() {
			logger.Info("gRPC server listening", "addr", addr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "error", err)
				cancel()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down quantbts-server")

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
