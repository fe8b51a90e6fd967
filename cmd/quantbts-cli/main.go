package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"quantbts/internal/backtest"
	"quantbts/internal/config"
	"quantbts/internal/store"
	"quantbts/internal/strategy/builtins"
	"quantbts/internal/util"
)

const version = "0.3.0"

var (
	configPath string
	logLevel   string
)

// env holds what every data command needs.
type env struct {
	cfg    *config.Config
	log    *slog.Logger
	db     *store.SQLiteStore
	bars   store.BarStore
	runner *backtest.Runner
}

func (e *env) Close() error {
	return e.db.Close()
}

// setup loads the configuration and opens the stores.
func setup(c *cli.Context) (*env, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger := util.NewLoggerTo(c.App.ErrWriter, cfg.Logging.Level, "text")
	util.SetDefault(logger)

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, err
	}
	bars, err := store.OpenBarStore(cfg.Storage.Backend, cfg.Storage.DataDir, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	runner, err := backtest.NewRunner(bars, builtins.NewRegistry(), cfg.Engine(), cfg.Backtest.MaxParallel, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &env{cfg: cfg, log: logger, db: db, bars: bars, runner: runner}, nil
}

// withEnv adapts a command body that needs an env to a cli.ActionFunc.
func withEnv(fn func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := setup(c)
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(c, e)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "quantbts-cli"
	app.Version = version
	app.Usage = "backtest daily trading strategies against stored bar data"
	app.EnableBashCompletion = true
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Value:       config.Path(),
			Usage:       "path to the YAML configuration file",
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "override the configured log level (debug, info, warn, error)",
			Destination: &logLevel,
		},
	}
	app.Commands = []*cli.Command{
		importCommand,
		runCommand,
		compareCommand,
		runsCommand,
		strategiesCommand,
		symbolsCommand,
		remoteCommand,
		versionCommand,
	}
	return app
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
