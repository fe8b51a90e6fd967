package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"quantbts/internal/backtest"
	"quantbts/internal/config"
	"quantbts/internal/feed"
	"quantbts/internal/grpcapi"
	"quantbts/internal/report"
	"quantbts/internal/stats"
	"quantbts/internal/strategy"
	"quantbts/internal/strategy/builtins"
	"quantbts/internal/util"
)

// rangeFlags select the symbol and date range shared by run and compare.
var rangeFlags = []cli.Flag{
	&cli.StringFlag{
		Name:     "symbol",
		Aliases:  []string{"s"},
		Usage:    "the stored symbol to backtest",
		Required: true,
	},
	&cli.StringFlag{
		Name:  "start",
		Usage: "first date, YYYY-MM-DD or YYYYMMDD (default: first stored bar)",
	},
	&cli.StringFlag{
		Name:  "end",
		Usage: "last date, YYYY-MM-DD or YYYYMMDD (default: last stored bar)",
	},
	&cli.StringFlag{
		Name:  "benchmark",
		Usage: "a stored symbol whose closes feed Beta and Alpha",
	},
	&cli.Float64Flag{
		Name:  "capital",
		Usage: "override the configured initial capital",
	},
	&cli.Float64Flag{
		Name:  "commission",
		Usage: "override the configured commission rate, e.g. 0.001",
	},
}

var importCommand = &cli.Command{
	Name:      "import",
	Usage:     "load daily bars from CSV files (date,open,high,low,close,volume) into the bar store",
	ArgsUsage: "<symbol> <file.csv> [file.csv...]",
	Action:    withEnv(importAction),
}

func importAction(c *cli.Context, e *env) error {
	if c.NArg() < 2 {
		return cli.ShowSubcommandHelp(c)
	}
	symbol := strings.ToUpper(c.Args().First())

	total := 0
	for _, path := range c.Args().Tail() {
		bars, err := feed.LoadCSVFile(path)
		if err != nil {
			return err
		}
		if len(bars) == 0 {
			e.log.Warn("no bars in file", "path", path)
			continue
		}
		if err := e.bars.WriteBars(c.Context, symbol, bars); err != nil {
			return fmt.Errorf("writing %s: %w", symbol, err)
		}
		e.log.Info("imported", "symbol", symbol, "path", path, "bars", len(bars),
			"first", bars[0].Date, "last", bars[len(bars)-1].Date)
		total += len(bars)
	}
	fmt.Fprintf(c.App.Writer, "imported %s bars for %s\n", report.FormatInt(int64(total)), symbol)
	return nil
}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "backtest one strategy on one symbol and print its statistics",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:  "strategy",
			Value: "buy-and-hold",
			Usage: "the registered strategy to run",
		},
		&cli.IntFlag{Name: "short", Usage: "sma-cross short window"},
		&cli.IntFlag{Name: "long", Usage: "sma-cross long window"},
		&cli.IntFlag{Name: "days", Usage: "momentum lookback in bars"},
		&cli.Float64Flag{Name: "buy-threshold", Usage: "momentum buy ratio"},
		&cli.Float64Flag{Name: "sell-threshold", Usage: "momentum sell ratio"},
		&cli.StringFlag{Name: "equity-csv", Usage: "write the equity curve to this CSV file"},
		&cli.StringFlag{Name: "equity-parquet", Usage: "write the equity curve to this Parquet file"},
		&cli.BoolFlag{Name: "save", Usage: "store the run in the run history"},
		&cli.BoolFlag{Name: "json", Usage: "print the report as JSON"},
	}, rangeFlags...),
	Action: withEnv(runAction),
}

// jobFromFlags builds a Job for name from the configured parameters and the
// range flags.
func jobFromFlags(c *cli.Context, e *env, name string) (backtest.Job, error) {
	job := backtest.Job{
		Strategy: name,
		Params:   e.cfg.StrategyParams(name),
		Symbol:   strings.ToUpper(c.String("symbol")),
		End:      99991231,
	}
	var err error
	if v := c.String("start"); v != "" {
		if job.Start, err = util.ParseDate(v); err != nil {
			return job, err
		}
	}
	if v := c.String("end"); v != "" {
		if job.End, err = util.ParseDate(v); err != nil {
			return job, err
		}
	}
	if c.IsSet("capital") || c.IsSet("commission") {
		cfg := e.runner.Config()
		if c.IsSet("capital") {
			cfg.InitialCapital = c.Float64("capital")
		}
		if c.IsSet("commission") {
			cfg.Commission = c.Float64("commission")
		}
		job.Config = &cfg
	}
	return job, nil
}

// reportOptions returns the configured options with the benchmark applied.
func reportOptions(c *cli.Context, e *env, res *backtest.Result) (stats.ReportOptions, error) {
	opts := e.cfg.ReportOptions()
	if sym := c.String("benchmark"); sym != "" {
		curve, err := e.runner.Benchmark(c.Context, strings.ToUpper(sym), res)
		if err != nil {
			return opts, err
		}
		opts.Benchmark = curve
	}
	return opts, nil
}

func runAction(c *cli.Context, e *env) error {
	name := c.String("strategy")
	if !e.runner.Registry().Has(name) {
		return fmt.Errorf("%w: %q (have %s)", strategy.ErrUnknownStrategy, name,
			strings.Join(e.runner.Registry().List(), ", "))
	}
	job, err := jobFromFlags(c, e, name)
	if err != nil {
		return err
	}
	if c.IsSet("short") {
		job.Params.ShortWindow = c.Int("short")
	}
	if c.IsSet("long") {
		job.Params.LongWindow = c.Int("long")
	}
	if c.IsSet("days") {
		job.Params.Days = c.Int("days")
	}
	if c.IsSet("buy-threshold") {
		job.Params.BuyThreshold = c.Float64("buy-threshold")
	}
	if c.IsSet("sell-threshold") {
		job.Params.SellThreshold = c.Float64("sell-threshold")
	}

	res, err := e.runner.Run(c.Context, job)
	if err != nil {
		return err
	}
	opts, err := reportOptions(c, e, res)
	if err != nil {
		return err
	}
	rep := res.Stats.Report(opts)

	if path := c.String("equity-csv"); path != "" {
		if err := report.WriteEquityCSVFile(path, res); err != nil {
			return err
		}
		e.log.Info("equity curve written", "path", path)
	}
	if path := c.String("equity-parquet"); path != "" {
		if err := report.WriteEquityParquet(path, res); err != nil {
			return err
		}
		e.log.Info("equity curve written", "path", path)
	}
	if c.Bool("save") {
		rec := backtest.NewRunRecord(job, res, rep)
		if err := e.db.SaveRun(c.Context, rec); err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
		e.log.Info("run saved", "id", rec.ID)
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	return report.RenderText(c.App.Writer, report.MetaFor(job.Symbol, res), rep)
}

var compareCommand = &cli.Command{
	Name:  "compare",
	Usage: "run every registered strategy on one symbol in parallel and compare their statistics",
	Flags: append([]cli.Flag{
		&cli.StringSliceFlag{
			Name:  "strategy",
			Usage: "limit the comparison to these strategies (repeatable)",
		},
	}, rangeFlags...),
	Action: withEnv(compareAction),
}

func compareAction(c *cli.Context, e *env) error {
	names := c.StringSlice("strategy")
	if len(names) == 0 {
		names = e.runner.Registry().List()
	}

	jobs := make([]backtest.Job, 0, len(names))
	for _, name := range names {
		job, err := jobFromFlags(c, e, name)
		if err != nil {
			return err
		}
		jobs = append(jobs, job)
	}

	results, err := e.runner.RunBatch(c.Context, jobs)
	if err != nil {
		return err
	}

	cols := make([]report.Column, len(results))
	for i, res := range results {
		opts, err := reportOptions(c, e, res)
		if err != nil {
			return err
		}
		cols[i] = report.Column{Label: res.Strategy, Report: res.Stats.Report(opts)}
	}
	bars := results[0].Bars
	title := fmt.Sprintf("%s  %s to %s", jobs[0].Symbol,
		util.FormatDate(bars[0].Date), util.FormatDate(bars[len(bars)-1].Date))
	return report.RenderComparison(c.App.Writer, title, cols)
}

var runsCommand = &cli.Command{
	Name:      "runs",
	Usage:     "list saved runs, or show one run's statistics",
	ArgsUsage: "[run-id]",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "limit",
			Value: 20,
			Usage: "the number of most recent runs to list",
		},
	},
	Action: withEnv(runsAction),
}

func runsAction(c *cli.Context, e *env) error {
	if id := c.Args().First(); id != "" {
		rec, err := e.db.GetRun(c.Context, id)
		if err != nil {
			return fmt.Errorf("run %s: %w", id, err)
		}
		return report.RenderText(c.App.Writer, report.MetaForRun(rec), rec.Report)
	}
	runs, err := e.db.ListRuns(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	return report.RenderRuns(c.App.Writer, runs)
}

var strategiesCommand = &cli.Command{
	Name:  "strategies",
	Usage: "list registered strategies with their configured parameters",
	Action: func(c *cli.Context) error {
		cfg, err := config.LoadOrDefault(configPath)
		if err != nil {
			return err
		}
		for _, name := range builtins.NewRegistry().List() {
			p := cfg.StrategyParams(name)
			data, _ := json.Marshal(p)
			fmt.Fprintf(c.App.Writer, "%-14s %s\n", name, data)
		}
		return nil
	},
}

var symbolsCommand = &cli.Command{
	Name:  "symbols",
	Usage: "list symbols in the bar store",
	Action: withEnv(func(c *cli.Context, e *env) error {
		symbols, err := e.bars.ListSymbols(c.Context)
		if err != nil {
			return err
		}
		if len(symbols) == 0 {
			return errors.New("bar store is empty; see the import command")
		}
		for _, s := range symbols {
			fmt.Fprintln(c.App.Writer, s)
		}
		return nil
	}),
}

var remoteCommand = &cli.Command{
	Name:  "remote",
	Usage: "run strategies on a quantbts-server over gRPC, printing each result as it finishes",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "addr",
			Value: "localhost:9090",
			Usage: "the gRPC address of quantbts-server",
		},
		&cli.StringSliceFlag{
			Name:     "symbol",
			Aliases:  []string{"s"},
			Usage:    "symbols to backtest (repeatable)",
			Required: true,
		},
		&cli.StringSliceFlag{
			Name:  "strategy",
			Usage: "strategies to run (repeatable, default: all built-ins)",
		},
		&cli.StringFlag{Name: "start", Usage: "first date, YYYY-MM-DD or YYYYMMDD"},
		&cli.StringFlag{Name: "end", Usage: "last date, YYYY-MM-DD or YYYYMMDD"},
		&cli.StringFlag{Name: "benchmark", Usage: "a symbol stored on the server whose closes feed Beta and Alpha"},
	},
	Action: remoteAction,
}

func remoteAction(c *cli.Context) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	names := c.StringSlice("strategy")
	if len(names) == 0 {
		names = builtins.NewRegistry().List()
	}
	var start, end int
	if v := c.String("start"); v != "" {
		if start, err = util.ParseDate(v); err != nil {
			return err
		}
	}
	if v := c.String("end"); v != "" {
		if end, err = util.ParseDate(v); err != nil {
			return err
		}
	}

	var jobs []grpcapi.RunRequest
	for _, sym := range c.StringSlice("symbol") {
		for _, name := range names {
			jobs = append(jobs, grpcapi.RunRequest{
				Job: backtest.Job{
					Strategy: name,
					Params:   cfg.StrategyParams(name),
					Symbol:   strings.ToUpper(sym),
					Start:    start,
					End:      end,
				},
				Benchmark: strings.ToUpper(c.String("benchmark")),
			})
		}
	}

	client, err := grpcapi.Dial(c.String("addr"))
	if err != nil {
		return err
	}
	defer client.Close()

	failed := 0
	err = client.RunBatch(c.Context, jobs, func(r grpcapi.Reply) error {
		if r.Error != "" {
			failed++
			fmt.Fprintf(c.App.Writer, "%-6s %-14s error: %s\n", r.Symbol, r.Strategy, r.Error)
			return nil
		}
		fmt.Fprintf(c.App.Writer, "%-6s %-14s trades %-4d final %-14s return %-9s sharpe %s\n",
			r.Symbol, r.Strategy, r.Trades,
			report.FormatMoney(report.MetricValue(r.Report, stats.MetricFinalAssets)),
			report.FormatPct(report.MetricValue(r.Report, stats.MetricTotalReturn)),
			report.FormatRatio(report.MetricValue(r.Report, stats.MetricSharpeRatio)))
		return nil
	})
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(jobs))
	}
	return nil
}

var versionCommand = &cli.Command{
	Name:  "version",
	Usage: "print the CLI version",
	Action: func(c *cli.Context) error {
		fmt.Fprintf(c.App.Writer, "%s %s\n", c.App.Name, c.App.Version)
		return nil
	},
}
