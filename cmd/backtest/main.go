package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/quantlab/backtest-engine/internal/calendar"
	"github.com/quantlab/backtest-engine/internal/config"
	"github.com/quantlab/backtest-engine/internal/gateway"
	"github.com/quantlab/backtest-engine/internal/job"
	"github.com/quantlab/backtest-engine/internal/logger"
	"github.com/quantlab/backtest-engine/internal/registry"
	"github.com/quantlab/backtest-engine/internal/types"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

func runAction(ctx context.Context, cmd *cli.Command) error {
	log, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := sql.Open("duckdb", cmd.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open duckdb store: %w", err)
	}
	defer db.Close() //nolint:errcheck

	snapshot, err := registry.LoadFromDuckDB(ctx, db, log)
	if err != nil {
		return fmt.Errorf("failed to load entity snapshot: %w", err)
	}

	cal, err := calendar.NewDuckDBProvider(cmd.String("db"), log)
	if err != nil {
		return fmt.Errorf("failed to open calendar provider: %w", err)
	}
	defer cal.Close() //nolint:errcheck

	gw, err := gateway.NewDuckDBGateway(cmd.String("db"), log)
	if err != nil {
		return fmt.Errorf("failed to open market data gateway: %w", err)
	}
	defer gw.Close() //nolint:errcheck

	coordinator := &job.Coordinator{
		Calendar:           cal,
		Gateway:            gw,
		Registry:           snapshot,
		Log:                log,
		Timeout:            time.Duration(cfg.Job.DefaultTimeoutSeconds) * time.Second,
		PanelWorkers:       cfg.Job.PanelWorkers,
		LotSize:            cfg.Job.LotSize,
		UsercodeTimeout:    time.Duration(cfg.Job.UsercodeTimeoutMs) * time.Millisecond,
		TradingDaysPerYear: cfg.Job.TradingDaysPerYear,
	}

	submission := types.JobSubmission{
		Creator:         types.Creator(cmd.String("creator")),
		Strategy:        cmd.String("strategy"),
		StartDate:       cmd.Timestamp("start"),
		EndDate:         cmd.Timestamp("end"),
		InitialFund:     cmd.Float("initial-fund"),
		SlippageRate:    cmd.Float("slippage-rate"),
		BenchmarkTsCode: cmd.String("benchmark"),
	}

	if submission.BenchmarkTsCode == "" {
		submission.BenchmarkTsCode = cfg.Job.DefaultBenchmark
	}

	strategyFQName := types.FQName(submission.Creator, submission.Strategy)

	bar := progressbar.NewOptions(-1, progressbar.OptionSetDescription("running backtest"))
	defer bar.Close() //nolint:errcheck

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	outcome := coordinator.Run(ctx, submission, strategyFQName)
	close(done)

	if outcome.Status == types.JobStatusFailed {
		return fmt.Errorf("backtest failed [%s]: %s", outcome.ErrKind, outcome.ErrMsg)
	}

	fmt.Printf("report_id=%s total_return=%.4f annual_return=%.4f max_drawdown=%.4f trade_count=%d\n",
		outcome.ReportID, outcome.Row.TotalReturn, outcome.Row.AnnualReturn, outcome.Row.MaxDrawdown, outcome.Row.TradeCount)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Run a backtest job against a strategy registered in the entity store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to engine configuration file",
				Value: "config/backtest-engine-config.yaml",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "Path to the DuckDB data store",
				Value: ":memory:",
			},
			&cli.StringFlag{
				Name:     "creator",
				Usage:    "Strategy owner",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "strategy",
				Usage:    "Strategy name",
				Required: true,
			},
			&cli.TimestampFlag{
				Name:     "start",
				Usage:    "Backtest start date in `YYYY-MM-DD` format",
				Required: true,
				Config:   cli.TimestampConfig{Layouts: []string{"2006-01-02"}},
			},
			&cli.TimestampFlag{
				Name:     "end",
				Usage:    "Backtest end date in `YYYY-MM-DD` format",
				Required: true,
				Config:   cli.TimestampConfig{Layouts: []string{"2006-01-02"}},
			},
			&cli.FloatFlag{
				Name:     "initial-fund",
				Usage:    "Starting fund for the simulated portfolio",
				Required: true,
			},
			&cli.FloatFlag{
				Name:  "slippage-rate",
				Usage: "Fractional slippage applied to every fill (0 to 0.1)",
				Value: 0,
			},
			&cli.StringFlag{
				Name:  "benchmark",
				Usage: "Benchmark ts_code; defaults to the configured engine default when omitted",
			},
		},
		Action: runAction,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nreceived interrupt signal, cancelling backtest...")
		cancel()
	}()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
