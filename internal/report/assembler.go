package report

import (
	"context"
	"time"

	"github.com/quantlab/backtest-engine/internal/gateway"
	"github.com/quantlab/backtest-engine/internal/simulation"
	"github.com/quantlab/backtest-engine/internal/types"
)

// DefaultBenchmark is the scope's fallback benchmark index (spec.md §6
// job.default_benchmark).
const DefaultBenchmark = "000300.SH"

// Assembler turns one simulation run into a persisted report row plus its
// chart payload (C7, spec.md §4.7).
type Assembler struct {
	Gateway            gateway.Gateway
	TradingDaysPerYear int
}

// Assemble computes metrics and chart data for a completed run. benchmark
// is the instrument itself for a single-stock scope, else
// submission.BenchmarkTsCode (defaulting to DefaultBenchmark).
func (a *Assembler) Assemble(ctx context.Context, submission types.JobSubmission, strategy types.Strategy, days []time.Time, result *simulation.Result) (types.ReportRow, ChartPayload, error) {
	benchmarkSymbol := submission.BenchmarkTsCode
	if benchmarkSymbol == "" {
		benchmarkSymbol = DefaultBenchmark
	}

	if strategy.Scope.Kind == types.ScopeSingleStock {
		benchmarkSymbol = strategy.Scope.Symbol
	}

	benchmarkSeries, err := a.benchmarkSeries(ctx, benchmarkSymbol, days)
	if err != nil {
		return types.ReportRow{}, ChartPayload{}, err
	}

	metrics := Compute(result.EquitySeries, result.RoundTrips, len(result.Fills), a.TradingDaysPerYear)

	row := types.ReportRow{
		CreatorName:      string(strategy.Creator),
		StrategyName:     strategy.Name,
		BacktestType:     backtestType(strategy.Scope),
		StartDate:        submission.StartDate,
		EndDate:          submission.EndDate,
		InitialFund:      submission.InitialFund,
		FinalFund:        metrics.FinalFund,
		TotalReturn:      metrics.TotalReturn,
		AnnualReturn:     metrics.AnnualReturn,
		MaxDrawdown:      metrics.MaxDrawdown,
		SharpeRatio:      metrics.SharpeRatio,
		WinRate:          metrics.WinRate,
		ProfitLossRatio:  metrics.ProfitLossRatio,
		TradeCount:       metrics.TradeCount,
		ReportStatus:     types.JobStatusCompleted,
	}

	if strategy.Scope.Kind == types.ScopeSingleStock {
		row.StockCode = strategy.Scope.Symbol
	}
	// ComponentCount is not set here, and internal/job does not set it
	// either, so it stays nil for every scope.

	payload := BuildChartPayload(result.EquitySeries, result.Fills, benchmarkSeries)

	return row, payload, nil
}

func backtestType(scope types.Scope) types.BacktestType {
	if scope.Kind == types.ScopeSingleStock {
		return types.BacktestTypeStock
	}

	return types.BacktestTypeIndex
}

// benchmarkSeries fetches the benchmark's close for each trading day,
// holding the last known value flat across any missing days.
func (a *Assembler) benchmarkSeries(ctx context.Context, symbol string, days []time.Time) ([]types.EquityPoint, error) {
	series := make([]types.EquityPoint, 0, len(days))

	var last float64

	for _, day := range days {
		v, ok, err := a.Gateway.Row(ctx, symbol, day, "daily", "close")
		if err != nil {
			return nil, err
		}

		if ok {
			last = v
		}

		series = append(series, types.EquityPoint{Day: day, Equity: last})
	}

	return series, nil
}
