// Package report implements C7: turning an equity series, trade log, and
// benchmark series into the metrics and chart payloads of spec.md §4.7/§6.
package report

import (
	"math"

	"github.com/quantlab/backtest-engine/internal/types"
)

// Metrics is the numeric half of a BacktestReport; Sharpe/win-rate/
// profit-loss-ratio are nil when undefined (spec.md §4.7).
type Metrics struct {
	TotalReturn     float64
	AnnualReturn    float64
	MaxDrawdown     float64
	SharpeRatio     *float64
	WinRate         *float64
	ProfitLossRatio *float64
	TradeCount      int
	FinalFund       float64
}

// DefaultTradingDaysPerYear is the annualisation constant (spec.md §6
// job.trading_days_per_year, default 252).
const DefaultTradingDaysPerYear = 252

// Compute derives Metrics from an equity series, the FIFO round-trip log,
// and the raw fill count.
func Compute(equity []types.EquityPoint, roundTrips []types.RoundTrip, fillCount int, tradingDaysPerYear int) Metrics {
	if tradingDaysPerYear <= 0 {
		tradingDaysPerYear = DefaultTradingDaysPerYear
	}

	m := Metrics{TradeCount: fillCount}

	if winRate, ok := winRate(roundTrips); ok {
		m.WinRate = &winRate
	}

	if ratio, ok := profitLossRatio(roundTrips); ok {
		m.ProfitLossRatio = &ratio
	}

	if len(equity) == 0 {
		return m
	}

	first := equity[0].Equity
	last := equity[len(equity)-1].Equity
	m.FinalFund = last

	if first != 0 {
		m.TotalReturn = last/first - 1
	}

	n := len(equity) - 1
	if n > 0 {
		m.AnnualReturn = math.Pow(1+m.TotalReturn, float64(tradingDaysPerYear)/float64(n)) - 1
	}

	m.MaxDrawdown = maxDrawdown(equity)

	dailyReturns := dailyReturns(equity)
	if sharpe, ok := sharpeRatio(dailyReturns, tradingDaysPerYear); ok {
		m.SharpeRatio = &sharpe
	}

	return m
}

func dailyReturns(equity []types.EquityPoint) []float64 {
	if len(equity) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(equity)-1)

	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}

		returns = append(returns, equity[i].Equity/prev-1)
	}

	return returns
}

func maxDrawdown(equity []types.EquityPoint) float64 {
	peak := equity[0].Equity
	worst := 0.0

	for _, e := range equity {
		if e.Equity > peak {
			peak = e.Equity
		}

		if peak == 0 {
			continue
		}

		drawdown := (peak - e.Equity) / peak
		if drawdown > worst {
			worst = drawdown
		}
	}

	return worst
}

func sharpeRatio(dailyReturns []float64, tradingDaysPerYear int) (float64, bool) {
	if len(dailyReturns) == 0 {
		return 0, false
	}

	mean := average(dailyReturns)
	sd := stddev(dailyReturns, mean)

	if sd == 0 {
		return 0, false
	}

	return mean / sd * math.Sqrt(float64(tradingDaysPerYear)), true
}

func average(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}

	return total / float64(len(values))
}

func stddev(values []float64, mean float64) float64 {
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}

	return math.Sqrt(sumSq / float64(len(values)))
}

func winRate(roundTrips []types.RoundTrip) (float64, bool) {
	if len(roundTrips) == 0 {
		return 0, false
	}

	wins := 0

	for _, rt := range roundTrips {
		if rt.PnL > 0 {
			wins++
		}
	}

	return float64(wins) / float64(len(roundTrips)), true
}

func profitLossRatio(roundTrips []types.RoundTrip) (float64, bool) {
	var winSum, lossSum float64

	var winCount, lossCount int

	for _, rt := range roundTrips {
		if rt.PnL > 0 {
			winSum += rt.PnL
			winCount++
		} else if rt.PnL < 0 {
			lossSum += rt.PnL
			lossCount++
		}
	}

	if lossCount == 0 || winCount == 0 {
		return 0, false
	}

	meanWin := winSum / float64(winCount)
	meanLoss := lossSum / float64(lossCount)

	return meanWin / math.Abs(meanLoss), true
}
