package report

import (
	"time"

	"github.com/quantlab/backtest-engine/internal/types"
)

// Trace is one chart-engine trace (spec.md §6: "traces with x, y, type,
// name, marker"). Marker is left as an opaque map since its shape is the
// chart engine's own schema, not ours.
type Trace struct {
	X      []string       `json:"x"`
	Y      []float64      `json:"y"`
	Type   string         `json:"type"`
	Name   string         `json:"name"`
	Marker map[string]any `json:"marker,omitempty"`
}

// Chart is one pre-serialised chart payload entry (spec.md §6).
type Chart struct {
	Data   []Trace        `json:"data"`
	Layout map[string]any `json:"layout"`
}

// ChartPayload is the JSON blob persisted alongside a ReportRow (spec.md §6).
type ChartPayload struct {
	ReturnsChart     Chart `json:"returns_chart"`
	DailyPnLChart    Chart `json:"daily_pnl_chart"`
	DailyTradesChart Chart `json:"daily_trades_chart"`
}

// BuildChartPayload assembles the three chart-ready series from the
// simulation's equity/trade output and a benchmark close series aligned to
// the same trading days.
func BuildChartPayload(equity []types.EquityPoint, fills []types.Fill, benchmark []types.EquityPoint) ChartPayload {
	return ChartPayload{
		ReturnsChart:     returnsChart(equity, benchmark),
		DailyPnLChart:    dailyPnLChart(equity),
		DailyTradesChart: dailyTradesChart(fills, equity),
	}
}

func dateLabels(equity []types.EquityPoint) []string {
	labels := make([]string, len(equity))
	for i, e := range equity {
		labels[i] = e.Day.Format("2006-01-02")
	}

	return labels
}

// cumulativeReturns turns an equity/close series into cumulative return
// relative to its first point, i.e. strategy-equity semantics (spec.md §8
// scenario 5).
func cumulativeReturns(series []types.EquityPoint) []float64 {
	out := make([]float64, len(series))
	if len(series) == 0 {
		return out
	}

	base := series[0].Equity

	for i, e := range series {
		if base == 0 {
			out[i] = 0
			continue
		}

		out[i] = e.Equity/base - 1
	}

	return out
}

func benchmarkByDay(benchmark []types.EquityPoint) map[time.Time]float64 {
	m := make(map[time.Time]float64, len(benchmark))
	for _, b := range benchmark {
		m[b.Day] = b.Equity
	}

	return m
}

// returnsChart builds the strategy-vs-benchmark-vs-excess cumulative
// returns traces (spec.md §6/§8 scenario 5). When benchmark is shorter
// than equity (missing closes), its trailing points are held flat.
func returnsChart(equity []types.EquityPoint, benchmark []types.EquityPoint) Chart {
	labels := dateLabels(equity)
	strategyReturns := cumulativeReturns(equity)

	aligned := alignBenchmark(equity, benchmark)
	benchmarkReturns := cumulativeReturns(aligned)

	excess := make([]float64, len(equity))
	for i := range equity {
		excess[i] = strategyReturns[i] - benchmarkReturns[i]
	}

	return Chart{
		Data: []Trace{
			{X: labels, Y: strategyReturns, Type: "scatter", Name: "strategy"},
			{X: labels, Y: benchmarkReturns, Type: "scatter", Name: "benchmark"},
			{X: labels, Y: excess, Type: "scatter", Name: "excess"},
		},
		Layout: map[string]any{"title": "Cumulative Returns"},
	}
}

// alignBenchmark reindexes the benchmark series onto equity's day axis,
// holding the last known close flat across any gaps.
func alignBenchmark(equity []types.EquityPoint, benchmark []types.EquityPoint) []types.EquityPoint {
	byDay := benchmarkByDay(benchmark)

	aligned := make([]types.EquityPoint, len(equity))

	var last float64

	for i, e := range equity {
		if v, ok := byDay[e.Day]; ok {
			last = v
		}

		aligned[i] = types.EquityPoint{Day: e.Day, Equity: last}
	}

	return aligned
}

// dailyPnLChart builds the day-over-day equity delta bar trace, coloured
// green/red by sign (spec.md §6).
func dailyPnLChart(equity []types.EquityPoint) Chart {
	labels := dateLabels(equity)
	pnl := make([]float64, len(equity))
	colors := make([]string, len(equity))

	for i := range equity {
		if i == 0 {
			pnl[i] = 0
		} else {
			pnl[i] = equity[i].Equity - equity[i-1].Equity
		}

		if pnl[i] < 0 {
			colors[i] = "red"
		} else {
			colors[i] = "green"
		}
	}

	return Chart{
		Data: []Trace{
			{X: labels, Y: pnl, Type: "bar", Name: "daily_pnl", Marker: map[string]any{"color": colors}},
		},
		Layout: map[string]any{"title": "Daily P&L"},
	}
}

// dailyTradesChart builds the daily opens-vs-closes count trace (spec.md
// §6): an "open" is a buy fill, a "close" is a sell fill.
func dailyTradesChart(fills []types.Fill, equity []types.EquityPoint) Chart {
	labels := dateLabels(equity)

	opens := make(map[time.Time]float64)
	closes := make(map[time.Time]float64)

	for _, f := range fills {
		if f.Side == types.OrderSideBuy {
			opens[f.Day]++
		} else {
			closes[f.Day]++
		}
	}

	openSeries := make([]float64, len(equity))
	closeSeries := make([]float64, len(equity))

	for i, e := range equity {
		openSeries[i] = opens[e.Day]
		closeSeries[i] = closes[e.Day]
	}

	return Chart{
		Data: []Trace{
			{X: labels, Y: openSeries, Type: "bar", Name: "opens"},
			{X: labels, Y: closeSeries, Type: "bar", Name: "closes"},
		},
		Layout: map[string]any{"title": "Daily Trade Counts"},
	}
}
