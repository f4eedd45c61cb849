// Package simulation implements C6: the daily event loop of mark-to-market,
// risk control, rebalance decision, and next-open settlement (spec.md
// §4.6).
package simulation

import (
	"context"
	"sort"
	"time"

	"github.com/moznion/go-optional"
	"github.com/quantlab/backtest-engine/internal/calendar"
	"github.com/quantlab/backtest-engine/internal/gateway"
	"github.com/quantlab/backtest-engine/internal/harness"
	"github.com/quantlab/backtest-engine/internal/logger"
	"github.com/quantlab/backtest-engine/internal/panel"
	"github.com/quantlab/backtest-engine/internal/types"
)

const defaultLotSize = 100

// StrategyInvoker is the C5 surface C6 drives per day.
type StrategyInvoker interface {
	InvokeSelect(ctx context.Context, source string, args harness.SelectFuncArgs) ([]string, error)
	InvokeRiskControl(ctx context.Context, source string, args harness.RiskControlArgs) ([]string, error)
}

// Loop runs the simulation for one strategy over one trading-day range.
type Loop struct {
	Gateway  gateway.Gateway
	Calendar calendar.Provider
	Panel    *panel.Panel
	Invoker  StrategyInvoker
	Log      *logger.Logger

	Strategy     types.Strategy
	ParamFQNames []string // the strategy's declared param fqnames, for param views

	InitialFund  float64
	SlippageRate float64
	LotSize      float64
}

// runContext is the per-backtest mutable mapping passed to every user-code
// invocation across the whole run; the engine never inspects or persists
// it (spec.md §4.6).
type runContext = map[string]any

// Result is what C7 consumes.
type Result struct {
	EquitySeries []types.EquityPoint
	Fills        []types.Fill
	RoundTrips   []types.RoundTrip
}

// Run drives the event loop over days, which must be the trading-day
// enumeration of [start, end] (spec.md §4.1).
func (l *Loop) Run(ctx context.Context, days []time.Time) (*Result, error) {
	if l.LotSize <= 0 {
		l.LotSize = defaultLotSize
	}

	p := newPortfolio(l.InitialFund)
	queue := &orderQueue{}
	runCtx := make(runContext)

	rebalanceInterval := l.Strategy.EffectiveRebalanceInterval()
	daysSinceRebalance := 0

	for i, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Step 4 (from the prior day) — settlement at this day's open.
		// Orders queued on the last day of the range never reach this
		// path again, so none execute past end (spec.md §4.6).
		if i > 0 {
			l.settle(ctx, p, queue, day)
		}

		// Step 1 — mark-to-market.
		p.markToMarket(day, func(symbol string) (float64, bool) {
			v, ok, err := l.Gateway.Row(ctx, symbol, day, "daily", "close")
			if err != nil || !ok {
				return 0, false
			}

			return v, true
		})

		// Step 2 — risk control, always.
		retained, err := l.runRiskControl(ctx, p, day, runCtx)
		if err != nil {
			return nil, err
		}

		for _, symbol := range p.holdings() {
			if !containsString(retained, symbol) {
				queue.enqueue(symbol, types.OrderSideSell, day)
			}
		}

		// Step 3 — rebalance decision.
		if i > 0 {
			daysSinceRebalance++
		}

		isFirstDay := i == 0
		mustRebalance := isFirstDay || rebalanceInterval <= 1 || daysSinceRebalance >= rebalanceInterval

		if mustRebalance {
			if err := l.runRebalance(ctx, p, queue, retained, day, runCtx); err != nil {
				return nil, err
			}

			daysSinceRebalance = 0
		}
	}

	return &Result{
		EquitySeries: p.equitySeries,
		Fills:        p.fills,
		RoundTrips:   p.roundTrips,
	}, nil
}

func (l *Loop) runRiskControl(ctx context.Context, p *portfolio, day time.Time, runCtx runContext) ([]string, error) {
	holdings := p.holdings()
	if len(holdings) == 0 || l.Strategy.RiskControlFunc == "" {
		return holdings, nil
	}

	views := l.paramViews(holdings, day)

	return l.Invoker.InvokeRiskControl(ctx, l.Strategy.RiskControlFunc, harness.RiskControlArgs{
		CurrentHoldings: holdings,
		ParamViews:      views,
		Day:             day,
		Context:         runCtx,
	})
}

func (l *Loop) runRebalance(ctx context.Context, p *portfolio, queue *orderQueue, currentHoldingsAfterRisk []string, day time.Time, runCtx runContext) error {
	universe, err := l.Calendar.Universe(ctx, l.Strategy.Scope, day)
	if err != nil {
		return err
	}

	candidates := make([]string, 0, len(universe))
	for symbol := range universe {
		candidates = append(candidates, symbol)
	}

	sort.Strings(candidates)

	views := l.paramViews(candidates, day)

	target, err := l.Invoker.InvokeSelect(ctx, l.Strategy.SelectFunc, harness.SelectFuncArgs{
		Candidates:      candidates,
		ParamViews:      views,
		PositionCount:   l.Strategy.PositionCount,
		CurrentHoldings: currentHoldingsAfterRisk,
		Day:             day,
		Context:         runCtx,
	})
	if err != nil {
		return err
	}

	if len(target) > l.Strategy.PositionCount {
		target = target[:l.Strategy.PositionCount]
	}

	targetSet := make(map[string]struct{}, len(target))
	for _, s := range target {
		targetSet[s] = struct{}{}
	}

	holdingSet := make(map[string]struct{}, len(currentHoldingsAfterRisk))
	for _, s := range currentHoldingsAfterRisk {
		holdingSet[s] = struct{}{}
	}

	for _, symbol := range currentHoldingsAfterRisk {
		if _, ok := targetSet[symbol]; !ok {
			queue.enqueue(symbol, types.OrderSideSell, day)
		}
	}

	for _, symbol := range target {
		if _, ok := holdingSet[symbol]; !ok {
			queue.enqueue(symbol, types.OrderSideBuy, day)
		}
	}

	return nil
}

// paramViews assembles one parameter view per symbol (spec.md §4.6 steps
// 2-3 "Build per-held-symbol/per-candidate param view").
func (l *Loop) paramViews(symbols []string, day time.Time) map[string]map[string]optional.Option[float64] {
	views := make(map[string]map[string]optional.Option[float64], len(symbols))
	for _, symbol := range symbols {
		views[symbol] = l.Panel.View(symbol, day, l.ParamFQNames)
	}

	return views
}

func containsString(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}

	return false
}
