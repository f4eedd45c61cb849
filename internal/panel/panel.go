// Package panel implements C4: materialising the dense (symbol × day ×
// param_fqname) value panel a strategy's callables read from during
// simulation (spec.md §4.4).
package panel

import (
	"context"
	"sort"
	"time"

	"github.com/moznion/go-optional"
	"github.com/quantlab/backtest-engine/internal/calendar"
	"github.com/quantlab/backtest-engine/internal/gateway"
	"github.com/quantlab/backtest-engine/internal/resolver"
	"github.com/quantlab/backtest-engine/internal/types"
	"github.com/quantlab/backtest-engine/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// IndicatorInvoker runs a user-authored calculation_method against a
// parameter view, implemented by internal/harness (C5). Defined here so
// panel does not import harness, keeping the dependency direction C4→C5.
type IndicatorInvoker interface {
	InvokeIndicator(ctx context.Context, ind types.Indicator, paramView map[string]optional.Option[float64]) (float64, error)
}

// Panel is the dense value view C6/C5 read scalars from.
type Panel struct {
	days     []time.Time
	dayIndex map[time.Time]int

	// values[fqname][symbol] is a series aligned 1:1 with days.
	values map[string]map[string][]optional.Option[float64]
}

// Get returns the value stored for (symbol, day, fqname), and whether that
// cell is both present in the panel and non-missing.
func (p *Panel) Get(symbol string, day time.Time, fqname string) (float64, bool) {
	idx, ok := p.dayIndex[day]
	if !ok {
		return 0, false
	}

	bySymbol, ok := p.values[fqname]
	if !ok {
		return 0, false
	}

	series, ok := bySymbol[symbol]
	if !ok || idx >= len(series) {
		return 0, false
	}

	v, err := series[idx].Take()

	return v, err == nil
}

// View assembles the parameter view (fqname -> value-or-missing) for one
// (symbol, day), as handed to user code per spec.md §4.4 step 3 / §4.5.
func (p *Panel) View(symbol string, day time.Time, fqnames []string) map[string]optional.Option[float64] {
	view := make(map[string]optional.Option[float64], len(fqnames))

	for _, fq := range fqnames {
		if v, ok := p.Get(symbol, day, fq); ok {
			view[fq] = optional.Some(v)
		} else {
			view[fq] = optional.None[float64]()
		}
	}

	return view
}

// Days returns the outer grid of trading days the panel was built over.
func (p *Panel) Days() []time.Time {
	return p.days
}

// Builder materialises a Panel from a resolution by driving C1/C2/C5.
type Builder struct {
	Calendar calendar.Provider
	Gateway  gateway.Gateway
	Invoker  IndicatorInvoker
	// Workers bounds per-layer symbol concurrency during indicator
	// evaluation (spec.md §4.4 concurrency note); 0 means unbounded.
	Workers int
}

// Build loads raw table-params, aggregates their windows, evaluates
// indicators in topological order, and materialises every strategy param,
// for every symbol in universe over [start, end].
func (b *Builder) Build(ctx context.Context, resolution resolver.Resolution, strategy types.Strategy, symbols []string, start, end time.Time) (*Panel, error) {
	loadStart := addTradingDaySpan(start, -resolution.MaxPrePeriod)
	loadEnd := addTradingDaySpan(end, resolution.MaxPostPeriod)

	loadDays, err := b.Calendar.TradingDays(ctx, loadStart, loadEnd)
	if err != nil {
		return nil, err
	}

	outerDays, err := b.Calendar.TradingDays(ctx, start, end)
	if err != nil {
		return nil, err
	}

	dayIndex := make(map[time.Time]int, len(loadDays))
	for i, d := range loadDays {
		dayIndex[d] = i
	}

	p := &Panel{
		days:     outerDays,
		dayIndex: dayIndex,
		values:   make(map[string]map[string][]optional.Option[float64]),
	}

	// Step 1 — raw fetch, one series per table-param per symbol.
	raw := make(map[string]map[string][]optional.Option[float64], len(resolution.Params))

	for fq, param := range resolution.Params {
		if param.Type != types.ParamTypeTable {
			continue
		}

		table, column, err := param.TableColumn()
		if err != nil {
			return nil, err
		}

		bySymbol := make(map[string][]optional.Option[float64], len(symbols))

		for _, symbol := range symbols {
			series := make([]optional.Option[float64], len(loadDays))

			for i, day := range loadDays {
				v, ok, err := b.Gateway.Row(ctx, symbol, day, table, column)
				if err != nil {
					return nil, err
				}

				if ok {
					series[i] = optional.Some(v)
				} else {
					series[i] = optional.None[float64]()
				}
			}

			bySymbol[symbol] = series
		}

		raw[fq] = bySymbol
	}

	// Step 2 — windowed aggregation, still one series per table-param per
	// symbol, now collapsed through the param's agg_func.
	for fq, param := range resolution.Params {
		if param.Type != types.ParamTypeTable {
			continue
		}

		bySymbol := make(map[string][]optional.Option[float64], len(symbols))

		for _, symbol := range symbols {
			rawSeries := raw[fq][symbol]

			var series []optional.Option[float64]

			if param.AggFunc == types.AggEMA {
				// EMA needs state carried across days (spec.md §9), so
				// compute the whole series once instead of per day.
				series = emaSeries(rawSeries, param.PrePeriod, param.PostPeriod)
			} else {
				series = make([]optional.Option[float64], len(loadDays))
				for i := range loadDays {
					series[i] = aggregate(param.AggFunc, rawSeries, i, param.PrePeriod, param.PostPeriod)
				}
			}

			bySymbol[symbol] = series
		}

		p.values[fq] = bySymbol
	}

	// Step 3 — indicator evaluation, topological layer by layer; within a
	// layer, symbols evaluate concurrently but layers are a hard barrier.
	for _, ind := range resolution.Indicators {
		fqnames := childFQNames(ind)

		series, err := b.evaluateIndicatorLayer(ctx, ind, fqnames, p, loadDays, symbols)
		if err != nil {
			return nil, err
		}

		p.values[ind.FQName()] = series
	}

	// Step 4 — ensure every strategy-declared param is present under its
	// own fqname. Table-params already are (step 2); an indicator-param's
	// own fqname differs from its backing indicator's, so alias it to the
	// indicator's already-evaluated series.
	for _, sp := range strategy.Params {
		fq := sp.FQName()
		if _, ok := p.values[fq]; ok {
			continue
		}

		if sp.Type != types.ParamTypeIndicator {
			return nil, errors.NewKindf(errors.KindMissingParam, "strategy param %q was not materialised by the panel", fq)
		}

		indSeries, ok := p.values[sp.DataID]
		if !ok {
			return nil, errors.NewKindf(errors.KindMissingIndicator, "indicator %q backing param %q was not evaluated", sp.DataID, fq)
		}

		p.values[fq] = indSeries
	}

	return p, nil
}

func (b *Builder) evaluateIndicatorLayer(ctx context.Context, ind types.Indicator, fqnames []string, p *Panel, days []time.Time, symbols []string) (map[string][]optional.Option[float64], error) {
	series := make(map[string][]optional.Option[float64], len(symbols))
	for _, symbol := range symbols {
		series[symbol] = make([]optional.Option[float64], len(days))
	}

	g, ctx := errgroup.WithContext(ctx)
	if b.Workers > 0 {
		g.SetLimit(b.Workers)
	}

	for _, symbol := range symbols {
		symbol := symbol

		g.Go(func() error {
			out := series[symbol]

			for i, day := range days {
				view := p.View(symbol, day, fqnames)

				value, err := b.Invoker.InvokeIndicator(ctx, ind, view)
				if err != nil {
					return err
				}

				out[i] = optional.Some(value)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return series, nil
}

func childFQNames(ind types.Indicator) []string {
	names := make([]string, 0, len(ind.Params))
	for _, p := range ind.Params {
		names = append(names, p.FQName())
	}

	sort.Strings(names)

	return names
}

// addTradingDaySpan offsets a calendar day by n trading-day-equivalent
// calendar days, widened generously since the true trading calendar is
// sparser than the calendar one; the caller re-intersects against the real
// calendar via Calendar.TradingDays immediately after.
func addTradingDaySpan(day time.Time, n int) time.Time {
	if n == 0 {
		return day
	}

	// A trading week has 5 sessions; pad by a further week to absorb
	// holidays so the widened window never falls short.
	calendarDays := n*7/5 + 7*sign(n)

	return day.AddDate(0, 0, calendarDays)
}

func sign(n int) int {
	if n < 0 {
		return -1
	}

	return 1
}
