package panel

import (
	"github.com/moznion/go-optional"
	"github.com/quantlab/backtest-engine/internal/types"
)

// Sample is one raw (day-indexed) observation in a symbol's aligned series.
// An absent cell holds a None Value at its position; callers index by
// position within the per-symbol series.
type Sample struct {
	Value optional.Option[float64]
}

// aggregate collapses the trailing pre_period window (and, for a non-zero
// post_period, the leading window too) ending/centred at index i of series
// into a single scalar, per spec.md §4.4 step 2. series[i] is the raw value
// at the day being evaluated, which may itself be None. AggEMA is not
// handled here: it needs state carried across days, so callers compute it
// once per symbol via emaSeries instead of per day through aggregate.
func aggregate(fn types.AggFunc, series []optional.Option[float64], i, prePeriod, postPeriod int) optional.Option[float64] {
	lo := i - prePeriod
	hi := i + postPeriod

	if lo < 0 || hi >= len(series) {
		return optional.None[float64]()
	}

	if fn == types.AggNone {
		return series[i]
	}

	window := series[lo : hi+1]

	values := make([]float64, 0, len(window))
	for _, s := range window {
		v, err := s.Take()
		if err != nil {
			// Any missing sample inside the window makes the aggregate
			// missing too; partial windows are not silently shortened.
			return optional.None[float64]()
		}

		values = append(values, v)
	}

	switch fn {
	case types.AggSMA, types.AggAvg:
		return optional.Some(mean(values))
	case types.AggMax:
		return optional.Some(max(values))
	case types.AggMin:
		return optional.Some(min(values))
	case types.AggSum:
		return optional.Some(sum(values))
	default:
		return optional.None[float64]()
	}
}

func mean(values []float64) float64 {
	return sum(values) / float64(len(values))
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}

	return total
}

func max(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}

	return m
}

func min(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}

	return m
}

// emaSeries computes one continuous EMA recursion over the whole loaded
// series, seeded at the first non-missing raw sample rather than a fresh
// window-mean on every day (spec.md §9): re-seeding per day forgets the
// accumulated history between calls, which contradicts the worked example
// in spec.md §8.1 (closes [10.0, 10.2, 10.5, 10.1, 9.8] seed ema_5 at the
// first close, 10.0, then recurse forward). alpha follows the teacher's
// pandas-ewm convention, 2/(window+1), with window = prePeriod+postPeriod+1.
func emaSeries(series []optional.Option[float64], prePeriod, postPeriod int) []optional.Option[float64] {
	alpha := 2.0 / float64(prePeriod+postPeriod+2)

	out := make([]optional.Option[float64], len(series))

	var current float64

	seeded := false

	for i, s := range series {
		if v, err := s.Take(); err == nil {
			if !seeded {
				current = v
				seeded = true
			} else {
				current = v*alpha + current*(1-alpha)
			}
		}

		// Unlike the other aggregates, EMA does not wait for a full
		// pre_period of history before emitting: the recursion is already
		// carrying everything seen since the seed. post_period still gates
		// on data not yet available.
		hi := i + postPeriod

		if seeded && hi < len(series) {
			out[i] = optional.Some(current)
		} else {
			out[i] = optional.None[float64]()
		}
	}

	return out
}
