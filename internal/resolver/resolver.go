// Package resolver implements C3: closing a strategy's declared params and
// indicators to fixpoint, then producing a cycle-free topological order
// over the indicator DAG (spec.md §4.3).
package resolver

import (
	"fmt"
	"sort"

	"github.com/quantlab/backtest-engine/internal/types"
	"github.com/quantlab/backtest-engine/pkg/errors"
)

// Registry looks up Param/Indicator definitions by fully-qualified name.
// internal/job wires this against whatever store holds user-submitted
// strategy/indicator definitions.
type Registry interface {
	Param(fqname string) (types.Param, bool)
	Indicator(fqname string) (types.Indicator, bool)
}

// Resolution is C3's output.
type Resolution struct {
	// Indicators is the topological order, deepest dependency first.
	Indicators []types.Indicator
	// Params is every param reached by the closure, table- and
	// indicator-typed alike, keyed by fqname.
	Params map[string]types.Param
	// MaxPrePeriod/MaxPostPeriod are the widest windows observed across
	// the closure, used to extend the load window in C4.
	MaxPrePeriod  int
	MaxPostPeriod int
}

// Resolve builds the DAG rooted at strategy's declared params and returns
// its resolution, or a MissingParam/MissingIndicator/CyclicDependency
// error.
func Resolve(reg Registry, strategy types.Strategy) (Resolution, error) {
	params := make(map[string]types.Param)
	indicators := make(map[string]types.Indicator)

	// dependsOn[indicatorFQ] = set of indicator FQs it depends on, for the
	// topological sort below. A table-param contributes no edges.
	dependsOn := make(map[string][]string)

	queue := make([]types.Param, len(strategy.Params))
	copy(queue, strategy.Params)

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		fq := p.FQName()
		if _, seen := params[fq]; seen {
			continue
		}

		params[fq] = p

		if p.Type != types.ParamTypeIndicator {
			continue
		}

		indFQ := p.DataID

		ind, ok := reg.Indicator(indFQ)
		if !ok {
			return Resolution{}, errors.NewKindf(errors.KindMissingIndicator, "indicator %q referenced by param %q is not defined", indFQ, fq)
		}

		if _, seen := indicators[indFQ]; seen {
			continue
		}

		indicators[indFQ] = ind

		for _, childFQ := range childParamFQNames(ind) {
			dependsOn[indFQ] = append(dependsOn[indFQ], childFQ)
		}

		queue = append(queue, ind.Params...)
	}

	// Every param reached by the closure must still be backed by a live
	// registry entry: entities are read-only snapshots (spec.md §3), but a
	// stale fqname left over from a since-deleted Param is MissingParam.
	for fq := range params {
		if _, ok := reg.Param(fq); !ok {
			return Resolution{}, errors.NewKindf(errors.KindMissingParam, "param %q has no backing definition", fq)
		}
	}

	order, err := topoSortIndicators(indicators, dependsOn)
	if err != nil {
		return Resolution{}, err
	}

	res := Resolution{Indicators: order, Params: params}

	for _, p := range params {
		if p.PrePeriod > res.MaxPrePeriod {
			res.MaxPrePeriod = p.PrePeriod
		}

		if p.PostPeriod > res.MaxPostPeriod {
			res.MaxPostPeriod = p.PostPeriod
		}
	}

	return res, nil
}

// childParamFQNames returns the DataIDs (the referenced indicators' FQNs)
// of the indicator-typed params an indicator depends on, used to build the
// DAG's edges.
func childParamFQNames(ind types.Indicator) []string {
	var out []string

	for _, p := range ind.Params {
		if p.Type == types.ParamTypeIndicator {
			out = append(out, p.DataID)
		}
	}

	return out
}

// topoSortIndicators runs Kahn's algorithm over the indicator dependency
// graph, where dependsOn[fq] lists the indicators fq needs evaluated
// first. Any node left unvisited once the queue drains lies on a cycle.
func topoSortIndicators(indicators map[string]types.Indicator, dependsOn map[string][]string) ([]types.Indicator, error) {
	// dependents is the reverse edge set: dependents[dep] = fqnames that
	// become ready once dep is visited.
	dependents := make(map[string][]string)
	inDegree := make(map[string]int, len(indicators))

	for fq := range indicators {
		inDegree[fq] = len(dependsOn[fq])
	}

	for fq, deps := range dependsOn {
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], fq)
		}
	}

	var ready []string

	for fq, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, fq)
		}
	}

	sort.Strings(ready)

	var order []types.Indicator

	visited := make(map[string]bool, len(indicators))

	for len(ready) > 0 {
		fq := ready[0]
		ready = ready[1:]

		order = append(order, indicators[fq])
		visited[fq] = true

		var freed []string

		for _, dependent := range dependents[fq] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				freed = append(freed, dependent)
			}
		}

		sort.Strings(freed)
		ready = append(ready, freed...)
	}

	if len(order) != len(indicators) {
		var cycle []string

		for fq := range indicators {
			if !visited[fq] {
				cycle = append(cycle, fq)
			}
		}

		sort.Strings(cycle)

		return nil, errors.NewKindf(errors.KindCyclicDependency, "cyclic indicator dependency: %s", fmt.Sprint(cycle))
	}

	// Kahn's algorithm already visits zero-in-degree (no further
	// dependency) nodes first, so order is deepest dependency first,
	// matching spec.md §4.3 "deepest first".
	return order, nil
}
