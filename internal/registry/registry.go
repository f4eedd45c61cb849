// Package registry implements the immutable entity snapshot of spec.md §5:
// "the user-editable entity tables are read once at job start into an
// immutable snapshot; concurrent CRUD mutations are not observed by the
// running job."
package registry

import (
	"github.com/quantlab/backtest-engine/internal/types"
	"github.com/quantlab/backtest-engine/pkg/errors"
)

// Snapshot is a read-only, in-memory view of every Param/Indicator/Strategy
// definition as of the moment it was taken. It implements
// internal/resolver.Registry.
type Snapshot struct {
	params     map[string]types.Param
	indicators map[string]types.Indicator
	strategies map[string]types.Strategy
}

// NewSnapshot builds a Snapshot from already-loaded entity slices.
func NewSnapshot(params []types.Param, indicators []types.Indicator, strategies []types.Strategy) *Snapshot {
	s := &Snapshot{
		params:     make(map[string]types.Param, len(params)),
		indicators: make(map[string]types.Indicator, len(indicators)),
		strategies: make(map[string]types.Strategy, len(strategies)),
	}

	for _, p := range params {
		s.params[p.FQName()] = p
	}

	for _, ind := range indicators {
		s.indicators[ind.FQName()] = ind

		// An indicator's own params are addressable the same way a
		// strategy's declared params are: by fqname.
		for _, p := range ind.Params {
			s.params[p.FQName()] = p
		}
	}

	for _, strat := range strategies {
		s.strategies[strat.FQName()] = strat

		for _, p := range strat.Params {
			s.params[p.FQName()] = p
		}
	}

	return s
}

// Param implements resolver.Registry.
func (s *Snapshot) Param(fqname string) (types.Param, bool) {
	p, ok := s.params[fqname]
	return p, ok
}

// Indicator implements resolver.Registry.
func (s *Snapshot) Indicator(fqname string) (types.Indicator, bool) {
	ind, ok := s.indicators[fqname]
	return ind, ok
}

// Strategy looks up a strategy by its fqname within this snapshot.
func (s *Snapshot) Strategy(fqname string) (types.Strategy, bool) {
	strat, ok := s.strategies[fqname]
	return strat, ok
}

// MustStrategy looks up a strategy or returns InvalidRequest, for job
// submission where the (creator, name) pair came straight off the wire.
func (s *Snapshot) MustStrategy(fqname string) (types.Strategy, error) {
	strat, ok := s.strategies[fqname]
	if !ok {
		return types.Strategy{}, errors.NewKindf(errors.KindInvalidRequest, "strategy %q not found", fqname)
	}

	return strat, nil
}
