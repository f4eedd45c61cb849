package types

import "github.com/quantlab/backtest-engine/pkg/errors"

// ScopeKind selects the universe a Strategy trades against (spec.md §3).
type ScopeKind string

const (
	ScopeAll         ScopeKind = "all"
	ScopeSingleStock ScopeKind = "single_stock"
	ScopeIndex       ScopeKind = "index"
)

// Scope is the resolved {all | single_stock(sym) | index(ix)} descriptor
// attached to a Strategy.
type Scope struct {
	Kind ScopeKind
	// Symbol is set when Kind == ScopeSingleStock.
	Symbol string
	// IndexCode is set when Kind == ScopeIndex.
	IndexCode string
}

// Strategy is a user-authored select_func + risk_control_func pair with a
// declared scope, sizing, scheduling and fee configuration (spec.md §3).
type Strategy struct {
	Creator Creator
	Name    string

	// SelectFunc is the body of
	// select_func(candidates, params, position_count, current_holdings, day, context) -> target,
	// compiled anew by internal/harness on every call.
	SelectFunc string
	// RiskControlFunc is the body of
	// risk_control_func(current_holdings, params, day, context) -> retained,
	// compiled anew by internal/harness on every call.
	RiskControlFunc string

	Scope Scope

	PositionCount      int
	RebalanceInterval  int
	BuyFeeRate         float64
	SellFeeRate        float64

	// Params are this strategy's declared parameter requirements (via
	// StrategyParamRel in the entity model).
	Params []Param
}

// FQName returns the fully-qualified "<creator>.<name>" identity.
func (s Strategy) FQName() string {
	return FQName(s.Creator, s.Name)
}

// Validate enforces spec.md §8's rebalance_interval boundary and basic
// sizing sanity, returning an InvalidRequest-flavoured error on failure.
func (s Strategy) Validate() error {
	if s.Creator == "" || s.Name == "" {
		return errors.NewKind(errors.KindInvalidRequest, "strategy must have a creator and a name")
	}

	if s.PositionCount <= 0 {
		return errors.NewKindf(errors.KindInvalidRequest, "position_count: >0 required, got %d", s.PositionCount)
	}

	if s.Scope.Kind != ScopeSingleStock && s.RebalanceInterval <= 0 {
		return errors.NewKindf(errors.KindInvalidRequest, "rebalance_interval: >0 required, got %d", s.RebalanceInterval)
	}

	if s.BuyFeeRate < 0 || s.SellFeeRate < 0 {
		return errors.NewKind(errors.KindInvalidRequest, "buy_fee_rate/sell_fee_rate must be >= 0")
	}

	switch s.Scope.Kind {
	case ScopeAll:
	case ScopeSingleStock:
		if s.Scope.Symbol == "" {
			return errors.NewKind(errors.KindInvalidRequest, "scope: single_stock requires a symbol")
		}
	case ScopeIndex:
		if s.Scope.IndexCode == "" {
			return errors.NewKind(errors.KindInvalidRequest, "scope: index requires an index code")
		}
	default:
		return errors.NewKindf(errors.KindInvalidRequest, "scope: unknown kind %q", s.Scope.Kind)
	}

	return nil
}

// EffectiveRebalanceInterval returns the interval actually used by the
// simulation loop: single-stock scope always rebalances daily (spec.md §4.6
// step 3, "scope is single-stock (interval = 1)").
func (s Strategy) EffectiveRebalanceInterval() int {
	if s.Scope.Kind == ScopeSingleStock {
		return 1
	}

	return s.RebalanceInterval
}
