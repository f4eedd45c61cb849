package types

import (
	"fmt"

	"github.com/quantlab/backtest-engine/pkg/errors"
)

// ParamType distinguishes a Param backed directly by a market-data column
// from one backed by another user's Indicator output.
type ParamType string

const (
	ParamTypeTable     ParamType = "table"
	ParamTypeIndicator ParamType = "indicator"
)

// AggFunc is how a multi-day window collapses to a scalar (spec.md §3).
type AggFunc string

const (
	AggNone AggFunc = "NONE"
	AggSMA  AggFunc = "SMA"
	AggEMA  AggFunc = "EMA"
	AggMax  AggFunc = "MAX"
	AggMin  AggFunc = "MIN"
	AggSum  AggFunc = "SUM"
	AggAvg  AggFunc = "AVG" // synonym of SMA (spec.md §4.4 Step 2)
)

// Param is a typed parameter requirement declared by a Strategy or an
// Indicator against the market data cache or another Indicator's output.
type Param struct {
	Creator Creator
	Name    string

	// DataID is "<table>.<column>" when Type == ParamTypeTable, or
	// "<creator>.<indicator_name>" when Type == ParamTypeIndicator.
	DataID string
	Type   ParamType

	PrePeriod  int
	PostPeriod int
	AggFunc    AggFunc
}

// FQName returns the fully-qualified "<creator>.<name>" identity used to key
// the value panel and parameter views.
func (p Param) FQName() string {
	return FQName(p.Creator, p.Name)
}

// IsZeroWindow reports whether this param denotes a same-day value with no
// look-back/look-ahead window (spec.md §3 invariant).
func (p Param) IsZeroWindow() bool {
	return p.PrePeriod == 0 && p.PostPeriod == 0
}

// Validate enforces the §3 invariants for a Param definition.
func (p Param) Validate() error {
	if p.Creator == "" || p.Name == "" {
		return errors.New(errors.ErrCodeInvalidParameter, "param must have a creator and a name")
	}

	if p.PrePeriod < 0 || p.PostPeriod < 0 {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "param %s: pre_period/post_period must be >= 0", p.FQName())
	}

	if p.AggFunc == AggNone && !p.IsZeroWindow() {
		return errors.Newf(errors.ErrCodeInvalidAggFunc, "param %s: agg_func NONE is only valid when pre_period=0 and post_period=0", p.FQName())
	}

	switch p.Type {
	case ParamTypeTable, ParamTypeIndicator:
	default:
		return errors.Newf(errors.ErrCodeInvalidType, "param %s: unknown param_type %q", p.FQName(), p.Type)
	}

	if p.DataID == "" {
		return errors.Newf(errors.ErrCodeInvalidParameter, "param %s: data_id must not be empty", p.FQName())
	}

	return nil
}

// TableColumn splits a table-param's DataID into its table and column parts.
// Only meaningful when Type == ParamTypeTable.
func (p Param) TableColumn() (table, column string, err error) {
	for i := 0; i < len(p.DataID); i++ {
		if p.DataID[i] == '.' {
			return p.DataID[:i], p.DataID[i+1:], nil
		}
	}

	return "", "", fmt.Errorf("param %s: data_id %q is not of the form <table>.<column>", p.FQName(), p.DataID)
}
