// Package calendar implements C1: trading-day enumeration and universe/scope
// expansion (spec.md §4.1).
package calendar

import (
	"context"
	"time"

	"github.com/quantlab/backtest-engine/internal/types"
)

// Provider exposes C1's two operations against the market-data cache.
type Provider interface {
	// TradingDays returns the ordered trading days in [start, end], inclusive.
	TradingDays(ctx context.Context, start, end time.Time) ([]time.Time, error)
	// Universe returns the candidate symbol set for a scope on a given day.
	Universe(ctx context.Context, scope types.Scope, day time.Time) (map[string]struct{}, error)
}
