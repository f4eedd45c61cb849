// Package gateway implements C2: point lookups of a single (symbol, day,
// table, column) cell against the market-data cache (spec.md §4.2). C3/C4
// resolve every Param down to one of these lookups before evaluation.
package gateway

import (
	"context"
	"time"
)

// Gateway exposes C2's single operation. Every Param ultimately reduces to
// a sequence of Row calls across the window [day-pre_period, day+post_period].
type Gateway interface {
	// Row returns the value of column in table for symbol on day, and
	// whether that cell exists at all (missing vs zero are distinct per
	// spec.md §3 "no such row" rule). A false ok with a nil error means
	// the row/column is absent, not a fault; DataSourceUnavailable is
	// reserved for connectivity/query faults.
	Row(ctx context.Context, symbol string, day time.Time, table, column string) (float64, bool, error)
}
