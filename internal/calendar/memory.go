package calendar

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quantlab/backtest-engine/internal/types"
	"github.com/quantlab/backtest-engine/pkg/errors"
)

// InMemoryProvider is a Provider backed by preloaded Go maps instead of a
// DuckDB connection. It exists for tests that need deterministic trading
// calendars and universes without a live database.
type InMemoryProvider struct {
	mu sync.RWMutex

	tradingDays []time.Time // sorted ascending

	// listed[day] = symbols listed and not delisted as of day, for ScopeAll.
	listed map[time.Time]map[string]struct{}

	// indexMembers[indexCode][snapshotDay] = member set.
	indexMembers map[string]map[time.Time]map[string]struct{}
}

// NewInMemoryProvider builds an empty provider; use the Set* methods to
// seed it before use.
func NewInMemoryProvider() *InMemoryProvider {
	return &InMemoryProvider{
		listed:       make(map[time.Time]map[string]struct{}),
		indexMembers: make(map[string]map[time.Time]map[string]struct{}),
	}
}

// SetTradingDays replaces the full trading-day calendar.
func (p *InMemoryProvider) SetTradingDays(days []time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sorted := append([]time.Time(nil), days...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	p.tradingDays = sorted
}

// SetListed records the universe snapshot effective on day for ScopeAll.
func (p *InMemoryProvider) SetListed(day time.Time, symbols []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}

	p.listed[day] = set
}

// SetIndexMembers records an index-membership snapshot effective on
// snapshotDay, mirroring the monthly index_member table (spec.md §4.1).
func (p *InMemoryProvider) SetIndexMembers(indexCode string, snapshotDay time.Time, symbols []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}

	if p.indexMembers[indexCode] == nil {
		p.indexMembers[indexCode] = make(map[time.Time]map[string]struct{})
	}

	p.indexMembers[indexCode][snapshotDay] = set
}

// TradingDays implements Provider.
func (p *InMemoryProvider) TradingDays(_ context.Context, start, end time.Time) ([]time.Time, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var days []time.Time

	for _, d := range p.tradingDays {
		if (d.Equal(start) || d.After(start)) && (d.Equal(end) || d.Before(end)) {
			days = append(days, d)
		}
	}

	if len(days) == 0 {
		return nil, errors.NewKindf(errors.KindCalendarUnavailable, "no open trading day in [%s, %s]", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	return days, nil
}

// Universe implements Provider.
func (p *InMemoryProvider) Universe(_ context.Context, scope types.Scope, day time.Time) (map[string]struct{}, error) {
	switch scope.Kind {
	case types.ScopeSingleStock:
		return map[string]struct{}{scope.Symbol: {}}, nil
	case types.ScopeIndex:
		return p.indexSnapshot(scope.IndexCode, day)
	case types.ScopeAll:
		return p.listedSnapshot(day)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unknown scope kind %q", scope.Kind)
	}
}

func (p *InMemoryProvider) listedSnapshot(day time.Time) (map[string]struct{}, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var best time.Time

	found := false

	for d := range p.listed {
		if (d.Equal(day) || d.Before(day)) && (!found || d.After(best)) {
			best = d
			found = true
		}
	}

	if !found {
		return map[string]struct{}{}, nil
	}

	return copySet(p.listed[best]), nil
}

func (p *InMemoryProvider) indexSnapshot(indexCode string, day time.Time) (map[string]struct{}, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snapshots := p.indexMembers[indexCode]
	if len(snapshots) == 0 {
		return map[string]struct{}{}, nil
	}

	var best time.Time

	found := false

	for d := range snapshots {
		if (d.Equal(day) || d.Before(day)) && (!found || d.After(best)) {
			best = d
			found = true
		}
	}

	if !found {
		return map[string]struct{}{}, nil
	}

	return copySet(snapshots[best]), nil
}

func copySet(src map[string]struct{}) map[string]struct{} {
	dst := make(map[string]struct{}, len(src))
	for k := range src {
		dst[k] = struct{}{}
	}

	return dst
}
