package calendar

import (
	"context"
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/quantlab/backtest-engine/internal/logger"
	"github.com/quantlab/backtest-engine/internal/types"
	"github.com/quantlab/backtest-engine/pkg/errors"
	"go.uber.org/zap"
)

const dateLayout = "20060102"

// DuckDBProvider resolves trading days and universes against a DuckDB
// connection carrying the `trade_cal`, `stock_basic` and `index_member`
// tables (spec.md §6). It is the production Provider; NewInMemoryProvider
// (memory.go) is the test double.
type DuckDBProvider struct {
	db  *sql.DB
	log *logger.Logger
	sq  squirrel.StatementBuilderType
}

// NewDuckDBProvider opens (or attaches to) the DuckDB database at path.
func NewDuckDBProvider(path string, log *logger.Logger) (*DuckDBProvider, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb calendar store", err)
	}

	return &DuckDBProvider{
		db:  db,
		log: log,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// TradingDays implements Provider.
func (p *DuckDBProvider) TradingDays(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	rows, err := p.sq.Select("cal_date").
		From("trade_cal").
		Where(squirrel.Eq{"is_open": true}).
		Where(squirrel.GtOrEq{"cal_date": start.Format(dateLayout)}).
		Where(squirrel.LtOrEq{"cal_date": end.Format(dateLayout)}).
		OrderBy("cal_date ASC").
		RunWith(p.db).
		QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to query trade_cal", err)
	}
	defer rows.Close()

	var days []time.Time

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to scan trade_cal row", err)
		}

		day, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "malformed cal_date in trade_cal", err)
		}

		days = append(days, day)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "error iterating trade_cal", err)
	}

	if len(days) == 0 {
		return nil, errors.NewKindf(errors.KindCalendarUnavailable, "no open trading day in [%s, %s]", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	p.log.Debug("resolved trading days", zap.Int("count", len(days)))

	return days, nil
}

// Universe implements Provider.
func (p *DuckDBProvider) Universe(ctx context.Context, scope types.Scope, day time.Time) (map[string]struct{}, error) {
	switch scope.Kind {
	case types.ScopeSingleStock:
		return map[string]struct{}{scope.Symbol: {}}, nil
	case types.ScopeIndex:
		return p.indexMembers(ctx, scope.IndexCode, day)
	case types.ScopeAll:
		return p.allListed(ctx, day)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unknown scope kind %q", scope.Kind)
	}
}

func (p *DuckDBProvider) allListed(ctx context.Context, day time.Time) (map[string]struct{}, error) {
	dayStr := day.Format(dateLayout)

	rows, err := p.sq.Select("ts_code").
		From("stock_basic").
		Where(squirrel.LtOrEq{"list_date": dayStr}).
		Where(squirrel.Or{
			squirrel.Eq{"delist_date": nil},
			squirrel.Eq{"delist_date": ""},
			squirrel.Gt{"delist_date": dayStr},
		}).
		RunWith(p.db).
		QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to query stock_basic", err)
	}
	defer rows.Close()

	return scanSymbolSet(rows)
}

// indexMembers takes the most recent membership snapshot at or before day,
// per spec.md §4.1 ("membership is monthly; take the most recent ≤ day
// snapshot").
func (p *DuckDBProvider) indexMembers(ctx context.Context, indexCode string, day time.Time) (map[string]struct{}, error) {
	dayStr := day.Format(dateLayout)

	var snapshotDate string

	err := p.sq.Select("MAX(trade_date)").
		From("index_member").
		Where(squirrel.Eq{"index_code": indexCode}).
		Where(squirrel.LtOrEq{"trade_date": dayStr}).
		RunWith(p.db).
		QueryRowContext(ctx).
		Scan(&snapshotDate)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to resolve index_member snapshot", err)
	}

	if snapshotDate == "" {
		return map[string]struct{}{}, nil
	}

	rows, err := p.sq.Select("ts_code").
		From("index_member").
		Where(squirrel.Eq{"index_code": indexCode, "trade_date": snapshotDate}).
		RunWith(p.db).
		QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to query index_member", err)
	}
	defer rows.Close()

	return scanSymbolSet(rows)
}

func scanSymbolSet(rows *sql.Rows) (map[string]struct{}, error) {
	set := make(map[string]struct{})

	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to scan symbol", err)
		}

		set[symbol] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "error iterating symbol rows", err)
	}

	return set, nil
}

// Close releases the underlying DuckDB connection.
func (p *DuckDBProvider) Close() error {
	return p.db.Close()
}
