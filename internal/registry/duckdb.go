package registry

import (
	"context"
	"database/sql"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/quantlab/backtest-engine/internal/logger"
	"github.com/quantlab/backtest-engine/internal/types"
	"github.com/quantlab/backtest-engine/pkg/errors"
)

// LoadFromDuckDB reads the param/indicator/strategy entity tables (and
// their *_param_rel join tables) into an immutable Snapshot, taken once at
// job start per spec.md §5 ("user-editable entity tables are read once at
// job start into an immutable snapshot").
func LoadFromDuckDB(ctx context.Context, db *sql.DB, log *logger.Logger) (*Snapshot, error) {
	sq := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	params, err := loadParams(ctx, sq, db)
	if err != nil {
		return nil, err
	}

	indicators, err := loadIndicators(ctx, sq, db, params)
	if err != nil {
		return nil, err
	}

	strategies, err := loadStrategies(ctx, sq, db, params)
	if err != nil {
		return nil, err
	}

	paramSlice := make([]types.Param, 0, len(params))
	for _, p := range params {
		paramSlice = append(paramSlice, p)
	}

	if log != nil {
		log.Debug("loaded entity snapshot from duckdb")
	}

	return NewSnapshot(paramSlice, indicators, strategies), nil
}

func loadParams(ctx context.Context, sq squirrel.StatementBuilderType, db *sql.DB) (map[string]types.Param, error) {
	rows, err := sq.Select("creator", "name", "data_id", "param_type", "pre_period", "post_period", "agg_func").
		From("param").
		RunWith(db).
		QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to query param table", err)
	}
	defer rows.Close()

	out := make(map[string]types.Param)

	for rows.Next() {
		var p types.Param
		var creator, paramType, aggFunc string

		if err := rows.Scan(&creator, &p.Name, &p.DataID, &paramType, &p.PrePeriod, &p.PostPeriod, &aggFunc); err != nil {
			return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to scan param row", err)
		}

		p.Creator = types.Creator(creator)
		p.Type = types.ParamType(paramType)
		p.AggFunc = types.AggFunc(aggFunc)

		out[p.FQName()] = p
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "error iterating param rows", err)
	}

	return out, nil
}

func loadIndicators(ctx context.Context, sq squirrel.StatementBuilderType, db *sql.DB, params map[string]types.Param) ([]types.Indicator, error) {
	rows, err := sq.Select("creator", "name", "calculation_method").
		From("indicator").
		RunWith(db).
		QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to query indicator table", err)
	}
	defer rows.Close()

	var indicators []types.Indicator

	for rows.Next() {
		var ind types.Indicator
		var creator string

		if err := rows.Scan(&creator, &ind.Name, &ind.CalculationMethod); err != nil {
			return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to scan indicator row", err)
		}

		ind.Creator = types.Creator(creator)
		indicators = append(indicators, ind)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "error iterating indicator rows", err)
	}

	for i := range indicators {
		owned, err := paramFQNamesFor(ctx, sq, db, "indicator_param_rel", "indicator_creator", "indicator_name", indicators[i].Creator, indicators[i].Name)
		if err != nil {
			return nil, err
		}

		indicators[i].Params = resolveParamList(owned, params)
	}

	return indicators, nil
}

func loadStrategies(ctx context.Context, sq squirrel.StatementBuilderType, db *sql.DB, params map[string]types.Param) ([]types.Strategy, error) {
	rows, err := sq.Select("creator", "name", "select_func", "risk_control_func", "scope_kind", "scope_symbol", "scope_index_code",
		"position_count", "rebalance_interval", "buy_fee_rate", "sell_fee_rate").
		From("strategy").
		RunWith(db).
		QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to query strategy table", err)
	}
	defer rows.Close()

	var strategies []types.Strategy

	for rows.Next() {
		var strat types.Strategy
		var creator, scopeKind, scopeSymbol, scopeIndexCode string

		err := rows.Scan(&creator, &strat.Name, &strat.SelectFunc, &strat.RiskControlFunc,
			&scopeKind, &scopeSymbol, &scopeIndexCode,
			&strat.PositionCount, &strat.RebalanceInterval, &strat.BuyFeeRate, &strat.SellFeeRate)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to scan strategy row", err)
		}

		strat.Creator = types.Creator(creator)
		strat.Scope = types.Scope{Kind: types.ScopeKind(scopeKind), Symbol: scopeSymbol, IndexCode: scopeIndexCode}
		strategies = append(strategies, strat)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "error iterating strategy rows", err)
	}

	for i := range strategies {
		owned, err := paramFQNamesFor(ctx, sq, db, "strategy_param_rel", "strategy_creator", "strategy_name", strategies[i].Creator, strategies[i].Name)
		if err != nil {
			return nil, err
		}

		strategies[i].Params = resolveParamList(owned, params)
	}

	return strategies, nil
}

// paramFQNamesFor returns the (param_creator, param_name) pairs joined to
// one owner row in a *_param_rel table, as fqnames.
func paramFQNamesFor(ctx context.Context, sq squirrel.StatementBuilderType, db *sql.DB, relTable, ownerCreatorCol, ownerNameCol string, ownerCreator types.Creator, ownerName string) ([]string, error) {
	rows, err := sq.Select("param_creator", "param_name").
		From(relTable).
		Where(squirrel.Eq{ownerCreatorCol: string(ownerCreator), ownerNameCol: ownerName}).
		RunWith(db).
		QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to query %s", relTable)
	}
	defer rows.Close()

	var fqnames []string

	for rows.Next() {
		var paramCreator, paramName string
		if err := rows.Scan(&paramCreator, &paramName); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to scan %s row", relTable)
		}

		fqnames = append(fqnames, types.FQName(types.Creator(paramCreator), paramName))
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "error iterating %s rows", relTable)
	}

	return fqnames, nil
}

// resolveParamList maps a list of fqnames to already-loaded Param values,
// skipping any that are missing (resolver.Resolve reports MissingParam for
// these at use time, not here).
func resolveParamList(fqnames []string, params map[string]types.Param) []types.Param {
	out := make([]types.Param, 0, len(fqnames))

	for _, fqname := range fqnames {
		if p, ok := params[fqname]; ok {
			out = append(out, p)
		}
	}

	return out
}
