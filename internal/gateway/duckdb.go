package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/quantlab/backtest-engine/internal/logger"
	"github.com/quantlab/backtest-engine/pkg/errors"
	"go.uber.org/zap"
)

const gatewayDateLayout = "20060102"

// DuckDBGateway serves Row lookups against per-table DuckDB views, one per
// (table) name, keyed on a (symbol, trade_date) pair. Statements are
// prepared once per (table, column) and cached, mirroring the teacher's
// prepared-statement reuse in its DuckDB datasource.
type DuckDBGateway struct {
	db  *sql.DB
	log *logger.Logger

	mu    sync.Mutex
	stmts map[string]*sql.Stmt
}

// NewDuckDBGateway opens a DuckDB connection at path. The tables queried
// through Row (daily, index_daily, etc.) must already exist in it.
func NewDuckDBGateway(path string, log *logger.Logger) (*DuckDBGateway, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb gateway store", err)
	}

	return &DuckDBGateway{
		db:    db,
		log:   log,
		stmts: make(map[string]*sql.Stmt),
	}, nil
}

// Row implements Gateway.
func (g *DuckDBGateway) Row(ctx context.Context, symbol string, day time.Time, table, column string) (float64, bool, error) {
	stmt, err := g.preparedFor(table, column)
	if err != nil {
		return 0, false, err
	}

	var value sql.NullFloat64

	err = stmt.QueryRowContext(ctx, symbol, day.Format(gatewayDateLayout)).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}

	if err != nil {
		g.log.Error("gateway row lookup failed", zap.String("table", table), zap.String("column", column), zap.Error(err))
		return 0, false, errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to query %s.%s", table, column)
	}

	if !value.Valid {
		return 0, false, nil
	}

	return value.Float64, true, nil
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (g *DuckDBGateway) preparedFor(table, column string) (*sql.Stmt, error) {
	if !identPattern.MatchString(table) || !identPattern.MatchString(column) {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "invalid table/column identifier %q/%q", table, column)
	}

	key := table + "." + column

	g.mu.Lock()
	defer g.mu.Unlock()

	if stmt, ok := g.stmts[key]; ok {
		return stmt, nil
	}

	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE ts_code = $1 AND trade_date = $2 LIMIT 1`,
		quoteIdent(column), quoteIdent(table),
	)

	stmt, err := g.db.Prepare(query)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to prepare statement for %s", key)
	}

	g.stmts[key] = stmt

	return stmt, nil
}

// quoteIdent quotes an identifier already validated by identPattern, so it
// can be used unescaped (e.g. a reserved word) as a table/column name.
func quoteIdent(ident string) string {
	return `"` + ident + `"`
}

// Close releases the underlying DuckDB connection and cached statements.
func (g *DuckDBGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, stmt := range g.stmts {
		_ = stmt.Close()
	}

	return g.db.Close()
}
