// Package engine executes statements inside bounded, tenant-scoped
// transactions on a pooled PostgreSQL connection.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sseshaheen/sheenapps-query-gateway/internal/domain"
	"github.com/sseshaheen/sheenapps-query-gateway/internal/sqlgen"
)

// SQLSTATE raised when statement_timeout cancels a query server-side.
const sqlstateQueryCanceled = "57014"

// Pool is the subset of pgxpool.Pool the engine uses.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ Pool = (*pgxpool.Pool)(nil)

// Options bound every execution.
type Options struct {
	// StatementTimeoutMs cancels the statement at the database when
	// exceeded. Applied with SET LOCAL — the setting only takes effect
	// inside a transaction.
	StatementTimeoutMs int
	// MaxResultRows caps returned rows independent of any caller limit.
	MaxResultRows int
}

// Result holds the rows produced by one statement.
type Result struct {
	Columns      []string
	Rows         [][]interface{}
	RowsAffected int64
	Truncated    bool
}

// Engine runs statements one transaction per request. Connections are pooled
// and reused across tenants, so per-request settings are applied with
// transaction scope only — never session scope.
type Engine struct {
	pool Pool
	opts Options
}

// New creates an Engine on the given pool.
func New(pool Pool, opts Options) *Engine {
	return &Engine{pool: pool, opts: opts}
}

// Execute runs a generated statement scoped to the tenant's schema. The
// transaction commits for read-write statements and rolls back for read-only
// ones. A statement cancelled by the database timeout surfaces as TIMEOUT.
func (e *Engine) Execute(ctx context.Context, schema string, stmt *sqlgen.Statement) (*Result, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal(err, "acquire connection")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := e.scopeTx(ctx, tx, schema); err != nil {
		return nil, err
	}

	var result *Result
	if stmt.ReturnsRows {
		result, err = e.collectRows(ctx, tx, stmt.SQL, stmt.Args)
	} else {
		var tag pgconn.CommandTag
		tag, err = tx.Exec(ctx, stmt.SQL, stmt.Args...)
		if err == nil {
			result = &Result{RowsAffected: tag.RowsAffected()}
		}
	}
	if err != nil {
		return nil, mapExecError(err)
	}

	if stmt.ReadOnly {
		// Nothing to persist; the deferred rollback releases the tx.
		return result, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, mapExecError(err)
	}
	return result, nil
}

// ExecuteReadOnly runs raw SQL (the inspected ad-hoc path) and always rolls
// back, regardless of success.
func (e *Engine) ExecuteReadOnly(ctx context.Context, schema, sql string) (*Result, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, domain.ErrInternal(err, "acquire connection")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := e.scopeTx(ctx, tx, schema); err != nil {
		return nil, err
	}
	result, err := e.collectRows(ctx, tx, sql, nil)
	if err != nil {
		return nil, mapExecError(err)
	}
	return result, nil
}

// scopeTx applies the tenant's schema and the statement timeout to this
// transaction only. The schema name comes from validated metadata, never
// from the caller.
func (e *Engine) scopeTx(ctx context.Context, tx pgx.Tx, schema string) error {
	setPath := fmt.Sprintf("SET LOCAL search_path TO %s", sqlgen.QuoteIdentifier(schema))
	if _, err := tx.Exec(ctx, setPath); err != nil {
		return domain.ErrInternal(err, "scope transaction")
	}
	setTimeout := "SET LOCAL statement_timeout = " + strconv.Itoa(e.opts.StatementTimeoutMs)
	if _, err := tx.Exec(ctx, setTimeout); err != nil {
		return domain.ErrInternal(err, "set statement timeout")
	}
	return nil
}

func (e *Engine) collectRows(ctx context.Context, tx pgx.Tx, sql string, args []interface{}) (*Result, error) {
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	result := &Result{Columns: columns}
	for rows.Next() {
		if len(result.Rows) >= e.opts.MaxResultRows {
			result.Truncated = true
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, values)
	}
	rows.Close()
	if err := rows.Err(); err != nil && !result.Truncated {
		return nil, err
	}
	result.RowsAffected = int64(len(result.Rows))
	return result, nil
}

// mapExecError translates database failures into gateway errors. Raw driver
// messages never reach callers.
func mapExecError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == sqlstateQueryCanceled {
		return domain.ErrTimeout("statement exceeded the execution timeout and was cancelled")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrTimeout("statement exceeded the execution timeout and was cancelled")
	}
	return domain.ErrInternal(err, "statement execution failed")
}
