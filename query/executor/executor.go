// Package executor runs compiled statements against a connection pool and
// shapes the rows into a response envelope.
package executor

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Usantos1/primecamp-ofc-sub009/internal/pool"
	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/query/sqlgen"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// Executor executes statements on pooled connections.
type Executor struct {
	pool        *pool.Pool
	classify    Classifier
	retry       *RetryConfig
	middlewares []Middleware
}

// Option configures an Executor.
type Option func(*Executor)

// WithClassifier installs the adapter's driver error classifier.
func WithClassifier(c Classifier) Option {
	return func(e *Executor) {
		e.classify = c
	}
}

// WithRetry replaces the retry configuration.
func WithRetry(cfg *RetryConfig) Option {
	return func(e *Executor) {
		e.retry = cfg
	}
}

// WithMiddleware appends middlewares to the chain.
func WithMiddleware(mws ...Middleware) Option {
	return func(e *Executor) {
		e.middlewares = append(e.middlewares, mws...)
	}
}

// NewExecutor creates a new executor over p.
func NewExecutor(p *pool.Pool, opts ...Option) *Executor {
	e := &Executor{
		pool:  p,
		retry: DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Use adds a middleware to the chain
func (e *Executor) Use(mw Middleware) {
	e.middlewares = append(e.middlewares, mw)
}

// Run executes stmt and returns the envelope. The connection is released on
// every path. In single modes the row count is checked: Single requires
// exactly one row, MaybeSingle accepts zero (data null) or one.
func (e *Executor) Run(ctx context.Context, stmt *sqlgen.Query, mode ast.Mode) types.Response {
	if stmt == nil {
		return types.Fail(types.Errorf(types.CodeInvalidPayload, "nil statement"))
	}

	var data interface{}
	err := e.withRetry(ctx, stmt, func() error {
		var err error
		data, err = e.runOnce(ctx, stmt, mode)
		return err
	})
	if err != nil {
		return types.Fail(err)
	}
	return types.OK(data)
}

// Count executes a count(*) statement.
func (e *Executor) Count(ctx context.Context, stmt *sqlgen.Query) (int64, error) {
	var n int64
	err := e.withRetry(ctx, stmt, func() error {
		return e.intercept(ctx, stmt, func(event *QueryEvent) error {
			conn, err := e.pool.Acquire(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := conn.QueryRowContext(ctx, stmt.SQL, stmt.Args...).Scan(&n); err != nil {
				return e.classifyError(ctx, err)
			}
			event.Rows = 1
			return nil
		})
	})
	if err != nil {
		return 0, types.AsError(err)
	}
	return n, nil
}

func (e *Executor) runOnce(ctx context.Context, stmt *sqlgen.Query, mode ast.Mode) (interface{}, error) {
	var data interface{}
	err := e.intercept(ctx, stmt, func(event *QueryEvent) error {
		conn, err := e.pool.Acquire(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		if !stmt.Rows {
			res, err := conn.ExecContext(ctx, stmt.SQL, stmt.Args...)
			if err != nil {
				return e.classifyError(ctx, err)
			}
			if n, err := res.RowsAffected(); err == nil {
				event.Rows = int(n)
			}
			return nil
		}

		if mode.IsSingular() && !stmt.Read {
			data, err = e.runSingleMutation(ctx, conn, stmt, mode, event)
			return err
		}

		rows, err := e.query(ctx, conn, stmt)
		if err != nil {
			return err
		}
		event.Rows = len(rows)
		data, err = shape(rows, mode)
		return err
	})
	return data, err
}

// runSingleMutation runs a returning mutation inside a one-statement
// transaction so that a failed row check leaves no trace.
func (e *Executor) runSingleMutation(ctx context.Context, conn *sql.Conn, stmt *sqlgen.Query, mode ast.Mode, event *QueryEvent) (interface{}, error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, e.classifyError(ctx, err)
	}

	rows, err := scanAll(tx.QueryContext(ctx, stmt.SQL, stmt.Args...))
	if err != nil {
		_ = tx.Rollback()
		return nil, e.classifyError(ctx, err)
	}
	event.Rows = len(rows)

	data, err := shape(rows, mode)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return nil, e.classifyError(ctx, rbErr)
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, e.classifyError(ctx, err)
	}
	return data, nil
}

func (e *Executor) query(ctx context.Context, conn *sql.Conn, stmt *sqlgen.Query) ([]map[string]interface{}, error) {
	rows, err := scanAll(conn.QueryContext(ctx, stmt.SQL, stmt.Args...))
	if err != nil {
		return nil, e.classifyError(ctx, err)
	}
	return rows, nil
}

// shape turns rows into the envelope data for the mode.
func shape(rows []map[string]interface{}, mode ast.Mode) (interface{}, error) {
	switch mode {
	case ast.ModeSingle:
		if len(rows) != 1 {
			return nil, notExactlyOne(len(rows))
		}
		return rows[0], nil
	case ast.ModeMaybeSingle:
		switch len(rows) {
		case 0:
			return nil, nil
		case 1:
			return rows[0], nil
		default:
			return nil, notExactlyOne(len(rows))
		}
	default:
		return rows, nil
	}
}

func notExactlyOne(n int) error {
	return &types.Error{
		Code:    types.CodeNotExactlyOneRow,
		Message: "JSON object requested, multiple (or no) rows returned",
		Details: fmt.Sprintf("The result contains %d rows", n),
	}
}
