package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/Usantos1/primecamp-ofc-sub009/query/sqlgen"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// QueryEvent represents a statement execution event
type QueryEvent struct {
	Table     string
	Operation string
	Query     string
	Args      []interface{}
	Rows      int // rows returned or affected
	Duration  time.Duration
	Error     error
	Start     time.Time
	End       time.Time
}

// Middleware is a function that intercepts statements
type Middleware func(ctx context.Context, event *QueryEvent, next func() error) error

// intercept runs exec through the middleware chain
func (e *Executor) intercept(ctx context.Context, stmt *sqlgen.Query, exec func(event *QueryEvent) error) error {
	event := &QueryEvent{
		Table:     stmt.Table,
		Operation: stmt.Operation,
		Query:     stmt.SQL,
		Args:      stmt.Args,
		Start:     time.Now(),
	}

	run := func() error {
		err := exec(event)
		event.End = time.Now()
		event.Duration = event.End.Sub(event.Start)
		event.Error = err
		return err
	}

	if len(e.middlewares) == 0 {
		return run()
	}

	var next func() error
	index := 0

	next = func() error {
		if index >= len(e.middlewares) {
			// Last middleware, execute the actual statement
			return run()
		}

		middleware := e.middlewares[index]
		index++
		return middleware(ctx, event, next)
	}

	return next()
}

// LoggingMiddleware logs every statement at debug level and failures at
// warn level. Argument values are not logged.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		attrs := []any{
			"table", event.Table,
			"operation", event.Operation,
			"sql", event.Query,
			"args", len(event.Args),
			"rows", event.Rows,
			"duration", event.Duration,
		}
		if err != nil {
			logger.WarnContext(ctx, "statement failed", append(attrs, "code", types.CodeOf(err), "error", err)...)
		} else {
			logger.DebugContext(ctx, "statement executed", attrs...)
		}
		return err
	}
}

// TimingMiddleware creates a middleware that measures statement execution time
func TimingMiddleware(onTiming func(event *QueryEvent)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if onTiming != nil {
			onTiming(event)
		}
		return err
	}
}

// ErrorMiddleware creates a middleware that handles errors
func ErrorMiddleware(onError func(event *QueryEvent, err error)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if err != nil && onError != nil {
			onError(event, err)
		}
		return err
	}
}

// MetricsRecorder records statement metrics.
type MetricsRecorder interface {
	RecordQuery(table, operation string, duration time.Duration, rows int, code types.Code)
}

// MetricsMiddleware reports every statement to recorder.
func MetricsMiddleware(recorder MetricsRecorder) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		recorder.RecordQuery(event.Table, event.Operation, event.Duration, event.Rows, types.CodeOf(err))
		return err
	}
}
