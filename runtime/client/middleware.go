package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// Event describes one query or procedure call made through the client.
type Event struct {
	Table     string     // table, or procedure name for rpc
	Operation string     // select, insert, ..., rpc
	Query     *ast.Query // nil for rpc
	Response  types.Response
	Duration  time.Duration
	Start     time.Time
	End       time.Time
}

// Middleware is a function that intercepts calls
type Middleware func(ctx context.Context, event *Event, next func() types.Response) types.Response

// intercept runs call through the middleware chain
func (c *Client) intercept(ctx context.Context, event *Event, call func() types.Response) types.Response {
	event.Start = time.Now()
	run := func() types.Response {
		resp := call()
		event.End = time.Now()
		event.Duration = event.End.Sub(event.Start)
		event.Response = resp
		return resp
	}

	if len(c.middlewares) == 0 {
		return run()
	}

	var next func() types.Response
	index := 0

	next = func() types.Response {
		if index >= len(c.middlewares) {
			return run()
		}
		middleware := c.middlewares[index]
		index++
		return middleware(ctx, event, next)
	}

	return next()
}

// LoggingMiddleware logs every call at debug level and failures at warn
// level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(ctx context.Context, event *Event, next func() types.Response) types.Response {
		resp := next()
		attrs := []any{
			"table", event.Table,
			"operation", event.Operation,
			"duration", event.Duration,
		}
		if resp.Error != nil {
			logger.WarnContext(ctx, "call failed", append(attrs, "code", resp.Error.Code, "error", resp.Error.Message)...)
		} else {
			logger.DebugContext(ctx, "call completed", attrs...)
		}
		return resp
	}
}

// TimingMiddleware creates a middleware that measures call time
func TimingMiddleware(onTiming func(event *Event)) Middleware {
	return func(ctx context.Context, event *Event, next func() types.Response) types.Response {
		resp := next()
		if onTiming != nil {
			onTiming(event)
		}
		return resp
	}
}

// ErrorMiddleware creates a middleware that handles failed calls
func ErrorMiddleware(onError func(event *Event, err *types.Error)) Middleware {
	return func(ctx context.Context, event *Event, next func() types.Response) types.Response {
		resp := next()
		if resp.Error != nil && onError != nil {
			onError(event, resp.Error)
		}
		return resp
	}
}
