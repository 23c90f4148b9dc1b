// Package client provides the tablequery client: builders for table
// queries and procedure calls, run either in process against a database
// or remotely against the table endpoint.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/Usantos1/primecamp-ofc-sub009/internal/adapters/database"
	"github.com/Usantos1/primecamp-ofc-sub009/internal/debug"
	"github.com/Usantos1/primecamp-ofc-sub009/internal/pool"
	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/query/builder"
	"github.com/Usantos1/primecamp-ofc-sub009/query/compiler"
	"github.com/Usantos1/primecamp-ofc-sub009/query/executor"
	"github.com/Usantos1/primecamp-ofc-sub009/query/rpc"
	"github.com/Usantos1/primecamp-ofc-sub009/query/service"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// Version is the client version sent in X-Client-Info.
const Version = "0.4.0"

// Builder types, re-exported so callers only import this package.
type (
	QueryBuilder  = builder.QueryBuilder
	SelectOptions = builder.SelectOptions
	OrderOptions  = builder.OrderOptions
	UpsertOptions = builder.UpsertOptions
)

// Procedures runs procedure calls.
type Procedures interface {
	Call(ctx context.Context, name string, args ast.Record) types.Response
}

// Client creates query builders bound to one backend.
type Client struct {
	runner      builder.Runner
	procedures  Procedures
	middlewares []Middleware
	closer      func() error
	pool        *pool.Pool
	service     *service.QueryService
}

// Config configures a local client.
type Config struct {
	// Provider is "postgresql" or "sqlite".
	Provider string
	// URL is the driver connection string.
	URL string
	// Pool configures the connection pool. A zero value uses
	// pool.DefaultConfig.
	Pool pool.Config
	// Retry replaces the default retry policy.
	Retry *executor.RetryConfig
	// Metrics receives every statement, e.g. a telemetry.Collector.
	Metrics executor.MetricsRecorder
	// Middlewares run around every statement.
	Middlewares []executor.Middleware
	// Procedures serves RPC calls. Without it, RPC calls the database
	// function of the same name.
	Procedures *rpc.Registry
}

// Connect opens a pool for cfg and returns a client running queries in
// process.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	adapter, err := database.ForProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}
	poolCfg := cfg.Pool
	if poolCfg == (pool.Config{}) {
		poolCfg = pool.DefaultConfig()
	}

	p, err := adapter.Open(ctx, cfg.URL, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", adapter.Provider(), err)
	}

	svc, err := NewService(p, adapter, cfg)
	if err != nil {
		p.Close()
		return nil, err
	}

	c := NewLocal(svc, cfg.Procedures)
	c.pool = p
	c.closer = p.Close
	return c, nil
}

// NewService wires a compiler and an executor for an open pool.
func NewService(p *pool.Pool, adapter database.Adapter, cfg Config) (*service.QueryService, error) {
	comp, err := compiler.NewCompiler(adapter.Provider())
	if err != nil {
		return nil, err
	}

	opts := []executor.Option{
		executor.WithClassifier(adapter.ClassifyError),
		executor.WithMiddleware(executor.LoggingMiddleware(debug.Logger())),
	}
	if cfg.Retry != nil {
		opts = append(opts, executor.WithRetry(cfg.Retry))
	}
	if cfg.Metrics != nil {
		opts = append(opts, executor.WithMiddleware(executor.MetricsMiddleware(cfg.Metrics)))
	}
	if len(cfg.Middlewares) > 0 {
		opts = append(opts, executor.WithMiddleware(cfg.Middlewares...))
	}
	return service.NewQueryService(comp, executor.NewExecutor(p, opts...)), nil
}

// NewLocal creates a client over a query service. procs may be nil.
func NewLocal(svc *service.QueryService, procs *rpc.Registry) *Client {
	c := &Client{runner: svc, service: svc}
	if procs != nil {
		c.procedures = procs
	} else {
		c.procedures = svc
	}
	return c
}

// NewRemote creates a client for the table endpoint at baseURL.
func NewRemote(baseURL string, opts ...RemoteOption) (*Client, error) {
	r, err := NewHTTPRunner(baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{runner: r, procedures: r}, nil
}

// Use adds a middleware around every query and procedure call.
func (c *Client) Use(mw Middleware) {
	c.middlewares = append(c.middlewares, mw)
}

// From starts a query on table.
func (c *Client) From(table string) *QueryBuilder {
	return builder.New(runnerFunc(func(ctx context.Context, q *ast.Query) types.Response {
		return c.intercept(ctx, &Event{Table: q.Table, Operation: q.Operation(), Query: q}, func() types.Response {
			return c.runner.Run(ctx, q)
		})
	}), table)
}

// Run runs an already built query, e.g. one decoded from an HTTP request.
func (c *Client) Run(ctx context.Context, q *ast.Query) types.Response {
	return c.intercept(ctx, &Event{Table: q.Table, Operation: q.Operation(), Query: q}, func() types.Response {
		if err := q.Validate(); err != nil {
			return types.Fail(err)
		}
		return c.runner.Run(ctx, q)
	})
}

// RPC calls the procedure name with args.
func (c *Client) RPC(ctx context.Context, name string, args map[string]interface{}) types.Response {
	return c.intercept(ctx, &Event{Table: name, Operation: "rpc"}, func() types.Response {
		return c.procedures.Call(ctx, name, args)
	})
}

// Service returns the query service of a local client, or nil.
func (c *Client) Service() *service.QueryService {
	return c.service
}

// Pool returns the pool of a connected client, or nil.
func (c *Client) Pool() *pool.Pool {
	return c.pool
}

// Ping checks the database of a connected client.
func (c *Client) Ping(ctx context.Context) error {
	if c.pool == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.pool.HealthCheck(ctx)
}

// Close releases the client's pool, if it owns one.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

type runnerFunc func(ctx context.Context, q *ast.Query) types.Response

func (f runnerFunc) Run(ctx context.Context, q *ast.Query) types.Response {
	return f(ctx, q)
}
