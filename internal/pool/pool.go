// Package pool provides database connection pooling.
package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Usantos1/primecamp-ofc-sub009/internal/debug"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// Config holds connection pool configuration.
type Config struct {
	// MaxOpenConns is the maximum number of open connections (0 = unlimited).
	MaxOpenConns int `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	// ConnMaxLifetime is the maximum lifetime of a connection.
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	// ConnMaxIdleTime is the maximum idle time of a connection.
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time"`
	// AcquireTimeout bounds how long a checkout waits for a free connection.
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout" yaml:"acquire_timeout"`
	// HealthCheckInterval is how often to run health checks.
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval" yaml:"health_check_interval"`
}

// DefaultConfig returns sensible default pool configuration.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:        25,
		MaxIdleConns:        5,
		ConnMaxLifetime:     30 * time.Minute,
		ConnMaxIdleTime:     10 * time.Minute,
		AcquireTimeout:      5 * time.Second,
		HealthCheckInterval: 1 * time.Minute,
	}
}

// Pool manages database connections with lifecycle management.
type Pool struct {
	db     *sql.DB
	config Config

	// Metrics
	mu              sync.RWMutex
	acquired        int64
	exhausted       int64
	failedChecks    int64
	lastHealthCheck time.Time

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New opens a database and wraps it in a pool.
func New(driverName, dataSourceName string, config Config) (*Pool, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return NewFromDB(db, config), nil
}

// NewFromDB wraps an already opened database. Zero limits keep the
// database/sql defaults.
func NewFromDB(db *sql.DB, config Config) *Pool {
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	if config.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		db:     db,
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}

	// Start health check routine if configured
	if config.HealthCheckInterval > 0 {
		pool.wg.Add(1)
		go pool.healthCheckLoop()
	}

	return pool
}

// DB returns the underlying *sql.DB.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Acquire checks out a dedicated connection. The caller must Close it on
// every path. When no connection frees up within AcquireTimeout, and the
// caller's own context is still live, the error is PoolExhausted.
func (p *Pool) Acquire(ctx context.Context) (*sql.Conn, error) {
	acquireCtx := ctx
	if p.config.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, p.config.AcquireTimeout)
		defer cancel()
	}

	conn, err := p.db.Conn(acquireCtx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			p.mu.Lock()
			p.exhausted++
			p.mu.Unlock()
			debug.Warn("connection pool exhausted", "timeout", p.config.AcquireTimeout, "max_open", p.config.MaxOpenConns)
			return nil, &types.Error{
				Code:    types.CodePoolExhausted,
				Message: "no database connection available",
				Details: fmt.Sprintf("waited %s for one of %d connections", p.config.AcquireTimeout, p.config.MaxOpenConns),
				Cause:   err,
			}
		}
		if ctx.Err() != nil {
			return nil, types.AsError(ctx.Err())
		}
		return nil, types.Wrap(types.CodeUpstreamDriverError, err, "failed to acquire connection")
	}

	p.mu.Lock()
	p.acquired++
	p.mu.Unlock()
	return conn, nil
}

// Stats returns current pool statistics.
func (p *Pool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	dbStats := p.db.Stats()

	return PoolStats{
		MaxOpenConnections: p.config.MaxOpenConns,
		OpenConnections:    dbStats.OpenConnections,
		InUse:              dbStats.InUse,
		Idle:               dbStats.Idle,
		WaitCount:          dbStats.WaitCount,
		WaitDuration:       dbStats.WaitDuration,
		Acquired:           p.acquired,
		Exhausted:          p.exhausted,
		FailedHealthChecks: p.failedChecks,
		LastHealthCheck:    p.lastHealthCheck,
	}
}

// PoolStats represents pool statistics.
type PoolStats struct {
	MaxOpenConnections int           `json:"max_open_connections"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
	Acquired           int64         `json:"acquired"`
	Exhausted          int64         `json:"exhausted"`
	FailedHealthChecks int64         `json:"failed_health_checks"`
	LastHealthCheck    time.Time     `json:"last_health_check"`
}

// HealthCheck performs a health check on the connection pool.
func (p *Pool) HealthCheck(ctx context.Context) error {
	p.mu.Lock()
	p.lastHealthCheck = time.Now()
	p.mu.Unlock()

	if err := p.db.PingContext(ctx); err != nil {
		p.mu.Lock()
		p.failedChecks++
		p.mu.Unlock()
		return fmt.Errorf("health check failed: %w", err)
	}

	return nil
}

// healthCheckLoop runs periodic health checks.
func (p *Pool) healthCheckLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
			if err := p.HealthCheck(ctx); err != nil {
				debug.Warn("pool health check failed", "error", err)
			}
			cancel()
		}
	}
}

// Close closes the pool and waits for background routines to finish.
func (p *Pool) Close() error {
	p.cancel()
	p.wg.Wait()
	return p.db.Close()
}
