package executor

import (
	"context"
	"math/rand"
	"time"

	"github.com/Usantos1/primecamp-ofc-sub009/internal/debug"
	"github.com/Usantos1/primecamp-ofc-sub009/query/sqlgen"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts" yaml:"max_attempts"`   // Total attempts, including the first
	InitialDelay  time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"` // Delay before the first retry
	MaxDelay      time.Duration `mapstructure:"max_delay" yaml:"max_delay"`         // Maximum delay between retries
	BackoffFactor float64       `mapstructure:"backoff_factor" yaml:"backoff_factor"`
	Jitter        bool          `mapstructure:"jitter" yaml:"jitter"` // Add randomness to delay
}

// DefaultRetryConfig returns the default: one retry after 50ms.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   2,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// NoRetry disables retries.
func NoRetry() *RetryConfig {
	return &RetryConfig{MaxAttempts: 1}
}

// shouldRetry decides whether a failed attempt may be replayed. Pool
// exhaustion never reached the database, so it is always safe. Other driver
// failures are replayed for reads only; a mutation may already have been
// applied.
func shouldRetry(stmt *sqlgen.Query, err error) bool {
	switch types.CodeOf(err) {
	case types.CodePoolExhausted:
		return true
	case types.CodeUpstreamDriverError:
		return stmt.Read
	default:
		return false
	}
}

// withRetry executes fn with retry logic
func (e *Executor) withRetry(ctx context.Context, stmt *sqlgen.Query, fn func() error) error {
	config := e.retry
	if config == nil || config.MaxAttempts < 1 {
		config = NoRetry()
	}

	delay := config.InitialDelay
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt >= config.MaxAttempts || ctx.Err() != nil || !shouldRetry(stmt, err) {
			return err
		}

		// Apply jitter if enabled
		actualDelay := delay
		if config.Jitter && delay > 0 {
			// Add ±25% jitter
			jitterRange := delay / 4
			if jitterRange > 0 {
				jitterAmount := time.Duration(rand.Int63n(int64(jitterRange) * 2))
				actualDelay = delay - jitterRange + jitterAmount
			}
		}

		debug.Debug("retrying statement",
			"table", stmt.Table,
			"operation", stmt.Operation,
			"attempt", attempt+1,
			"delay", actualDelay,
			"error", err,
		)

		// Wait with context awareness
		timer := time.NewTimer(actualDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return types.AsError(ctx.Err())
		}

		// Calculate next delay with exponential backoff
		delay = time.Duration(float64(delay) * config.BackoffFactor)
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}
}
