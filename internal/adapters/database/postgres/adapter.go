// Package postgres implements the PostgreSQL database adapter.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Usantos1/primecamp-ofc-sub009/internal/pool"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// Adapter opens PostgreSQL pools and classifies lib/pq errors.
type Adapter struct{}

// Provider returns the provider name.
func (Adapter) Provider() string {
	return "postgres"
}

// Open creates a pool and pings the server.
func (Adapter) Open(ctx context.Context, url string, config pool.Config) (*pool.Pool, error) {
	p, err := pool.New("postgres", url, config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := p.DB().PingContext(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return p, nil
}

// ClassifyError maps a *pq.Error to the error taxonomy. SQLSTATE class 23
// (integrity constraint violation) becomes ConstraintViolation with the
// constraint name; undefined table or column becomes InvalidIdentifier.
// Other errors are returned unchanged.
func (Adapter) ClassifyError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch {
	case pqErr.Code.Class() == "23":
		return &types.Error{
			Code:       types.CodeConstraintViolation,
			Message:    pqErr.Message,
			Details:    pqErr.Detail,
			Hint:       pqErr.Hint,
			Constraint: pqErr.Constraint,
			Cause:      err,
		}
	case pqErr.Code == "42P01", pqErr.Code == "42703", pqErr.Code == "42883":
		return &types.Error{
			Code:    types.CodeInvalidIdentifier,
			Message: pqErr.Message,
			Hint:    pqErr.Hint,
			Cause:   err,
		}
	case pqErr.Code.Class() == "53" || pqErr.Code == "57P03":
		// insufficient resources, cannot connect now
		return &types.Error{
			Code:    types.CodePoolExhausted,
			Message: pqErr.Message,
			Details: string(pqErr.Code),
			Cause:   err,
		}
	default:
		return &types.Error{
			Code:    types.CodeUpstreamDriverError,
			Message: pqErr.Message,
			Details: pqErr.Detail,
			Hint:    pqErr.Hint,
			Cause:   err,
		}
	}
}
