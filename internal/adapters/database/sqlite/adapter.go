// Package sqlite implements the SQLite database adapter.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/Usantos1/primecamp-ofc-sub009/internal/pool"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// Adapter opens SQLite pools and classifies go-sqlite3 errors.
type Adapter struct{}

// Provider returns the provider name.
func (Adapter) Provider() string {
	return "sqlite"
}

// Open creates a pool over a SQLite file (or ":memory:"), pings it and
// enables foreign keys.
func (Adapter) Open(ctx context.Context, url string, config pool.Config) (*pool.Pool, error) {
	url = strings.TrimPrefix(url, "file://")
	if url == ":memory:" {
		// Every pooled connection must see the same in-memory database.
		url = "file::memory:?cache=shared"
	}

	p, err := pool.New("sqlite3", url, config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := p.DB().PingContext(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Enable foreign keys (disabled by default in SQLite)
	if _, err := p.DB().ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return p, nil
}

// ClassifyError maps a sqlite3.Error to the error taxonomy.
func (Adapter) ClassifyError(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}

	msg := sqliteErr.Error()
	switch {
	case sqliteErr.Code == sqlite3.ErrConstraint:
		e := &types.Error{
			Code:    types.CodeConstraintViolation,
			Message: msg,
			Cause:   err,
		}
		// "UNIQUE constraint failed: clientes.email"
		if i := strings.Index(msg, "constraint failed: "); i >= 0 {
			e.Constraint = msg[i+len("constraint failed: "):]
		}
		return e
	case sqliteErr.Code == sqlite3.ErrBusy, sqliteErr.Code == sqlite3.ErrLocked:
		return &types.Error{Code: types.CodePoolExhausted, Message: msg, Cause: err}
	case strings.HasPrefix(msg, "no such table"), strings.HasPrefix(msg, "no such column"):
		return &types.Error{Code: types.CodeInvalidIdentifier, Message: msg, Cause: err}
	default:
		return &types.Error{Code: types.CodeUpstreamDriverError, Message: msg, Cause: err}
	}
}
