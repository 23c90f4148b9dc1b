// Package database selects the database adapter for a provider.
package database

import (
	"context"
	"fmt"

	"github.com/Usantos1/primecamp-ofc-sub009/internal/adapters/database/postgres"
	"github.com/Usantos1/primecamp-ofc-sub009/internal/adapters/database/sqlite"
	"github.com/Usantos1/primecamp-ofc-sub009/internal/pool"
)

// Adapter defines the database adapter interface.
type Adapter interface {
	// Provider returns the canonical provider name understood by the
	// compiler.
	Provider() string

	// Open creates a connection pool and checks the connection.
	Open(ctx context.Context, url string, config pool.Config) (*pool.Pool, error)

	// ClassifyError maps a driver error to the error taxonomy. Errors the
	// adapter does not recognize are returned unchanged.
	ClassifyError(err error) error
}

// ForProvider returns the adapter for a provider name.
func ForProvider(provider string) (Adapter, error) {
	switch provider {
	case "postgres", "postgresql", "":
		return postgres.Adapter{}, nil
	case "sqlite", "sqlite3":
		return sqlite.Adapter{}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
