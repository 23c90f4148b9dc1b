package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Usantos1/primecamp-ofc-sub009/internal/pool"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

func openTemp(t *testing.T) *pool.Pool {
	t.Helper()
	cfg := pool.DefaultConfig()
	cfg.HealthCheckInterval = 0
	p, err := Adapter{}.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestClassifyError(t *testing.T) {
	p := openTemp(t)
	ctx := context.Background()
	db := p.DB()
	adapter := Adapter{}

	_, err := db.ExecContext(ctx, `CREATE TABLE clientes (id INTEGER PRIMARY KEY, email TEXT UNIQUE NOT NULL)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO clientes (email) VALUES ('ana@x.com')`)
	require.NoError(t, err)

	t.Run("Unique violation", func(t *testing.T) {
		_, err := db.ExecContext(ctx, `INSERT INTO clientes (email) VALUES ('ana@x.com')`)
		require.Error(t, err)

		classified := adapter.ClassifyError(err)
		var e *types.Error
		require.True(t, errors.As(classified, &e))
		assert.Equal(t, types.CodeConstraintViolation, e.Code)
		assert.Equal(t, "clientes.email", e.Constraint)
	})

	t.Run("Not null violation", func(t *testing.T) {
		_, err := db.ExecContext(ctx, `INSERT INTO clientes (email) VALUES (NULL)`)
		require.Error(t, err)
		assert.True(t, types.IsConstraintViolation(adapter.ClassifyError(err)))
	})

	t.Run("Missing table", func(t *testing.T) {
		_, err := db.ExecContext(ctx, `SELECT * FROM "nao_existe"`)
		require.Error(t, err)
		assert.ErrorIs(t, adapter.ClassifyError(err), types.ErrInvalidIdentifier)
	})

	t.Run("Non sqlite error passes through", func(t *testing.T) {
		in := errors.New("boom")
		assert.Same(t, in, adapter.ClassifyError(in))
	})
}
