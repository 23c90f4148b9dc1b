package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Usantos1/primecamp-ofc-sub009/internal/pool"
	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/query/compiler"
	"github.com/Usantos1/primecamp-ofc-sub009/query/executor"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

func newMockService(t *testing.T) (*QueryService, sqlmock.Sqlmock) {
	return newService(t, true)
}

// newService builds a service over sqlmock. Tests whose statements race
// each other pass strict=false, since a canceled sibling may never run.
func newService(t *testing.T, strict bool) (*QueryService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)

	p := pool.NewFromDB(db, pool.Config{MaxOpenConns: 4, MaxIdleConns: 4, AcquireTimeout: time.Second})
	t.Cleanup(func() {
		if strict {
			assert.NoError(t, mock.ExpectationsWereMet())
		}
		_ = p.Close()
	})

	c, err := compiler.NewCompiler("postgres")
	require.NoError(t, err)
	return NewQueryService(c, executor.NewExecutor(p, executor.WithRetry(executor.NoRetry()))), mock
}

func intPtr(n int) *int { return &n }

func pageQuery(count ast.CountMode) *ast.Query {
	return &ast.Query{
		Table:    "clientes",
		Filters:  []ast.Predicate{{Column: "situacao", Operator: ast.OpEq, Value: "ativo"}},
		Ordering: []ast.Ordering{{Column: "nome", Direction: ast.Asc}},
		Limit:    intPtr(10),
		Offset:   intPtr(0),
		Count:    count,
	}
}

const (
	pageSQL  = `SELECT * FROM "clientes" WHERE "situacao" = $1 ORDER BY "nome" ASC LIMIT 10 OFFSET 0`
	countSQL = `SELECT count(*) FROM "clientes" WHERE "situacao" = $1`
)

func TestRunWithExactCount(t *testing.T) {
	svc, mock := newMockService(t)

	rows := sqlmock.NewRows([]string{"id"})
	for i := 1; i <= 10; i++ {
		rows.AddRow(int64(i))
	}
	mock.ExpectQuery(pageSQL).WithArgs("ativo").WillReturnRows(rows)
	mock.ExpectQuery(countSQL).WithArgs("ativo").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(25)))

	resp := svc.Run(context.Background(), pageQuery(ast.CountExact))
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Count)
	assert.Equal(t, int64(25), *resp.Count)
	assert.Len(t, resp.Rows(), 10)
}

func TestRunWithoutCount(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectQuery(pageSQL).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	resp := svc.Run(context.Background(), pageQuery(ast.CountNone))
	require.Nil(t, resp.Error)
	assert.Nil(t, resp.Count)
}

func TestCountWithoutRangeIsIgnored(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectQuery(`SELECT * FROM "clientes"`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	resp := svc.Run(context.Background(), &ast.Query{Table: "clientes", Count: ast.CountExact})
	require.Nil(t, resp.Error)
	assert.Nil(t, resp.Count)
}

func TestCountFailureFailsResponse(t *testing.T) {
	svc, mock := newService(t, false)
	mock.ExpectQuery(pageSQL).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery(countSQL).WillReturnError(errors.New("statement timeout"))

	resp := svc.Run(context.Background(), pageQuery(ast.CountExact))
	require.NotNil(t, resp.Error)
	assert.Nil(t, resp.Data)
	assert.Nil(t, resp.Count)
}

func TestHead(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectQuery(countSQL).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(120)))

	q := pageQuery(ast.CountExact)
	q.Head = true
	resp := svc.Run(context.Background(), q)
	require.Nil(t, resp.Error)
	assert.Nil(t, resp.Data)
	assert.Equal(t, int64(120), *resp.Count)
}

func TestValidationFailsWithoutRoundTrip(t *testing.T) {
	svc, _ := newMockService(t)

	resp := svc.Run(context.Background(), &ast.Query{
		Table:   "clientes",
		Filters: []ast.Predicate{{Column: "email", Operator: ast.OpEq}},
	})
	assert.True(t, resp.IsCode(types.CodeInvalidPredicate))
	assert.Equal(t, 400, resp.Status)
}

func TestCall(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectQuery(`SELECT * FROM "saldo_cliente"("cliente_id" => $1)`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"saldo"}).AddRow(float64(10.5)))

	resp := svc.Call(context.Background(), "saldo_cliente", ast.Record{"cliente_id": 3})
	require.Nil(t, resp.Error)
	assert.Equal(t, 10.5, resp.Rows()[0]["saldo"])
}
