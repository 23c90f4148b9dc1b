package builder

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

type fakeRunner struct {
	calls atomic.Int32
	last  *ast.Query
}

func (r *fakeRunner) Run(_ context.Context, q *ast.Query) types.Response {
	r.calls.Add(1)
	r.last = q
	return types.OK([]map[string]interface{}{})
}

func TestChainAccumulates(t *testing.T) {
	runner := &fakeRunner{}
	nullsFirst := true

	resp := New(runner, "clientes").
		Select("id, nome", SelectOptions{Count: ast.CountExact}).
		Eq("situacao", "ativo").
		Gte("idade", 18).
		In("cidade", []string{"Recife", "Olinda"}).
		Is("deleted_at", nil).
		Order("nome").
		Order("criado_em", OrderOptions{Ascending: false, NullsFirst: &nullsFirst}).
		Range(50, 99).
		Execute(context.Background())

	require.Nil(t, resp.Error)
	require.EqualValues(t, 1, runner.calls.Load())

	q := runner.last
	assert.Equal(t, "clientes", q.Table)
	assert.Equal(t, []string{"id", "nome"}, q.Columns)
	assert.Equal(t, ast.CountExact, q.Count)
	require.Len(t, q.Filters, 4)
	assert.Equal(t, ast.OpEq, q.Filters[0].Operator)
	assert.Equal(t, ast.OpIs, q.Filters[3].Operator)
	assert.Equal(t, []ast.Ordering{
		{Column: "nome", Direction: ast.Asc},
		{Column: "criado_em", Direction: ast.Desc, Nulls: ast.NullsFirst},
	}, q.Ordering)
	assert.Equal(t, 50, *q.Offset)
	assert.Equal(t, 50, *q.Limit)
}

func TestRangeToEnd(t *testing.T) {
	runner := &fakeRunner{}
	resp := New(runner, "clientes").Select("id").Range(0, math.MaxInt).Execute(context.Background())

	require.Nil(t, resp.Error)
	q := runner.last
	assert.Equal(t, 0, *q.Offset)
	assert.Nil(t, q.Limit)
	require.NoError(t, q.Validate())

	runner = &fakeRunner{}
	resp = New(runner, "clientes").Range(5, math.MaxInt).Execute(context.Background())
	require.Nil(t, resp.Error)
	assert.Equal(t, math.MaxInt-4, *runner.last.Limit)
}

func TestValidationErrorsSkipRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *QueryBuilder) *QueryBuilder
		code  types.Code
	}{
		{
			name:  "eq null",
			build: func(b *QueryBuilder) *QueryBuilder { return b.Eq("email", nil) },
			code:  types.CodeInvalidPredicate,
		},
		{
			name:  "hostile column",
			build: func(b *QueryBuilder) *QueryBuilder { return b.Eq(`nome" OR 1=1 --`, "x") },
			code:  types.CodeInvalidIdentifier,
		},
		{
			name:  "in with scalar",
			build: func(b *QueryBuilder) *QueryBuilder { return b.In("id", 7) },
			code:  types.CodeInvalidPredicate,
		},
		{
			name:  "is with string",
			build: func(b *QueryBuilder) *QueryBuilder { return b.Is("ativo", "yes") },
			code:  types.CodeInvalidPredicate,
		},
		{
			name:  "negative limit",
			build: func(b *QueryBuilder) *QueryBuilder { return b.Limit(-1) },
			code:  types.CodeInvalidRange,
		},
		{
			name:  "reversed range",
			build: func(b *QueryBuilder) *QueryBuilder { return b.Range(10, 5) },
			code:  types.CodeInvalidRange,
		},
		{
			name:  "embedded projection",
			build: func(b *QueryBuilder) *QueryBuilder { return b.Select("*,training_lessons(*)") },
			code:  types.CodeInvalidIdentifier,
		},
		{
			name:  "unknown operator",
			build: func(b *QueryBuilder) *QueryBuilder { return b.Filter("nome", "contains", "x") },
			code:  types.CodeInvalidPredicate,
		},
		{
			name:  "first error wins",
			build: func(b *QueryBuilder) *QueryBuilder { return b.Limit(-1).Eq("email", nil) },
			code:  types.CodeInvalidRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			resp := tt.build(New(runner, "clientes")).Execute(context.Background())

			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Nil(t, resp.Data)
			assert.Zero(t, runner.calls.Load())
		})
	}
}

func TestInvalidTable(t *testing.T) {
	runner := &fakeRunner{}
	resp := New(runner, "clientes; DROP TABLE clientes").Select("*").Execute(context.Background())
	assert.True(t, resp.IsCode(types.CodeInvalidIdentifier))
	assert.Zero(t, runner.calls.Load())
}

func TestExecuteTwice(t *testing.T) {
	runner := &fakeRunner{}
	b := New(runner, "clientes").Select("*")

	first := b.Execute(context.Background())
	require.Nil(t, first.Error)

	second := b.Execute(context.Background())
	assert.True(t, second.IsCode(types.CodeAlreadyExecuted))
	assert.EqualValues(t, 1, runner.calls.Load())
}

func TestConcurrentExecuteRunsOnce(t *testing.T) {
	runner := &fakeRunner{}
	b := New(runner, "clientes")

	var wg sync.WaitGroup
	var already atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Execute(context.Background()).IsCode(types.CodeAlreadyExecuted) {
				already.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, runner.calls.Load())
	assert.EqualValues(t, 7, already.Load())
}

func TestNotAndFilter(t *testing.T) {
	runner := &fakeRunner{}
	New(runner, "clientes").
		Not("deleted_at", "is", nil).
		Filter("situacao", "not.eq", "inativo").
		Match(map[string]interface{}{"tenant_id": "t1", "cidade": "Recife"}).
		Execute(context.Background())

	f := runner.last.Filters
	require.Len(t, f, 4)
	assert.True(t, f[0].Negate)
	assert.Equal(t, ast.OpIs, f[0].Operator)
	assert.True(t, f[1].Negate)
	assert.Equal(t, ast.OpEq, f[1].Operator)
	assert.Equal(t, "cidade", f[2].Column)
	assert.Equal(t, "tenant_id", f[3].Column)
}

type cliente struct {
	Nome     string `json:"nome"`
	Email    string `json:"email,omitempty"`
	TenantID int    `json:"tenant_id"`
}

func TestMutations(t *testing.T) {
	t.Run("Insert structs with returning single", func(t *testing.T) {
		runner := &fakeRunner{}
		New(runner, "clientes").
			Insert([]cliente{{Nome: "Ana", TenantID: 1}}).
			Select("id").
			Single().
			Execute(context.Background())

		q := runner.last
		require.NotNil(t, q.Mutation)
		assert.Equal(t, ast.Insert, q.Mutation.Kind)
		assert.True(t, q.Mutation.Returning)
		assert.Equal(t, ast.ModeSingle, q.Mode)
		assert.Equal(t, []ast.Record{{"nome": "Ana", "tenant_id": int64(1)}}, q.Mutation.Rows)
	})

	t.Run("Insert without select has no returning", func(t *testing.T) {
		runner := &fakeRunner{}
		New(runner, "clientes").Insert(map[string]interface{}{"nome": "Ana"}).Execute(context.Background())
		assert.False(t, runner.last.Mutation.Returning)
	})

	t.Run("Select star before insert returns rows", func(t *testing.T) {
		runner := &fakeRunner{}
		New(runner, "clientes").Select("*").Insert(map[string]interface{}{"nome": "Ana"}).Execute(context.Background())
		assert.True(t, runner.last.Mutation.Returning)
		assert.Nil(t, runner.last.Columns)
	})

	t.Run("Upsert with conflict target", func(t *testing.T) {
		runner := &fakeRunner{}
		New(runner, "configuracoes").
			Upsert(map[string]interface{}{"tenant_id": "t1", "chave": "tema", "valor": "escuro"},
				UpsertOptions{OnConflict: "tenant_id, chave"}).
			Execute(context.Background())

		m := runner.last.Mutation
		assert.Equal(t, ast.Upsert, m.Kind)
		assert.Equal(t, []string{"tenant_id", "chave"}, m.ConflictTarget)
		assert.False(t, m.IgnoreDuplicates)
	})

	t.Run("Upsert without conflict target", func(t *testing.T) {
		runner := &fakeRunner{}
		resp := New(runner, "configuracoes").
			Upsert(map[string]interface{}{"chave": "tema"}).
			Execute(context.Background())
		assert.True(t, resp.IsCode(types.CodeMissingConflictTarget))
		assert.Zero(t, runner.calls.Load())
	})

	t.Run("Second mutation rejected", func(t *testing.T) {
		runner := &fakeRunner{}
		resp := New(runner, "clientes").
			Update(map[string]interface{}{"situacao": "inativo"}).
			Delete().
			Execute(context.Background())
		assert.True(t, resp.IsCode(types.CodeInvalidPayload))
	})

	t.Run("Update with non object payload", func(t *testing.T) {
		runner := &fakeRunner{}
		resp := New(runner, "clientes").Update([]int{1, 2}).Eq("id", 1).Execute(context.Background())
		assert.True(t, resp.IsCode(types.CodeInvalidPayload))
	})

	t.Run("Delete with filter", func(t *testing.T) {
		runner := &fakeRunner{}
		New(runner, "clientes").Delete().Eq("id", 9).Execute(context.Background())
		assert.Equal(t, ast.Delete, runner.last.Mutation.Kind)
		assert.Len(t, runner.last.Filters, 1)
	})
}
