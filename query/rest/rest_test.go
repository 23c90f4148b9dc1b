package rest

import (
	"bytes"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

func intPtr(n int) *int { return &n }

func TestDecodeRead(t *testing.T) {
	d := NewDecoder(0)
	r := httptest.NewRequest(http.MethodGet,
		`/tables/clientes?select=id,nome&situacao=eq.ativo&idade=gte.18&cidade=in.(Recife,%22Olinda,%20PE%22)&deleted_at=not.is.null&nome=ilike.*silva*&order=nome.asc,id.desc.nullslast`, nil)
	r.Header.Set(HeaderPrefer, "count=exact")
	r.Header.Set(HeaderRange, "0-49")

	q, err := d.Decode(r, "clientes")
	require.NoError(t, err)

	assert.Equal(t, "clientes", q.Table)
	assert.Equal(t, []string{"id", "nome"}, q.Columns)
	assert.Equal(t, ast.CountExact, q.Count)
	assert.Equal(t, intPtr(0), q.Offset)
	assert.Equal(t, intPtr(50), q.Limit)
	assert.Equal(t, []ast.Predicate{
		{Column: "situacao", Operator: ast.OpEq, Value: "ativo"},
		{Column: "idade", Operator: ast.OpGte, Value: "18"},
		{Column: "cidade", Operator: ast.OpIn, Value: []interface{}{"Recife", "Olinda, PE"}},
		{Column: "deleted_at", Operator: ast.OpIs, Value: nil, Negate: true},
		{Column: "nome", Operator: ast.OpILike, Value: "%silva%"},
	}, q.Filters)
	assert.Equal(t, []ast.Ordering{
		{Column: "nome", Direction: ast.Asc},
		{Column: "id", Direction: ast.Desc, Nulls: ast.NullsLast},
	}, q.Ordering)
	assert.Nil(t, q.Mutation)
}

func TestDecodeCache(t *testing.T) {
	d := NewDecoder(8)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodGet, "/tables/clientes?situacao=eq.ativo&limit=10", nil)
		q, err := d.Decode(r, "clientes")
		require.NoError(t, err)
		q.Filters[0].Value = "mutated"
	}

	r := httptest.NewRequest(http.MethodGet, "/tables/clientes?situacao=eq.ativo&limit=10", nil)
	q, err := d.Decode(r, "clientes")
	require.NoError(t, err)
	assert.Equal(t, "ativo", q.Filters[0].Value)

	s := d.CacheStats()
	assert.EqualValues(t, 3, s.Hits)
	assert.EqualValues(t, 1, s.Misses)
}

func TestDecodeHeadAndAccept(t *testing.T) {
	d := NewDecoder(0)

	r := httptest.NewRequest(http.MethodHead, "/tables/clientes?situacao=eq.ativo", nil)
	r.Header.Set(HeaderPrefer, "count=exact")
	q, err := d.Decode(r, "clientes")
	require.NoError(t, err)
	assert.True(t, q.Head)
	assert.True(t, q.WantsCount())

	r = httptest.NewRequest(http.MethodGet, "/tables/clientes?id=eq.7", nil)
	r.Header.Set("Accept", MediaObject+";nullable=true")
	q, err = d.Decode(r, "clientes")
	require.NoError(t, err)
	assert.Equal(t, ast.ModeMaybeSingle, q.Mode)
}

func TestDecodeMutations(t *testing.T) {
	d := NewDecoder(0)

	t.Run("Insert with representation", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/tables/clientes?select=id",
			bytes.NewBufferString(`[{"nome":"Ana","tenant_id":1},{"nome":"Bia","tenant_id":1}]`))
		r.Header.Set(HeaderPrefer, "return=representation")
		q, err := d.Decode(r, "clientes")
		require.NoError(t, err)
		require.NotNil(t, q.Mutation)
		assert.Equal(t, ast.Insert, q.Mutation.Kind)
		assert.True(t, q.Mutation.Returning)
		assert.Len(t, q.Mutation.Rows, 2)
		assert.Equal(t, int64(1), q.Mutation.Rows[0]["tenant_id"])
	})

	t.Run("Upsert", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/tables/configuracoes?on_conflict=tenant_id,chave",
			bytes.NewBufferString(`{"tenant_id":"t1","chave":"tema","valor":"escuro"}`))
		r.Header.Set(HeaderPrefer, "resolution=ignore-duplicates")
		q, err := d.Decode(r, "configuracoes")
		require.NoError(t, err)
		assert.Equal(t, ast.Upsert, q.Mutation.Kind)
		assert.True(t, q.Mutation.IgnoreDuplicates)
		assert.Equal(t, []string{"tenant_id", "chave"}, q.Mutation.ConflictTarget)
		assert.False(t, q.Mutation.Returning)
	})

	t.Run("Upsert without target", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/tables/configuracoes",
			bytes.NewBufferString(`{"chave":"tema"}`))
		r.Header.Set(HeaderPrefer, "resolution=merge-duplicates")
		_, err := d.Decode(r, "configuracoes")
		assert.Equal(t, types.CodeMissingConflictTarget, types.CodeOf(err))
	})

	t.Run("Update", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPatch, "/tables/clientes?id=eq.7",
			bytes.NewBufferString(`{"situacao":"inativo"}`))
		q, err := d.Decode(r, "clientes")
		require.NoError(t, err)
		assert.Equal(t, ast.Update, q.Mutation.Kind)
		assert.Equal(t, "inativo", q.Mutation.Patch["situacao"])
	})

	t.Run("Update with array", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPatch, "/tables/clientes?id=eq.7",
			bytes.NewBufferString(`[{"a":1},{"a":2}]`))
		_, err := d.Decode(r, "clientes")
		assert.Equal(t, types.CodeInvalidPayload, types.CodeOf(err))
	})

	t.Run("Delete", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodDelete, "/tables/clientes?id=eq.7", nil)
		q, err := d.Decode(r, "clientes")
		require.NoError(t, err)
		assert.Equal(t, ast.Delete, q.Mutation.Kind)
	})

	t.Run("Empty body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/tables/clientes", bytes.NewBufferString("  "))
		_, err := d.Decode(r, "clientes")
		assert.Equal(t, types.CodeInvalidPayload, types.CodeOf(err))
	})
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		table  string
		rng    string
		code   types.Code
	}{
		{"hostile table", "/tables/x", "clientes;drop", "", types.CodeInvalidIdentifier},
		{"hostile column", "/tables/clientes?nome%22%20OR%201=eq.1", "clientes", "", types.CodeInvalidIdentifier},
		{"missing operator", "/tables/clientes?nome=ana", "clientes", "", types.CodeInvalidPredicate},
		{"unknown operator", "/tables/clientes?nome=contains.ana", "clientes", "", types.CodeInvalidPredicate},
		{"is with text", "/tables/clientes?ativo=is.yes", "clientes", "", types.CodeInvalidPredicate},
		{"unterminated list", "/tables/clientes?id=in.(1,2", "clientes", "", types.CodeInvalidPredicate},
		{"bad order", "/tables/clientes?order=nome.sideways", "clientes", "", types.CodeInvalidPredicate},
		{"negative limit", "/tables/clientes?limit=-1", "clientes", "", types.CodeInvalidRange},
		{"reversed range", "/tables/clientes", "clientes", "10-5", types.CodeInvalidRange},
		{"embedded select", "/tables/clientes?select=*,pedidos(*)", "clientes", "", types.CodeInvalidIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.rng != "" {
				r.Header.Set(HeaderRange, tt.rng)
			}
			_, err := NewDecoder(0).Decode(r, tt.table)
			require.Error(t, err)
			assert.Equal(t, tt.code, types.CodeOf(err))
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	nullsFirst := ast.NullsFirst
	queries := []*ast.Query{
		{
			Table:   "clientes",
			Columns: []string{"id", "nome"},
			Filters: []ast.Predicate{
				{Column: "situacao", Operator: ast.OpEq, Value: "ativo"},
				{Column: "cidade", Operator: ast.OpIn, Value: []interface{}{"Recife", "Olinda, PE", " x"}},
				{Column: "nome", Operator: ast.OpLike, Value: "%Silva"},
				{Column: "codigo", Operator: ast.OpILike, Value: "A_B%"},
				{Column: "deleted_at", Operator: ast.OpIs, Value: nil, Negate: true},
			},
			Ordering: []ast.Ordering{{Column: "nome", Direction: ast.Desc, Nulls: nullsFirst}},
			Limit:    intPtr(50),
			Offset:   intPtr(100),
			Count:    ast.CountExact,
		},
		{
			Table: "clientes",
			Mode:  ast.ModeSingle,
			Mutation: &ast.Mutation{
				Kind:           ast.Upsert,
				Rows:           []ast.Record{{"tenant_id": int64(1), "nome": "Ana"}},
				ConflictTarget: []string{"tenant_id"},
				Returning:      true,
			},
		},
		{
			Table:    "clientes",
			Filters:  []ast.Predicate{{Column: "id", Operator: ast.OpEq, Value: "7"}},
			Mutation: &ast.Mutation{Kind: ast.Update, Patch: ast.Record{"situacao": "inativo"}},
		},
		{
			Table: "clientes",
			Head:  true,
			Count: ast.CountExact,
		},
	}

	d := NewDecoder(0)
	for _, q := range queries {
		t.Run(q.String(), func(t *testing.T) {
			req, err := Encode(q, FormatJSON)
			require.NoError(t, err)

			r := httptest.NewRequest(req.Method, req.Path+"?"+req.RawQuery, bytes.NewReader(req.Body))
			for k, v := range req.Header {
				r.Header[k] = v
			}
			got, err := d.Decode(r, q.Table)
			require.NoError(t, err)
			assert.Equal(t, q, got)
		})
	}
}

func TestLikePatternsOnTheWire(t *testing.T) {
	req, err := Encode(&ast.Query{
		Table:   "produtos",
		Filters: []ast.Predicate{{Column: "codigo", Operator: ast.OpLike, Value: "A%B_"}},
	}, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "codigo=like.A%25B_", req.RawQuery)

	d := NewDecoder(0)
	r := httptest.NewRequest("GET", "/tables/produtos?codigo=like.A*B", nil)
	got, err := d.Decode(r, "produtos")
	require.NoError(t, err)
	assert.Equal(t, "A%B", got.Filters[0].Value)
}

func TestEncodeFormatsValues(t *testing.T) {
	req, err := Encode(&ast.Query{
		Table: "pedidos",
		Filters: []ast.Predicate{
			{Column: "total", Operator: ast.OpGt, Value: 10.5},
			{Column: "pago", Operator: ast.OpEq, Value: true},
			{Column: "id", Operator: ast.OpIn, Value: []int{1, 2}},
		},
	}, FormatMsgpack)
	require.NoError(t, err)
	assert.Equal(t, "total=gt.10.5&pago=eq.true&id=in.%281%2C2%29", req.RawQuery)
	assert.Equal(t, MediaMsgpack, req.Header.Get("Accept"))
}

func TestHeaders(t *testing.T) {
	t.Run("Preferences", func(t *testing.T) {
		h := http.Header{}
		h.Add(HeaderPrefer, "count=exact, return=representation")
		h.Add(HeaderPrefer, "resolution=merge-duplicates, tx=commit")
		p, err := ParsePreferences(h)
		require.NoError(t, err)
		assert.Equal(t, Preferences{Count: ast.CountExact, Return: "representation", Resolution: "merge-duplicates"}, p)
		assert.Equal(t, "count=exact, return=representation, resolution=merge-duplicates", p.String())

		h.Set(HeaderPrefer, "count=planned")
		_, err = ParsePreferences(h)
		assert.Error(t, err)
	})

	t.Run("Negotiate", func(t *testing.T) {
		h := http.Header{}
		h.Set("Accept", Accept(ast.ModeMaybeSingle, FormatMsgpack))
		mode, format := Negotiate(h)
		assert.Equal(t, ast.ModeMaybeSingle, mode)
		assert.Equal(t, FormatMsgpack, format)

		h.Set("Accept", "text/html, application/json")
		mode, format = Negotiate(h)
		assert.Equal(t, ast.ModeList, mode)
		assert.Equal(t, FormatJSON, format)
	})

	t.Run("Range", func(t *testing.T) {
		offset, limit, err := ParseRange("items=10-19")
		require.NoError(t, err)
		assert.Equal(t, 10, offset)
		assert.Equal(t, intPtr(10), limit)

		offset, limit, err = ParseRange("0-" + strconv.Itoa(math.MaxInt))
		require.NoError(t, err)
		assert.Equal(t, 0, offset)
		assert.Nil(t, limit)

		offset, limit, err = ParseRange("5-")
		require.NoError(t, err)
		assert.Equal(t, 5, offset)
		assert.Nil(t, limit)

		_, _, err = ParseRange("abc")
		assert.Error(t, err)
	})

	t.Run("Content range", func(t *testing.T) {
		total := int64(25)
		assert.Equal(t, "0-9/25", ContentRange(0, 10, &total))
		assert.Equal(t, "*/25", ContentRange(30, 0, &total))
		assert.Equal(t, "50-59/*", ContentRange(50, 10, nil))
	})
}
