package ident_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/Usantos1/primecamp-ofc-sub009/query/ident"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "simple", input: "clientes"},
		{name: "underscore and digits", input: "ordem_servico_2"},
		{name: "schema qualified", input: "public.clientes"},
		{name: "leading digit", input: "2fa_codes"},
		{name: "empty", input: "", wantErr: true},
		{name: "two dots", input: "a.b.c", wantErr: true},
		{name: "trailing dot", input: "clientes.", wantErr: true},
		{name: "space", input: "nome completo", wantErr: true},
		{name: "quote injection", input: `clientes" ; DROP TABLE x; --`, wantErr: true},
		{name: "semicolon", input: "a;b", wantErr: true},
		{name: "dash", input: "a-b", wantErr: true},
		{name: "unicode", input: "situação", wantErr: true},
		{name: "max length", input: strings.Repeat("a", 63)},
		{name: "too long", input: strings.Repeat("a", 64), wantErr: true},
		{name: "too long schema", input: strings.Repeat("s", 64) + ".t", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ident.Sanitize(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, types.ErrInvalidIdentifier))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, id.String())
		})
	}
}

func TestIdentifierQuote(t *testing.T) {
	assert.Equal(t, `"clientes"`, ident.MustSanitize("clientes").Quote())
	assert.Equal(t, `"public"."clientes"`, ident.MustSanitize("public.clientes").Quote())
	assert.Equal(t, "clientes", ident.MustSanitize("public.clientes").Name())
}

func TestMustSanitizePanics(t *testing.T) {
	assert.Panics(t, func() { ident.MustSanitize("bad name") })
}

func TestParseProjection(t *testing.T) {
	t.Run("star", func(t *testing.T) {
		cols, err := ident.ParseProjection("*")
		require.NoError(t, err)
		assert.Nil(t, cols)
	})

	t.Run("empty means star", func(t *testing.T) {
		cols, err := ident.ParseProjection("  ")
		require.NoError(t, err)
		assert.Nil(t, cols)
	})

	t.Run("columns with spaces", func(t *testing.T) {
		cols, err := ident.ParseProjection("id, nome,situacao")
		require.NoError(t, err)
		assert.Equal(t, []ident.Identifier{"id", "nome", "situacao"}, cols)
	})

	t.Run("embedded projection rejected", func(t *testing.T) {
		_, err := ident.ParseProjection("*,training_lessons(*)")
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrInvalidIdentifier))
		assert.Contains(t, err.Error(), "embedded")
	})

	t.Run("star mixed with columns rejected", func(t *testing.T) {
		_, err := ident.ParseProjection("*, id")
		require.Error(t, err)
	})

	t.Run("injection rejected", func(t *testing.T) {
		for _, s := range []string{"id; drop table x", `id"`, "id::text", "alias:id", "id nome"} {
			_, err := ident.ParseProjection(s)
			assert.Error(t, err, s)
		}
	})
}

func TestParseColumns(t *testing.T) {
	cols, err := ident.ParseColumns("id,tenant_id")
	require.NoError(t, err)
	assert.Equal(t, []ident.Identifier{"id", "tenant_id"}, cols)

	_, err = ident.ParseColumns("*")
	assert.Error(t, err)

	_, err = ident.ParseColumns("")
	assert.Error(t, err)
}
