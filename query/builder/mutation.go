package builder

import (
	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/query/ident"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// Insert inserts rows: a map, a slice of maps, a struct or a slice of
// structs. Call Select afterwards to get the inserted rows back.
func (b *QueryBuilder) Insert(rows interface{}) *QueryBuilder {
	records, err := ast.Records(rows)
	if err != nil {
		return b.fail(err)
	}
	return b.mutate(&ast.Mutation{Kind: ast.Insert, Rows: records})
}

// Upsert inserts rows, merging into existing rows that collide on the
// conflict target. A conflict target is required.
func (b *QueryBuilder) Upsert(rows interface{}, opts ...UpsertOptions) *QueryBuilder {
	records, err := ast.Records(rows)
	if err != nil {
		return b.fail(err)
	}

	m := &ast.Mutation{Kind: ast.Upsert, Rows: records}
	for _, opt := range opts {
		m.IgnoreDuplicates = opt.IgnoreDuplicates
		if opt.OnConflict == "" {
			continue
		}
		target, err := ident.ParseColumns(opt.OnConflict)
		if err != nil {
			return b.fail(err)
		}
		m.ConflictTarget = m.ConflictTarget[:0]
		for _, id := range target {
			m.ConflictTarget = append(m.ConflictTarget, id.String())
		}
	}
	if len(m.ConflictTarget) == 0 {
		return b.fail(&types.Error{
			Code:    types.CodeMissingConflictTarget,
			Message: "upsert requires a conflict target",
			Hint:    `pass UpsertOptions{OnConflict: "column"}`,
		})
	}
	return b.mutate(m)
}

// Update sets the columns of patch on every row matching the filters. At
// least one filter is required.
func (b *QueryBuilder) Update(patch interface{}) *QueryBuilder {
	record, err := ast.Patch(patch)
	if err != nil {
		return b.fail(err)
	}
	return b.mutate(&ast.Mutation{Kind: ast.Update, Patch: record})
}

// Delete removes every row matching the filters. At least one filter is
// required.
func (b *QueryBuilder) Delete() *QueryBuilder {
	return b.mutate(&ast.Mutation{Kind: ast.Delete})
}

func (b *QueryBuilder) mutate(m *ast.Mutation) *QueryBuilder {
	if !b.open() {
		return b
	}
	if b.query.Mutation != nil {
		return b.fail(types.Errorf(types.CodeInvalidPayload,
			"query already has a %s; only one mutation per query", b.query.Mutation.Kind))
	}
	// A projection chosen before the mutation is the returning list.
	m.Returning = b.selected
	b.query.Mutation = m
	return b
}
