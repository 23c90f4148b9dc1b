// Package builder provides the fluent, chainable query builder.
//
// A QueryBuilder accumulates the intent of one query on one table and is
// terminated by Execute:
//
//	resp := client.From("clientes").
//		Select("id, nome", builder.SelectOptions{Count: ast.CountExact}).
//		Eq("situacao", "ativo").
//		Order("nome").
//		Range(0, 49).
//		Execute(ctx)
//
// Builders are single-use and not safe for concurrent use.
package builder

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/query/ident"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// Runner executes an accumulated query, locally or over HTTP.
type Runner interface {
	Run(ctx context.Context, q *ast.Query) types.Response
}

// QueryBuilder builds one query. Chain methods mutate the builder in place
// and return it. The first validation error is kept and returned by Execute
// without a round-trip.
type QueryBuilder struct {
	runner   Runner
	query    ast.Query
	err      error
	selected bool
	executed atomic.Bool
}

// SelectOptions configures Select.
type SelectOptions struct {
	// Count requests an exact row count alongside a ranged result.
	Count ast.CountMode
	// Head returns only the count, no rows.
	Head bool
}

// OrderOptions configures Order. Without options the order is ascending
// with the database's default NULL placement.
type OrderOptions struct {
	Ascending  bool
	NullsFirst *bool
}

// UpsertOptions configures Upsert.
type UpsertOptions struct {
	// OnConflict is the comma-separated conflict target, e.g. "tenant_id,chave".
	OnConflict string
	// IgnoreDuplicates skips conflicting rows instead of merging them.
	IgnoreDuplicates bool
}

// New creates a builder for table.
func New(runner Runner, table string) *QueryBuilder {
	b := &QueryBuilder{runner: runner}
	b.query.Table = table
	if _, err := ident.Sanitize(table); err != nil {
		b.err = err
	}
	return b
}

// Query returns the accumulated query.
func (b *QueryBuilder) Query() *ast.Query {
	return &b.query
}

// Err returns the first recorded validation error.
func (b *QueryBuilder) Err() error {
	return b.err
}

// fail records err unless an earlier error was already recorded.
func (b *QueryBuilder) fail(err error) *QueryBuilder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// open reports whether the builder may still be changed.
func (b *QueryBuilder) open() bool {
	return !b.executed.Load() && b.err == nil
}

// Select sets the projection. columns is a comma-separated list or "*".
// After a mutation it requests the written rows back.
func (b *QueryBuilder) Select(columns string, opts ...SelectOptions) *QueryBuilder {
	if !b.open() {
		return b
	}
	ids, err := ident.ParseProjection(columns)
	if err != nil {
		return b.fail(err)
	}
	b.selected = true
	b.query.Columns = nil
	for _, id := range ids {
		b.query.Columns = append(b.query.Columns, id.String())
	}
	for _, opt := range opts {
		if opt.Count != ast.CountNone && opt.Count != ast.CountExact {
			return b.fail(types.Errorf(types.CodeInvalidPredicate, "unsupported count mode %q", opt.Count))
		}
		b.query.Count = opt.Count
		b.query.Head = opt.Head
	}
	if b.query.Mutation != nil {
		b.query.Mutation.Returning = true
	}
	return b
}

// Eq filters rows where column equals value. A nil value is rejected; use
// Is(column, nil) to match NULL.
func (b *QueryBuilder) Eq(column string, value interface{}) *QueryBuilder {
	return b.addFilter(column, ast.OpEq, value, false)
}

// Neq filters rows where column differs from value.
func (b *QueryBuilder) Neq(column string, value interface{}) *QueryBuilder {
	return b.addFilter(column, ast.OpNeq, value, false)
}

// Gt filters rows where column is greater than value.
func (b *QueryBuilder) Gt(column string, value interface{}) *QueryBuilder {
	return b.addFilter(column, ast.OpGt, value, false)
}

// Gte filters rows where column is greater than or equal to value.
func (b *QueryBuilder) Gte(column string, value interface{}) *QueryBuilder {
	return b.addFilter(column, ast.OpGte, value, false)
}

// Lt filters rows where column is less than value.
func (b *QueryBuilder) Lt(column string, value interface{}) *QueryBuilder {
	return b.addFilter(column, ast.OpLt, value, false)
}

// Lte filters rows where column is less than or equal to value.
func (b *QueryBuilder) Lte(column string, value interface{}) *QueryBuilder {
	return b.addFilter(column, ast.OpLte, value, false)
}

// Like filters rows where column matches the case-sensitive pattern.
func (b *QueryBuilder) Like(column, pattern string) *QueryBuilder {
	return b.addFilter(column, ast.OpLike, pattern, false)
}

// ILike filters rows where column matches the case-insensitive pattern.
func (b *QueryBuilder) ILike(column, pattern string) *QueryBuilder {
	return b.addFilter(column, ast.OpILike, pattern, false)
}

// In filters rows where column is one of values, which must be a slice.
// An empty slice matches nothing.
func (b *QueryBuilder) In(column string, values interface{}) *QueryBuilder {
	return b.addFilter(column, ast.OpIn, values, false)
}

// Is filters rows where column IS value: nil, true or false.
func (b *QueryBuilder) Is(column string, value interface{}) *QueryBuilder {
	return b.addFilter(column, ast.OpIs, value, false)
}

// Not adds a negated filter, e.g. Not("deleted_at", "is", nil).
func (b *QueryBuilder) Not(column, operator string, value interface{}) *QueryBuilder {
	op, ok := ast.ParseOperator(operator)
	if !ok {
		return b.fail(types.Errorf(types.CodeInvalidPredicate, "unknown operator %q", operator))
	}
	return b.addFilter(column, op, value, true)
}

// Filter adds a filter with an operator given by name. A "not." prefix
// negates it.
func (b *QueryBuilder) Filter(column, operator string, value interface{}) *QueryBuilder {
	negate := false
	if rest, ok := strings.CutPrefix(operator, "not."); ok {
		negate, operator = true, rest
	}
	op, ok := ast.ParseOperator(operator)
	if !ok {
		return b.fail(types.Errorf(types.CodeInvalidPredicate, "unknown operator %q", operator))
	}
	return b.addFilter(column, op, value, negate)
}

// Match adds an Eq filter for every entry, in key order.
func (b *QueryBuilder) Match(query map[string]interface{}) *QueryBuilder {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.Eq(k, query[k])
	}
	return b
}

func (b *QueryBuilder) addFilter(column string, op ast.Operator, value interface{}, negate bool) *QueryBuilder {
	if !b.open() {
		return b
	}
	p := ast.Predicate{Column: column, Operator: op, Value: value, Negate: negate}
	if err := p.Validate(); err != nil {
		return b.fail(err)
	}
	b.query.Filters = append(b.query.Filters, p)
	return b
}

// Order appends an ordering term. Terms apply in call order.
func (b *QueryBuilder) Order(column string, opts ...OrderOptions) *QueryBuilder {
	if !b.open() {
		return b
	}
	if _, err := ident.Sanitize(column); err != nil {
		return b.fail(err)
	}
	o := ast.Ordering{Column: column, Direction: ast.Asc}
	for _, opt := range opts {
		if !opt.Ascending {
			o.Direction = ast.Desc
		} else {
			o.Direction = ast.Asc
		}
		if opt.NullsFirst != nil {
			if *opt.NullsFirst {
				o.Nulls = ast.NullsFirst
			} else {
				o.Nulls = ast.NullsLast
			}
		}
	}
	b.query.Ordering = append(b.query.Ordering, o)
	return b
}

// Limit caps the number of rows returned.
func (b *QueryBuilder) Limit(n int) *QueryBuilder {
	if !b.open() {
		return b
	}
	if n < 0 {
		return b.fail(types.Errorf(types.CodeInvalidRange, "limit must not be negative, got %d", n))
	}
	b.query.Limit = &n
	return b
}

// Range selects rows from..to, both inclusive and zero-based.
func (b *QueryBuilder) Range(from, to int) *QueryBuilder {
	if !b.open() {
		return b
	}
	if from < 0 || to < from {
		return b.fail(types.Errorf(types.CodeInvalidRange, "invalid range %d-%d", from, to))
	}
	b.query.Offset = &from
	// to-from+1 would overflow; the range runs to the end of the table.
	if to-from == math.MaxInt {
		b.query.Limit = nil
		return b
	}
	limit := to - from + 1
	b.query.Limit = &limit
	return b
}

// Single requires exactly one row and returns it as an object.
func (b *QueryBuilder) Single() *QueryBuilder {
	if b.open() {
		b.query.Mode = ast.ModeSingle
	}
	return b
}

// MaybeSingle returns the row as an object, or null when there is none.
func (b *QueryBuilder) MaybeSingle() *QueryBuilder {
	if b.open() {
		b.query.Mode = ast.ModeMaybeSingle
	}
	return b
}

// Execute runs the query. It may be called once; later calls return
// AlreadyExecuted.
func (b *QueryBuilder) Execute(ctx context.Context) types.Response {
	if !b.executed.CompareAndSwap(false, true) {
		return types.Fail(types.Errorf(types.CodeAlreadyExecuted, "query on %q was already executed", b.query.Table))
	}
	if b.err != nil {
		return types.Fail(b.err)
	}
	if b.runner == nil {
		return types.Fail(types.Errorf(types.CodeUpstreamDriverError, "builder has no runner"))
	}
	return b.runner.Run(ctx, &b.query)
}
