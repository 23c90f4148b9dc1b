// Package compiler compiles a query AST into SQL.
package compiler

import (
	"fmt"

	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/query/sqlgen"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// Compiler compiles query AST into SQL
type Compiler struct {
	generator sqlgen.Generator
}

// NewCompiler creates a new query compiler for the given provider
// ("postgres" or "sqlite").
func NewCompiler(provider string) (*Compiler, error) {
	g, err := sqlgen.NewGenerator(provider)
	if err != nil {
		return nil, err
	}
	return &Compiler{generator: g}, nil
}

// Dialect returns the SQL dialect the compiler emits.
func (c *Compiler) Dialect() sqlgen.Dialect {
	return c.generator.Dialect()
}

// Compile validates q and renders the statement that reads or writes its
// rows. It is pure: compiling the same query twice yields identical SQL and
// arguments.
func (c *Compiler) Compile(q *ast.Query) (*sqlgen.Query, error) {
	if q == nil {
		return nil, types.Errorf(types.CodeInvalidPayload, "nil query")
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	stmt, err := c.generate(q)
	if err != nil {
		return nil, err
	}
	return label(stmt, q.Table, q.Operation(), q.IsRead()), nil
}

func (c *Compiler) generate(q *ast.Query) (*sqlgen.Query, error) {
	if q.Mutation == nil {
		return c.generator.GenerateSelect(q)
	}

	switch q.Mutation.Kind {
	case ast.Insert, ast.Upsert:
		return c.generator.GenerateInsert(q)
	case ast.Update:
		if len(q.Filters) == 0 {
			return nil, missingFilter(q)
		}
		return c.generator.GenerateUpdate(q)
	case ast.Delete:
		if len(q.Filters) == 0 {
			return nil, missingFilter(q)
		}
		return c.generator.GenerateDelete(q)
	default:
		return nil, types.Errorf(types.CodeInvalidPayload, "unknown mutation %q", q.Mutation.Kind)
	}
}

// CompileCount renders SELECT count(*) under the query's filters. Ordering
// and range are ignored.
func (c *Compiler) CompileCount(q *ast.Query) (*sqlgen.Query, error) {
	if q == nil {
		return nil, types.Errorf(types.CodeInvalidPayload, "nil query")
	}
	if q.Mutation != nil {
		return nil, types.Errorf(types.CodeInvalidPayload, "cannot count a %s", q.Mutation.Kind)
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	stmt, err := c.generator.GenerateCount(q)
	if err != nil {
		return nil, err
	}
	return label(stmt, q.Table, "count", true), nil
}

// CompileCall renders a call of the named database function.
func (c *Compiler) CompileCall(name string, args ast.Record) (*sqlgen.Query, error) {
	stmt, err := c.generator.GenerateFunctionCall(name, args)
	if err != nil {
		return nil, fmt.Errorf("compile call %s: %w", name, err)
	}
	// A function may write, so it is never treated as a read.
	return label(stmt, name, "rpc", false), nil
}

func label(stmt *sqlgen.Query, table, operation string, read bool) *sqlgen.Query {
	stmt.Table = table
	stmt.Operation = operation
	stmt.Read = read
	return stmt
}

func missingFilter(q *ast.Query) error {
	return &types.Error{
		Code:    types.CodeMissingFilter,
		Message: fmt.Sprintf("%s on %q requires at least one filter", q.Mutation.Kind, q.Table),
		Hint:    "add a filter such as eq(\"id\", value)",
	}
}
