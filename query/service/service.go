// Package service compiles and executes queries, adding the exact count
// when one is requested.
package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/query/compiler"
	"github.com/Usantos1/primecamp-ofc-sub009/query/executor"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// QueryService runs queries against one database.
type QueryService struct {
	compiler *compiler.Compiler
	executor *executor.Executor
}

// NewQueryService creates a new query service.
func NewQueryService(c *compiler.Compiler, e *executor.Executor) *QueryService {
	return &QueryService{compiler: c, executor: e}
}

// Compiler returns the compiler the service uses.
func (s *QueryService) Compiler() *compiler.Compiler {
	return s.compiler
}

// Run compiles q and executes it. When an exact count is wanted the page
// and the count(*) statement run concurrently; the first failure cancels
// the other. A head request runs only the count.
func (s *QueryService) Run(ctx context.Context, q *ast.Query) types.Response {
	if q.Head {
		return s.head(ctx, q)
	}

	stmt, err := s.compiler.Compile(q)
	if err != nil {
		return types.Fail(err)
	}

	if !q.WantsCount() || !q.IsRead() {
		return s.executor.Run(ctx, stmt, q.Mode)
	}

	countStmt, err := s.compiler.CompileCount(q)
	if err != nil {
		return types.Fail(err)
	}

	var (
		page  types.Response
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		page = s.executor.Run(gctx, stmt, q.Mode)
		return page.Err()
	})
	g.Go(func() error {
		var err error
		total, err = s.executor.Count(gctx, countStmt)
		return err
	})
	if err := g.Wait(); err != nil {
		return types.Fail(err)
	}
	return page.WithCount(total)
}

func (s *QueryService) head(ctx context.Context, q *ast.Query) types.Response {
	countStmt, err := s.compiler.CompileCount(q)
	if err != nil {
		return types.Fail(err)
	}
	if q.Count != ast.CountExact {
		return types.OK(nil)
	}
	total, err := s.executor.Count(ctx, countStmt)
	if err != nil {
		return types.Fail(err)
	}
	return types.OK(nil).WithCount(total)
}

// Call invokes a database function with named arguments and returns its
// rows.
func (s *QueryService) Call(ctx context.Context, name string, args ast.Record) types.Response {
	stmt, err := s.compiler.CompileCall(name, args)
	if err != nil {
		return types.Fail(err)
	}
	return s.executor.Run(ctx, stmt, ast.ModeList)
}
