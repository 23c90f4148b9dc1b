// Package rpc dispatches raw procedure calls: a name plus a JSON argument
// object, forwarded to a registered implementation. Procedure calls are
// not compiled by the table query compiler.
package rpc

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/query/ident"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// Procedure is a callable procedure.
type Procedure interface {
	Call(ctx context.Context, args ast.Record) types.Response
}

// ProcedureFunc adapts a function to Procedure.
type ProcedureFunc func(ctx context.Context, args ast.Record) types.Response

// Call calls f.
func (f ProcedureFunc) Call(ctx context.Context, args ast.Record) types.Response {
	return f(ctx, args)
}

// Caller invokes a database function by name. *service.QueryService
// implements it.
type Caller interface {
	Call(ctx context.Context, name string, args ast.Record) types.Response
}

// DatabaseFunction returns a procedure that calls the database function
// fn with named arguments.
func DatabaseFunction(c Caller, fn string) Procedure {
	return ProcedureFunc(func(ctx context.Context, args ast.Record) types.Response {
		return c.Call(ctx, fn, args)
	})
}

// Registry maps procedure names to implementations. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	procs map[string]Procedure
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{procs: make(map[string]Procedure)}
}

// Register adds p under name. Names follow identifier rules and may be
// registered once.
func (r *Registry) Register(name string, p Procedure) error {
	if _, err := ident.Sanitize(name); err != nil {
		return fmt.Errorf("register procedure: %w", err)
	}
	if p == nil {
		return fmt.Errorf("register procedure %s: nil procedure", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.procs[name]; exists {
		return fmt.Errorf("register procedure %s: already registered", name)
	}
	r.procs[name] = p
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, p Procedure) {
	if err := r.Register(name, p); err != nil {
		panic(err)
	}
}

// Lookup returns the procedure registered under name.
func (r *Registry) Lookup(name string) (Procedure, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.procs[name]
	return p, ok
}

// Names returns the registered names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.procs))
	for name := range r.procs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call dispatches to the procedure registered under name. Unregistered
// names fail with UnknownProcedure.
func (r *Registry) Call(ctx context.Context, name string, args ast.Record) types.Response {
	p, ok := r.Lookup(name)
	if !ok {
		e := types.Errorf(types.CodeUnknownProcedure, "procedure %q is not registered", name)
		if names := r.Names(); len(names) > 0 {
			e.Hint = "registered procedures: " + strings.Join(names, ", ")
		}
		return types.Fail(e)
	}
	if args == nil {
		args = ast.Record{}
	}
	return p.Call(ctx, args)
}

// DecodeArgs parses a JSON argument object. An empty body is an empty
// argument object.
func DecodeArgs(raw []byte) (ast.Record, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return ast.Record{}, nil
	}
	rows, err := ast.DecodeRecords(raw)
	if err != nil {
		return nil, err
	}
	if len(rows) != 1 {
		return nil, types.Errorf(types.CodeInvalidPayload, "procedure arguments must be a single object")
	}
	return rows[0], nil
}
