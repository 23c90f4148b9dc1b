package server

import (
	"fmt"
	"os"
	"slices"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/Usantos1/primecamp-ofc-sub009/internal/debug"
	"github.com/Usantos1/primecamp-ofc-sub009/internal/watch"
	"github.com/Usantos1/primecamp-ofc-sub009/query/ident"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// Policy is the allow-list file: the tables and procedures the endpoint
// exposes and who may use them.
//
//	tables:
//	  clientes:
//	    operations: [select, insert, update, upsert, delete]
//	    roles: [authenticated]
//	procedures:
//	  resumo_vendas:
//	    roles: [service]
type Policy struct {
	Tables     map[string]TableRule     `yaml:"tables"`
	Procedures map[string]ProcedureRule `yaml:"procedures"`

	allowAll bool
}

// TableRule lists the operations allowed on a table. Empty Roles admit
// any authenticated identity.
type TableRule struct {
	Operations []string `yaml:"operations"`
	Roles      []string `yaml:"roles"`
}

// ProcedureRule lists the roles that may call a procedure.
type ProcedureRule struct {
	Roles []string `yaml:"roles"`
}

var operations = []string{"select", "insert", "update", "upsert", "delete"}

// ParsePolicy parses and validates an allow-list document.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse allow-list: %w", err)
	}
	for table, rule := range p.Tables {
		if _, err := ident.Sanitize(table); err != nil {
			return nil, fmt.Errorf("allow-list table %q: %w", table, err)
		}
		for _, op := range rule.Operations {
			if !slices.Contains(operations, op) {
				return nil, fmt.Errorf("allow-list table %q: unknown operation %q", table, op)
			}
		}
	}
	for name := range p.Procedures {
		if _, err := ident.Sanitize(name); err != nil {
			return nil, fmt.Errorf("allow-list procedure %q: %w", name, err)
		}
	}
	return &p, nil
}

// AllowAll returns a policy admitting every table, operation and
// procedure to any authenticated identity.
func AllowAll() *Policy {
	return &Policy{allowAll: true}
}

// CheckTable reports whether id may run operation on table. A head
// count needs the select operation.
func (p *Policy) CheckTable(id Identity, table, operation string) error {
	if p.allowAll {
		return nil
	}
	rule, ok := p.Tables[table]
	if !ok {
		return &types.Error{
			Code:    types.CodeUnauthorized,
			Message: fmt.Sprintf("table %q is not exposed", table),
		}
	}
	if operation == "count" {
		operation = "select"
	}
	if !slices.Contains(rule.Operations, operation) {
		return &types.Error{
			Code:    types.CodeUnauthorized,
			Message: fmt.Sprintf("%s is not allowed on table %q", operation, table),
			Hint:    fmt.Sprintf("allowed operations: %v", rule.Operations),
		}
	}
	if !id.HasAnyRole(rule.Roles) {
		return &types.Error{
			Code:    types.CodeUnauthorized,
			Message: fmt.Sprintf("role not permitted on table %q", table),
		}
	}
	return nil
}

// CheckProcedure reports whether id may call the procedure name.
func (p *Policy) CheckProcedure(id Identity, name string) error {
	if p.allowAll {
		return nil
	}
	rule, ok := p.Procedures[name]
	if !ok {
		return &types.Error{
			Code:    types.CodeUnauthorized,
			Message: fmt.Sprintf("procedure %q is not exposed", name),
		}
	}
	if !id.HasAnyRole(rule.Roles) {
		return &types.Error{
			Code:    types.CodeUnauthorized,
			Message: fmt.Sprintf("role not permitted on procedure %q", name),
		}
	}
	return nil
}

// AllowList holds the current policy. It is swapped atomically when the
// backing file changes.
type AllowList struct {
	path    string
	current atomic.Pointer[Policy]
	watcher *watch.Watcher
}

// NewAllowList wraps a fixed policy.
func NewAllowList(p *Policy) *AllowList {
	a := &AllowList{}
	a.current.Store(p)
	return a
}

// LoadAllowList reads the policy at path.
func LoadAllowList(path string) (*AllowList, error) {
	a := &AllowList{path: path}
	if err := a.Reload(); err != nil {
		return nil, err
	}
	return a, nil
}

// Policy returns the current policy.
func (a *AllowList) Policy() *Policy {
	return a.current.Load()
}

// Reload rereads the backing file. On failure the current policy is kept.
func (a *AllowList) Reload() error {
	if a.path == "" {
		return nil
	}
	data, err := os.ReadFile(a.path)
	if err != nil {
		return fmt.Errorf("read allow-list: %w", err)
	}
	p, err := ParsePolicy(data)
	if err != nil {
		return err
	}
	a.current.Store(p)
	debug.Info("allow-list loaded", "path", a.path, "tables", len(p.Tables), "procedures", len(p.Procedures))
	return nil
}

// Watch reloads the policy whenever its file changes, until Close.
func (a *AllowList) Watch() error {
	if a.path == "" || a.watcher != nil {
		return nil
	}
	w, err := watch.NewWatcher(a.path, 0, a.Reload)
	if err != nil {
		return err
	}
	w.Start()
	a.watcher = w
	return nil
}

// Close stops watching the file.
func (a *AllowList) Close() error {
	if a.watcher == nil {
		return nil
	}
	return a.watcher.Stop()
}
