// Package optimizer suggests indexes for table queries.
package optimizer

import (
	"fmt"
	"strings"

	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/query/ident"
)

// Optimizer inspects queries for missing index candidates.
type Optimizer struct {
	provider string
}

// NewOptimizer creates a new query optimizer
func NewOptimizer(provider string) *Optimizer {
	return &Optimizer{
		provider: provider,
	}
}

// SuggestIndexes returns CREATE INDEX statements that would serve q:
// one per equality or in column, and a composite index over the
// equality columns followed by the order columns. Negated filters and
// pattern matches never use a plain btree index and are skipped.
func (o *Optimizer) SuggestIndexes(q *ast.Query) []string {
	table, err := ident.Sanitize(q.Table)
	if err != nil {
		return nil
	}

	var (
		suggestions []string
		seen        = make(map[string]bool)
		equality    []string
	)
	for _, p := range q.Filters {
		if p.Negate || (p.Operator != ast.OpEq && p.Operator != ast.OpIn) {
			continue
		}
		if seen[p.Column] {
			continue
		}
		seen[p.Column] = true
		equality = append(equality, p.Column)
		suggestions = append(suggestions, o.index(table, p.Column))
	}

	cols := append([]string(nil), equality...)
	for _, ord := range q.Ordering {
		if !seen[ord.Column] {
			cols = append(cols, ord.Column)
			seen[ord.Column] = true
		}
	}
	if len(cols) > 1 && len(cols) > len(equality) {
		suggestions = append(suggestions, o.index(table, cols...))
	}
	return suggestions
}

func (o *Optimizer) index(table ident.Identifier, columns ...string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = ident.Identifier(c).Quote()
	}
	name := fmt.Sprintf("idx_%s_%s", table.Name(), strings.Join(columns, "_"))

	clause := "CREATE INDEX"
	if o.provider == "postgresql" {
		clause = "CREATE INDEX CONCURRENTLY"
	}
	return fmt.Sprintf("%s IF NOT EXISTS %s ON %s (%s)", clause, ident.Identifier(name).Quote(), table.Quote(), strings.Join(quoted, ", "))
}
