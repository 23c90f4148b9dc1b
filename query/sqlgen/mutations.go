package sqlgen

import (
	"sort"

	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// GenerateInsert renders a multi-row INSERT, or an upsert when the mutation
// kind is ast.Upsert. The column list is the sorted union of the row keys;
// a row lacking a column gets DEFAULT (NULL on SQLite).
func (b *base) GenerateInsert(q *ast.Query) (*Query, error) {
	m := q.Mutation
	if m == nil || len(m.Rows) == 0 {
		return nil, types.Errorf(types.CodeInvalidPayload, "insert requires at least one row")
	}

	columns := unionKeys(m.Rows)
	w := b.newWriter()
	w.WriteString("INSERT INTO ")
	w.ident(q.Table)
	w.WriteString(" (")
	w.columnList(columns)
	w.WriteString(") VALUES ")
	for i, row := range m.Rows {
		if i > 0 {
			w.WriteString(", ")
		}
		w.WriteString("(")
		for j, col := range columns {
			if j > 0 {
				w.WriteString(", ")
			}
			v, ok := row[col]
			switch {
			case ok:
				w.arg(v)
			case b.dialect == SQLite:
				w.WriteString("NULL")
			default:
				w.WriteString("DEFAULT")
			}
		}
		w.WriteString(")")
	}

	if m.Kind == ast.Upsert {
		if len(m.ConflictTarget) == 0 {
			return nil, types.ErrMissingConflictTarget
		}
		w.WriteString(" ON CONFLICT (")
		w.columnList(m.ConflictTarget)
		w.WriteString(")")
		if m.IgnoreDuplicates {
			w.WriteString(" DO NOTHING")
		} else {
			w.WriteString(" DO UPDATE SET ")
			set := updatableColumns(columns, m.ConflictTarget)
			for i, col := range set {
				if i > 0 {
					w.WriteString(", ")
				}
				w.ident(col)
				w.WriteString(" = EXCLUDED.")
				w.ident(col)
			}
		}
	}

	w.returning(q)
	return w.query(m.Returning)
}

// GenerateUpdate renders UPDATE table SET ... WHERE .... The patch columns
// are emitted in sorted order.
func (b *base) GenerateUpdate(q *ast.Query) (*Query, error) {
	m := q.Mutation
	if m == nil || len(m.Patch) == 0 {
		return nil, types.Errorf(types.CodeInvalidPayload, "update requires at least one column")
	}

	w := b.newWriter()
	w.WriteString("UPDATE ")
	w.ident(q.Table)
	w.WriteString(" SET ")
	for i, col := range sortedKeys(m.Patch) {
		if i > 0 {
			w.WriteString(", ")
		}
		w.ident(col)
		w.WriteString(" = ")
		w.arg(m.Patch[col])
	}
	w.where(q.Filters)
	w.returning(q)
	return w.query(m.Returning)
}

// GenerateDelete renders DELETE FROM table WHERE ....
func (b *base) GenerateDelete(q *ast.Query) (*Query, error) {
	w := b.newWriter()
	w.WriteString("DELETE FROM ")
	w.ident(q.Table)
	w.where(q.Filters)
	w.returning(q)
	return w.query(q.Mutation != nil && q.Mutation.Returning)
}

func (w *writer) returning(q *ast.Query) {
	if q.Mutation == nil || !q.Mutation.Returning {
		return
	}
	w.WriteString(" RETURNING ")
	w.projection(q.Columns)
}

func (w *writer) columnList(columns []string) {
	for i, col := range columns {
		if i > 0 {
			w.WriteString(", ")
		}
		w.ident(col)
	}
}

// updatableColumns returns the columns an upsert overwrites on conflict:
// every inserted column outside the conflict target, or the target itself
// when nothing else was supplied.
func updatableColumns(columns, target []string) []string {
	inTarget := make(map[string]bool, len(target))
	for _, c := range target {
		inTarget[c] = true
	}
	var set []string
	for _, c := range columns {
		if !inTarget[c] {
			set = append(set, c)
		}
	}
	if len(set) == 0 {
		return target
	}
	return set
}

func unionKeys(rows []ast.Record) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys(r ast.Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
