package sqlgen

import (
	"fmt"

	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

var comparisonOperators = map[ast.Operator]string{
	ast.OpEq:    "=",
	ast.OpNeq:   "<>",
	ast.OpGt:    ">",
	ast.OpGte:   ">=",
	ast.OpLt:    "<",
	ast.OpLte:   "<=",
	ast.OpLike:  "LIKE",
	ast.OpILike: "ILIKE",
}

// where renders the predicates ANDed in order.
func (w *writer) where(filters []ast.Predicate) {
	if len(filters) == 0 {
		return
	}
	w.WriteString(" WHERE ")
	for i, p := range filters {
		if i > 0 {
			w.WriteString(" AND ")
		}
		w.predicate(p)
	}
}

func (w *writer) predicate(p ast.Predicate) {
	switch p.Operator {
	case ast.OpIs:
		w.ident(p.Column)
		w.WriteString(" IS ")
		if p.Negate {
			w.WriteString("NOT ")
		}
		switch p.Value {
		case true:
			w.WriteString("TRUE")
		case false:
			w.WriteString("FALSE")
		default:
			w.WriteString("NULL")
		}

	case ast.OpIn:
		values, _ := ast.ListValues(p.Value)
		if len(values) == 0 {
			// Nothing is IN the empty set.
			if p.Negate {
				w.WriteString("1 = 1")
			} else {
				w.WriteString("1 = 0")
			}
			return
		}
		if p.Negate {
			w.WriteString("NOT (")
		}
		w.ident(p.Column)
		w.WriteString(" IN (")
		for i, v := range values {
			if i > 0 {
				w.WriteString(", ")
			}
			w.arg(v)
		}
		w.WriteString(")")
		if p.Negate {
			w.WriteString(")")
		}

	default:
		op, ok := comparisonOperators[p.Operator]
		if !ok {
			w.fail(types.Errorf(types.CodeInvalidPredicate, "unknown operator %q", p.Operator))
			return
		}
		if op == "ILIKE" && w.dialect == SQLite {
			op = "LIKE"
		}
		if p.Negate {
			w.WriteString("NOT (")
		}
		w.ident(p.Column)
		w.WriteString(fmt.Sprintf(" %s ", op))
		w.arg(p.Value)
		if p.Negate {
			w.WriteString(")")
		}
	}
}

func (w *writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}
