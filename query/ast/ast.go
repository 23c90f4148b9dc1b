// Package ast defines the accumulated intent of one logical query.
package ast

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/Usantos1/primecamp-ofc-sub009/query/ident"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// Record is one row of a mutation payload or a query result.
type Record = map[string]interface{}

// Query is the intent of one logical query: what to read or write on a
// single table. It is built by the builder or decoded from an HTTP request
// and compiled to SQL once.
type Query struct {
	Table    string
	Columns  []string // nil selects every column
	Filters  []Predicate
	Ordering []Ordering
	Limit    *int
	Offset   *int
	Mode     Mode
	Count    CountMode
	Head     bool // count only, no rows
	Mutation *Mutation
}

// Mode selects how many rows the caller expects back.
type Mode int

const (
	// ModeList returns every matching row.
	ModeList Mode = iota
	// ModeSingle requires exactly one row.
	ModeSingle
	// ModeMaybeSingle accepts zero or one row.
	ModeMaybeSingle
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeSingle:
		return "single"
	case ModeMaybeSingle:
		return "maybeSingle"
	default:
		return "list"
	}
}

// IsSingular reports whether the mode returns one object instead of a list.
func (m Mode) IsSingular() bool {
	return m == ModeSingle || m == ModeMaybeSingle
}

// CountMode selects whether an exact count accompanies the rows.
type CountMode string

const (
	CountNone  CountMode = ""
	CountExact CountMode = "exact"
)

// Operator is a filter operator.
type Operator string

const (
	OpEq    Operator = "eq"
	OpNeq   Operator = "neq"
	OpGt    Operator = "gt"
	OpGte   Operator = "gte"
	OpLt    Operator = "lt"
	OpLte   Operator = "lte"
	OpLike  Operator = "like"
	OpILike Operator = "ilike"
	OpIn    Operator = "in"
	OpIs    Operator = "is"
)

// ParseOperator converts a wire operator name.
func ParseOperator(s string) (Operator, bool) {
	switch op := Operator(s); op {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpLike, OpILike, OpIn, OpIs:
		return op, true
	default:
		return "", false
	}
}

// Predicate is one filter condition. Predicates are ANDed in order.
type Predicate struct {
	Column   string
	Operator Operator
	Value    interface{}
	Negate   bool
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Nulls places NULLs first or last in an ordering.
type Nulls string

const (
	NullsDefault Nulls = ""
	NullsFirst   Nulls = "nullsfirst"
	NullsLast    Nulls = "nullslast"
)

// Ordering is one ORDER BY term.
type Ordering struct {
	Column    string
	Direction Direction
	Nulls     Nulls
}

// MutationKind is the kind of write a query performs.
type MutationKind string

const (
	Insert MutationKind = "insert"
	Update MutationKind = "update"
	Upsert MutationKind = "upsert"
	Delete MutationKind = "delete"
)

// Mutation describes the write part of a query.
type Mutation struct {
	Kind             MutationKind
	Rows             []Record // insert, upsert
	Patch            Record   // update
	ConflictTarget   []string // upsert
	IgnoreDuplicates bool     // upsert: ON CONFLICT DO NOTHING
	Returning        bool     // return the written rows
}

// IsRead reports whether the query only reads.
func (q *Query) IsRead() bool {
	return q.Mutation == nil
}

// Operation names the query for logs and metrics.
func (q *Query) Operation() string {
	if q.Mutation != nil {
		return string(q.Mutation.Kind)
	}
	if q.Head {
		return "count"
	}
	return "select"
}

// HasRange reports whether the query is paginated.
func (q *Query) HasRange() bool {
	return q.Limit != nil || q.Offset != nil
}

// WantsCount reports whether an exact count must be computed. A count is
// only produced together with a range or for a head request.
func (q *Query) WantsCount() bool {
	return q.Count == CountExact && (q.HasRange() || q.Head)
}

// Validate checks a predicate's column and operator/value arity.
func (p Predicate) Validate() error {
	if _, err := ident.Sanitize(p.Column); err != nil {
		return err
	}
	switch p.Operator {
	case OpIn:
		if p.Value == nil {
			return invalidPredicate(p, "in requires a list of values")
		}
		if _, ok := ListValues(p.Value); !ok {
			return invalidPredicate(p, "in requires a list of values")
		}
	case OpIs:
		switch p.Value {
		case nil, true, false:
		default:
			return invalidPredicate(p, "is accepts only null, true or false")
		}
	case OpLike, OpILike:
		pattern, ok := p.Value.(string)
		if !ok {
			return invalidPredicate(p, fmt.Sprintf("%s requires a string pattern", p.Operator))
		}
		// * is the URL alias for %, so a literal one cannot reach the server.
		if strings.Contains(pattern, "*") {
			e := invalidPredicate(p, fmt.Sprintf("%s pattern must not contain *", p.Operator))
			e.Hint = "use % as the wildcard"
			return e
		}
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
		if p.Value == nil {
			hint := "use is(column, nil) to match NULL"
			e := invalidPredicate(p, fmt.Sprintf("%s cannot compare against null", p.Operator))
			e.Hint = hint
			return e
		}
		if _, ok := ListValues(p.Value); ok {
			return invalidPredicate(p, fmt.Sprintf("%s requires a scalar value", p.Operator))
		}
	default:
		return invalidPredicate(p, fmt.Sprintf("unknown operator %q", p.Operator))
	}
	return nil
}

// ListValues flattens any slice or array value. It reports false for
// scalars, including strings and []byte.
func ListValues(v interface{}) ([]interface{}, bool) {
	switch vv := v.(type) {
	case []interface{}:
		return vv, true
	case []byte, string:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// Validate checks the whole query without compiling it.
func (q *Query) Validate() error {
	if _, err := ident.Sanitize(q.Table); err != nil {
		return err
	}
	if _, err := ident.SanitizeAll(q.Columns); err != nil {
		return err
	}
	for _, p := range q.Filters {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	for _, o := range q.Ordering {
		if _, err := ident.Sanitize(o.Column); err != nil {
			return err
		}
		if o.Direction != Asc && o.Direction != Desc {
			return types.Errorf(types.CodeInvalidPredicate, "invalid sort direction %q", o.Direction)
		}
		if o.Nulls != NullsDefault && o.Nulls != NullsFirst && o.Nulls != NullsLast {
			return types.Errorf(types.CodeInvalidPredicate, "invalid nulls placement %q", o.Nulls)
		}
	}
	if q.Limit != nil && *q.Limit < 0 {
		return types.Errorf(types.CodeInvalidRange, "limit must not be negative")
	}
	if q.Offset != nil && *q.Offset < 0 {
		return types.Errorf(types.CodeInvalidRange, "offset must not be negative")
	}
	if q.Mutation != nil {
		return q.Mutation.validate()
	}
	return nil
}

func (m *Mutation) validate() error {
	switch m.Kind {
	case Insert, Upsert:
		if len(m.Rows) == 0 {
			return types.Errorf(types.CodeInvalidPayload, "%s requires at least one row", m.Kind)
		}
		for _, row := range m.Rows {
			if len(row) == 0 {
				return types.Errorf(types.CodeInvalidPayload, "%s rows must not be empty", m.Kind)
			}
			for col := range row {
				if _, err := ident.Sanitize(col); err != nil {
					return err
				}
			}
		}
		if m.Kind == Upsert {
			if len(m.ConflictTarget) == 0 {
				return types.ErrMissingConflictTarget
			}
			if _, err := ident.SanitizeAll(m.ConflictTarget); err != nil {
				return err
			}
		}
	case Update:
		if len(m.Patch) == 0 {
			return types.Errorf(types.CodeInvalidPayload, "update requires at least one column")
		}
		for col := range m.Patch {
			if _, err := ident.Sanitize(col); err != nil {
				return err
			}
		}
	case Delete:
	default:
		return types.Errorf(types.CodeInvalidPayload, "unknown mutation %q", m.Kind)
	}
	return nil
}

func invalidPredicate(p Predicate, reason string) *types.Error {
	return &types.Error{
		Code:    types.CodeInvalidPredicate,
		Message: fmt.Sprintf("invalid filter on %q", p.Column),
		Details: reason,
	}
}

// String renders the query in the wire filter syntax, for logs.
func (q *Query) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", q.Operation(), q.Table)
	for _, p := range q.Filters {
		not := ""
		if p.Negate {
			not = "not."
		}
		fmt.Fprintf(&b, " %s=%s%s.%v", p.Column, not, p.Operator, p.Value)
	}
	return b.String()
}
