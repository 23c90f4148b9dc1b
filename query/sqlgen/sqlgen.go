// Package sqlgen generates parameterized SQL for different database providers.
package sqlgen

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/query/ident"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// Query represents a SQL statement with its positional arguments.
type Query struct {
	SQL  string
	Args []interface{}
	// Rows reports whether the statement yields a result set.
	Rows bool
	// Read reports whether the statement has no side effects.
	Read bool

	// Table and Operation label the statement for logs and metrics.
	Table     string
	Operation string
}

// Dialect identifies the SQL flavour a generator emits.
type Dialect string

const (
	// Postgres emits $n placeholders.
	Postgres Dialect = "postgres"
	// SQLite emits ? placeholders and renders ILIKE as LIKE.
	SQLite Dialect = "sqlite"
)

// Generator generates SQL for a specific provider. Every identifier it
// renders is passed through ident.Sanitize and every value becomes a
// positional argument.
type Generator interface {
	Dialect() Dialect
	GenerateSelect(q *ast.Query) (*Query, error)
	GenerateCount(q *ast.Query) (*Query, error)
	GenerateInsert(q *ast.Query) (*Query, error)
	GenerateUpdate(q *ast.Query) (*Query, error)
	GenerateDelete(q *ast.Query) (*Query, error)
	GenerateFunctionCall(name string, args ast.Record) (*Query, error)
}

// NewGenerator creates a new SQL generator for the given provider.
func NewGenerator(provider string) (Generator, error) {
	switch provider {
	case "postgresql", "postgres", "":
		return &PostgresGenerator{base{dialect: Postgres}}, nil
	case "sqlite", "sqlite3":
		return &SQLiteGenerator{base{dialect: SQLite}}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// PostgresGenerator generates PostgreSQL SQL.
type PostgresGenerator struct{ base }

// SQLiteGenerator generates SQLite SQL.
type SQLiteGenerator struct{ base }

// GenerateFunctionCall renders a call of a set-returning or scalar function
// with named arguments.
func (g *PostgresGenerator) GenerateFunctionCall(name string, args ast.Record) (*Query, error) {
	w := g.newWriter()
	w.WriteString("SELECT * FROM ")
	w.ident(name)
	w.WriteString("(")
	for i, key := range sortedKeys(args) {
		if i > 0 {
			w.WriteString(", ")
		}
		w.ident(key)
		w.WriteString(" => ")
		w.arg(args[key])
	}
	w.WriteString(")")
	return w.query(true)
}

// GenerateFunctionCall is not supported by SQLite.
func (g *SQLiteGenerator) GenerateFunctionCall(name string, args ast.Record) (*Query, error) {
	return nil, types.Errorf(types.CodeUnknownProcedure, "sqlite does not support stored functions: %s", name)
}

type base struct {
	dialect Dialect
}

func (b *base) Dialect() Dialect {
	return b.dialect
}

func (b *base) newWriter() *writer {
	return &writer{dialect: b.dialect}
}

// GenerateSelect renders SELECT projection FROM table WHERE ... ORDER BY ...
// LIMIT n OFFSET m. A singular read without an explicit limit fetches at most
// two rows, which is enough to tell "one" from "more than one".
func (b *base) GenerateSelect(q *ast.Query) (*Query, error) {
	w := b.newWriter()
	w.WriteString("SELECT ")
	w.projection(q.Columns)
	w.WriteString(" FROM ")
	w.ident(q.Table)
	w.where(q.Filters)

	if len(q.Ordering) > 0 {
		w.WriteString(" ORDER BY ")
		for i, o := range q.Ordering {
			if i > 0 {
				w.WriteString(", ")
			}
			w.ident(o.Column)
			if o.Direction == ast.Desc {
				w.WriteString(" DESC")
			} else {
				w.WriteString(" ASC")
			}
			switch o.Nulls {
			case ast.NullsFirst:
				w.WriteString(" NULLS FIRST")
			case ast.NullsLast:
				w.WriteString(" NULLS LAST")
			}
		}
	}

	limit := q.Limit
	if limit == nil && q.Mode.IsSingular() {
		two := 2
		limit = &two
	}
	switch {
	case limit != nil:
		w.WriteString(" LIMIT " + strconv.Itoa(*limit))
	case q.Offset != nil && b.dialect == SQLite:
		// SQLite only accepts OFFSET after a LIMIT clause.
		w.WriteString(" LIMIT -1")
	}
	if q.Offset != nil {
		w.WriteString(" OFFSET " + strconv.Itoa(*q.Offset))
	}

	return w.query(true)
}

// GenerateCount renders SELECT count(*) under the query's filters, without
// ordering or pagination.
func (b *base) GenerateCount(q *ast.Query) (*Query, error) {
	w := b.newWriter()
	w.WriteString("SELECT count(*) FROM ")
	w.ident(q.Table)
	w.where(q.Filters)
	return w.query(true)
}

// writer accumulates SQL text and arguments. The first identifier error is
// kept and reported by query.
type writer struct {
	dialect Dialect
	sb      strings.Builder
	args    []interface{}
	err     error
}

func (w *writer) WriteString(s string) {
	w.sb.WriteString(s)
}

func (w *writer) ident(name string) {
	id, err := ident.Sanitize(name)
	if err != nil {
		w.fail(err)
		return
	}
	w.sb.WriteString(id.Quote())
}

func (w *writer) projection(columns []string) {
	if len(columns) == 0 {
		w.WriteString("*")
		return
	}
	for i, col := range columns {
		if i > 0 {
			w.WriteString(", ")
		}
		w.ident(col)
	}
}

func (w *writer) arg(v interface{}) {
	w.args = append(w.args, normalizeArg(v))
	w.WriteString(w.placeholder(len(w.args)))
}

func (w *writer) placeholder(n int) string {
	if w.dialect == SQLite {
		return "?"
	}
	return "$" + strconv.Itoa(n)
}

func (w *writer) query(rows bool) (*Query, error) {
	if w.err != nil {
		return nil, w.err
	}
	return &Query{SQL: w.sb.String(), Args: w.args, Rows: rows}, nil
}

// normalizeArg encodes composite values (objects, arrays) as JSON text so
// they can be bound to json/jsonb columns.
func normalizeArg(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	switch v.(type) {
	case []byte, string, time.Time, driver.Valuer:
		return v
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		b, err := json.Marshal(v)
		if err != nil {
			return v
		}
		return string(b)
	default:
		return v
	}
}
