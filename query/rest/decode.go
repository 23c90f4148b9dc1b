package rest

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/query/cache"
	"github.com/Usantos1/primecamp-ofc-sub009/query/ident"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// DefaultCacheSize is the number of parsed query strings a Decoder keeps.
const DefaultCacheSize = 512

// parsed is the reusable part of a request: everything carried by the
// query string.
type parsed struct {
	columns  []string
	filters  []ast.Predicate
	ordering []ast.Ordering
	limit    *int
	offset   *int
	conflict []string
}

// Decoder reconstructs queries from table endpoint requests. Parsed query
// strings are cached; it is safe for concurrent use.
type Decoder struct {
	cache *cache.LRU[*parsed]
}

// NewDecoder creates a decoder caching up to size parsed query strings.
func NewDecoder(size int) *Decoder {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Decoder{cache: cache.New[*parsed](size, 10*time.Minute)}
}

// CacheStats returns the parse cache statistics.
func (d *Decoder) CacheStats() cache.Stats {
	return d.cache.Stats()
}

// Decode reconstructs the query of a request on table. The method selects
// the operation: GET and HEAD read, POST inserts (or upserts with a
// resolution preference), PATCH updates, DELETE deletes.
func (d *Decoder) Decode(r *http.Request, table string) (*ast.Query, error) {
	if _, err := ident.Sanitize(table); err != nil {
		return nil, err
	}

	p, err := d.parseQueryString(r.Method, table, r.URL.RawQuery)
	if err != nil {
		return nil, err
	}
	prefs, err := ParsePreferences(r.Header)
	if err != nil {
		return nil, err
	}
	mode, _ := Negotiate(r.Header)

	q := &ast.Query{
		Table:    table,
		Columns:  p.columns,
		Filters:  append([]ast.Predicate(nil), p.filters...),
		Ordering: append([]ast.Ordering(nil), p.ordering...),
		Limit:    copyInt(p.limit),
		Offset:   copyInt(p.offset),
		Mode:     mode,
		Count:    prefs.Count,
	}

	if rng := r.Header.Get(HeaderRange); rng != "" && q.Limit == nil && q.Offset == nil {
		offset, limit, err := ParseRange(rng)
		if err != nil {
			return nil, err
		}
		q.Offset, q.Limit = &offset, limit
	}

	switch r.Method {
	case http.MethodGet:
	case http.MethodHead:
		q.Head = true
	case http.MethodPost:
		rows, err := readRecords(r)
		if err != nil {
			return nil, err
		}
		m := &ast.Mutation{Kind: ast.Insert, Rows: rows}
		if prefs.Resolution != "" {
			m.Kind = ast.Upsert
			m.IgnoreDuplicates = prefs.Resolution == "ignore-duplicates"
			if len(p.conflict) == 0 {
				return nil, &types.Error{
					Code:    types.CodeMissingConflictTarget,
					Message: "upsert requires a conflict target",
					Hint:    "add on_conflict=column to the query string",
				}
			}
			m.ConflictTarget = p.conflict
		}
		q.Mutation = m
	case http.MethodPatch:
		rows, err := readRecords(r)
		if err != nil {
			return nil, err
		}
		if len(rows) != 1 {
			return nil, types.Errorf(types.CodeInvalidPayload, "update payload must be a single object")
		}
		q.Mutation = &ast.Mutation{Kind: ast.Update, Patch: rows[0]}
	case http.MethodDelete:
		q.Mutation = &ast.Mutation{Kind: ast.Delete}
	default:
		return nil, types.Errorf(types.CodeInvalidPayload, "method %s is not supported", r.Method)
	}

	if q.Mutation != nil {
		q.Mutation.Returning = prefs.Return == "representation"
	}
	return q, nil
}

func (d *Decoder) parseQueryString(method, table, raw string) (*parsed, error) {
	key := cache.Key(method+":"+table+":", raw)
	if p, ok := d.cache.Get(key); ok {
		return p, nil
	}
	p, err := parseQueryString(raw)
	if err != nil {
		return nil, err
	}
	d.cache.Set(key, p, 0)
	return p, nil
}

// parseQueryString walks the raw query string in order so that filters
// keep the order the caller wrote them in.
func parseQueryString(raw string) (*parsed, error) {
	p := &parsed{}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, types.Wrap(types.CodeInvalidPredicate, err, "malformed query string")
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, types.Wrap(types.CodeInvalidPredicate, err, "malformed query string")
		}

		switch key {
		case paramSelect:
			ids, err := ident.ParseProjection(value)
			if err != nil {
				return nil, err
			}
			p.columns = nil
			for _, id := range ids {
				p.columns = append(p.columns, id.String())
			}
		case paramOrder:
			ordering, err := parseOrder(value)
			if err != nil {
				return nil, err
			}
			p.ordering = append(p.ordering, ordering...)
		case paramLimit:
			n, err := parseNonNegative(key, value)
			if err != nil {
				return nil, err
			}
			p.limit = &n
		case paramOffset:
			n, err := parseNonNegative(key, value)
			if err != nil {
				return nil, err
			}
			p.offset = &n
		case paramOnConflict:
			ids, err := ident.ParseColumns(value)
			if err != nil {
				return nil, err
			}
			p.conflict = p.conflict[:0]
			for _, id := range ids {
				p.conflict = append(p.conflict, id.String())
			}
		default:
			pred, err := ParseFilter(key, value)
			if err != nil {
				return nil, err
			}
			p.filters = append(p.filters, pred)
		}
	}
	return p, nil
}

// ParseFilter parses one filter parameter such as situacao=eq.ativo,
// deleted_at=not.is.null or cidade=in.(Recife,"Olinda, PE").
func ParseFilter(column, expr string) (ast.Predicate, error) {
	p := ast.Predicate{Column: column}
	if rest, ok := strings.CutPrefix(expr, "not."); ok {
		p.Negate, expr = true, rest
	}

	name, value, ok := strings.Cut(expr, ".")
	if !ok {
		return p, &types.Error{
			Code:    types.CodeInvalidPredicate,
			Message: "invalid filter on " + quote(column),
			Details: "expected operator.value, got " + quote(expr),
		}
	}
	op, ok := ast.ParseOperator(name)
	if !ok {
		return p, types.Errorf(types.CodeInvalidPredicate, "unknown operator %q on %q", name, column)
	}
	p.Operator = op

	switch op {
	case ast.OpIn:
		values, err := parseValueList(value)
		if err != nil {
			return p, err
		}
		p.Value = values
	case ast.OpIs:
		switch strings.ToLower(value) {
		case "null":
			p.Value = nil
		case "true":
			p.Value = true
		case "false":
			p.Value = false
		default:
			return p, types.Errorf(types.CodeInvalidPredicate, "is accepts null, true or false, got %q", value)
		}
	case ast.OpLike, ast.OpILike:
		p.Value = strings.ReplaceAll(value, "*", "%")
	default:
		p.Value = value
	}

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

func readRecords(r *http.Request) ([]ast.Record, error) {
	if r.Body == nil {
		return nil, types.Errorf(types.CodeInvalidPayload, "request body is required")
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, types.Wrap(types.CodeInvalidPayload, err, "could not read request body")
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, types.Errorf(types.CodeInvalidPayload, "request body is required")
	}
	return ast.DecodeRecords(raw)
}

func parseNonNegative(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, types.Errorf(types.CodeInvalidRange, "%s must be a non-negative integer, got %q", name, value)
	}
	return n, nil
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	n := *p
	return &n
}
