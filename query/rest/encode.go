package rest

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// Request is the HTTP shape of a query on the table endpoint. It carries
// the query's intent, never SQL.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

// Encode renders q as a table endpoint request. The response is asked for
// in format.
func Encode(q *ast.Query, format Format) (*Request, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	req := &Request{
		Method: http.MethodGet,
		Path:   "/tables/" + url.PathEscape(q.Table),
		Header: make(http.Header),
	}
	var (
		params []string
		prefs  = Preferences{Count: q.Count}
	)
	add := func(key, value string) {
		params = append(params, url.QueryEscape(key)+"="+url.QueryEscape(value))
	}

	if q.Columns != nil {
		add(paramSelect, strings.Join(q.Columns, ","))
	}
	for _, p := range q.Filters {
		v, err := formatFilter(p)
		if err != nil {
			return nil, err
		}
		add(p.Column, v)
	}
	if len(q.Ordering) > 0 {
		terms := make([]string, 0, len(q.Ordering))
		for _, o := range q.Ordering {
			term := o.Column + "." + string(o.Direction)
			if o.Nulls != ast.NullsDefault {
				term += "." + string(o.Nulls)
			}
			terms = append(terms, term)
		}
		add(paramOrder, strings.Join(terms, ","))
	}
	if q.Limit != nil {
		add(paramLimit, strconv.Itoa(*q.Limit))
	}
	if q.Offset != nil {
		add(paramOffset, strconv.Itoa(*q.Offset))
	}

	if q.Head {
		req.Method = http.MethodHead
	}
	if m := q.Mutation; m != nil {
		var payload interface{}
		switch m.Kind {
		case ast.Insert:
			req.Method, payload = http.MethodPost, m.Rows
		case ast.Upsert:
			req.Method, payload = http.MethodPost, m.Rows
			add(paramOnConflict, strings.Join(m.ConflictTarget, ","))
			prefs.Resolution = "merge-duplicates"
			if m.IgnoreDuplicates {
				prefs.Resolution = "ignore-duplicates"
			}
		case ast.Update:
			req.Method, payload = http.MethodPatch, m.Patch
		case ast.Delete:
			req.Method = http.MethodDelete
		}
		if m.Returning {
			prefs.Return = "representation"
		}
		if payload != nil {
			body, err := json.Marshal(payload)
			if err != nil {
				return nil, types.Wrap(types.CodeInvalidPayload, err, "payload is not JSON encodable")
			}
			req.Body = body
			req.Header.Set("Content-Type", MediaJSON)
		}
	}

	req.RawQuery = strings.Join(params, "&")
	req.Header.Set("Accept", Accept(q.Mode, format))
	if s := prefs.String(); s != "" {
		req.Header.Set(HeaderPrefer, s)
	}
	return req, nil
}

func formatFilter(p ast.Predicate) (string, error) {
	var b strings.Builder
	if p.Negate {
		b.WriteString("not.")
	}
	b.WriteString(string(p.Operator))
	b.WriteByte('.')

	switch p.Operator {
	case ast.OpIn:
		values, _ := ast.ListValues(p.Value)
		b.WriteByte('(')
		for i, v := range values {
			if i > 0 {
				b.WriteByte(',')
			}
			s, err := formatValue(v)
			if err != nil {
				return "", err
			}
			if strings.ContainsAny(s, `,()"\`) || strings.TrimSpace(s) != s || s == "" {
				s = strconv.Quote(s)
			}
			b.WriteString(s)
		}
		b.WriteByte(')')
	case ast.OpIs:
		switch p.Value {
		case nil:
			b.WriteString("null")
		case true:
			b.WriteString("true")
		default:
			b.WriteString("false")
		}
	default:
		s, err := formatValue(p.Value)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

func formatValue(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case time.Time:
		return t.Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return t.String(), nil
	case driver.Valuer:
		dv, err := t.Value()
		if err != nil {
			return "", types.Wrap(types.CodeInvalidPredicate, err, "filter value could not be converted")
		}
		if dv == nil {
			return "", types.Errorf(types.CodeInvalidPredicate, "filter value must not be null")
		}
		return formatValue(dv)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", types.Wrap(types.CodeInvalidPredicate, err, "filter value could not be encoded")
	}
	return strings.Trim(string(raw), `"`), nil
}
