// Package types provides the response envelope shared by every query path.
package types

import "errors"

// Response is the uniform {data, error, count} envelope returned by every
// query, mutation and procedure call.
type Response struct {
	Data  interface{} `json:"data" msgpack:"data"`
	Error *Error      `json:"error" msgpack:"error"`
	Count *int64      `json:"count" msgpack:"count"`

	// Status is the HTTP status of a remote call, or the status the
	// endpoint would answer with for a local one.
	Status int `json:"-" msgpack:"-"`
}

// OK creates a successful response.
func OK(data interface{}) Response {
	return Response{Data: data, Status: 200}
}

// Fail creates a failed response. Any error that is not already an *Error is
// reported as an upstream driver error.
func Fail(err error) Response {
	e := AsError(err)
	return Response{Error: e, Status: e.Code.HTTPStatus()}
}

// WithCount returns a copy of r carrying an exact row count.
func (r Response) WithCount(n int64) Response {
	r.Count = &n
	return r
}

// Err returns the response error as an error value, or nil.
func (r Response) Err() error {
	if r.Error == nil {
		return nil
	}
	return r.Error
}

// Rows returns the data as a list of records. A single-row response is
// returned as a one-element list and a nil data value as an empty list.
func (r Response) Rows() []map[string]interface{} {
	switch d := r.Data.(type) {
	case []map[string]interface{}:
		return d
	case map[string]interface{}:
		return []map[string]interface{}{d}
	case []interface{}:
		rows := make([]map[string]interface{}, 0, len(d))
		for _, item := range d {
			if m, ok := item.(map[string]interface{}); ok {
				rows = append(rows, m)
			}
		}
		return rows
	default:
		return nil
	}
}

// Row returns the data as a single record, or nil.
func (r Response) Row() map[string]interface{} {
	if m, ok := r.Data.(map[string]interface{}); ok {
		return m
	}
	return nil
}

// IsCode reports whether the response failed with the given code.
func (r Response) IsCode(code Code) bool {
	return r.Error != nil && errors.Is(r.Error, &Error{Code: code})
}
