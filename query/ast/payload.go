package ast

import (
	"bytes"
	"encoding/json"

	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// Records converts a mutation payload into rows. It accepts a Record, a
// slice of Records, or anything that encodes to a JSON object or an array
// of objects (structs, slices of structs, typed maps).
func Records(v interface{}) ([]Record, error) {
	switch p := v.(type) {
	case nil:
		return nil, types.Errorf(types.CodeInvalidPayload, "payload must not be nil")
	case Record:
		return []Record{p}, nil
	case []Record:
		return p, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, types.Wrap(types.CodeInvalidPayload, err, "payload is not JSON encodable")
	}
	return DecodeRecords(raw)
}

// DecodeRecords parses a JSON object or array of objects. Numbers keep
// their integer-ness.
func DecodeRecords(raw []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var decoded interface{}
	if err := dec.Decode(&decoded); err != nil {
		return nil, types.Wrap(types.CodeInvalidPayload, err, "payload is not valid JSON")
	}

	switch d := NormalizeJSON(decoded).(type) {
	case map[string]interface{}:
		return []Record{d}, nil
	case []interface{}:
		rows := make([]Record, 0, len(d))
		for _, item := range d {
			row, ok := item.(map[string]interface{})
			if !ok {
				return nil, types.Errorf(types.CodeInvalidPayload, "payload array must contain only objects")
			}
			rows = append(rows, row)
		}
		return rows, nil
	default:
		return nil, types.Errorf(types.CodeInvalidPayload, "payload must be an object or an array of objects")
	}
}

// Patch converts an update payload into a single record.
func Patch(v interface{}) (Record, error) {
	rows, err := Records(v)
	if err != nil {
		return nil, err
	}
	if len(rows) != 1 {
		return nil, types.Errorf(types.CodeInvalidPayload, "update payload must be a single object")
	}
	return rows[0], nil
}

// NormalizeJSON replaces json.Number values, recursively, with int64 when
// the number is integral and float64 otherwise.
func NormalizeJSON(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]interface{}:
		for k, item := range t {
			t[k] = NormalizeJSON(item)
		}
		return t
	case []interface{}:
		for i, item := range t {
			t[i] = NormalizeJSON(item)
		}
		return t
	default:
		return v
	}
}
