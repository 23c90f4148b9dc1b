package client

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// Scan maps the rows of resp into structs. Columns are matched to fields
// by db tag, then json tag, then case-insensitive field name; unmatched
// columns are ignored. A failed response returns its error.
func Scan[T any](resp types.Response) ([]T, error) {
	if resp.Error != nil {
		return nil, resp.Error
	}
	rows := resp.Rows()
	results := make([]T, 0, len(rows))
	for i, row := range rows {
		var result T
		if err := mapRow(reflect.ValueOf(&result).Elem(), row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// ScanOne maps the single row of resp into a struct. It returns nil when
// the response carries no row (MaybeSingle with zero rows).
func ScanOne[T any](resp types.Response) (*T, error) {
	if resp.Error != nil {
		return nil, resp.Error
	}
	row := resp.Row()
	if row == nil {
		rows := resp.Rows()
		if len(rows) == 0 {
			return nil, nil
		}
		if len(rows) > 1 {
			return nil, types.Errorf(types.CodeNotExactlyOneRow, "expected one row, got %d", len(rows))
		}
		row = rows[0]
	}

	var result T
	if err := mapRow(reflect.ValueOf(&result).Elem(), row); err != nil {
		return nil, err
	}
	return &result, nil
}

func mapRow(val reflect.Value, row map[string]interface{}) error {
	if val.Kind() != reflect.Struct {
		return fmt.Errorf("scan target must be a struct, got %s", val.Type())
	}
	typ := val.Type()
	for col, v := range row {
		field, ok := findFieldByName(typ, col)
		if !ok {
			continue
		}
		if err := assign(val.FieldByIndex(field.Index), v); err != nil {
			return fmt.Errorf("column %s: %w", col, err)
		}
	}
	return nil
}

// findFieldByName finds a struct field by column name (db tag, json tag or
// field name)
func findFieldByName(typ reflect.Type, col string) (reflect.StructField, bool) {
	var fold reflect.StructField
	found := false
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		if tagName(field, "db") == col || tagName(field, "json") == col {
			return field, true
		}
		if !found && strings.EqualFold(field.Name, col) {
			fold, found = field, true
		}
	}
	return fold, found
}

func tagName(field reflect.StructField, key string) string {
	tag := field.Tag.Get(key)
	name, _, _ := strings.Cut(tag, ",")
	return name
}

var timeType = reflect.TypeOf(time.Time{})

func assign(dst reflect.Value, v interface{}) error {
	if v == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	if dst.Kind() == reflect.Pointer {
		ptr := reflect.New(dst.Type().Elem())
		if err := assign(ptr.Elem(), v); err != nil {
			return err
		}
		dst.Set(ptr)
		return nil
	}

	src := reflect.ValueOf(v)
	if dst.Type() == timeType {
		if s, ok := v.(string); ok {
			t, err := parseTime(s)
			if err != nil {
				return err
			}
			dst.Set(reflect.ValueOf(t))
			return nil
		}
	}
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}
	if isNumber(src.Kind()) && isNumber(dst.Kind()) {
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	if src.Kind() == reflect.String && dst.Kind() == reflect.String {
		dst.SetString(src.String())
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", v, dst.Type())
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as time", s)
}
