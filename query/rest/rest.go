// Package rest maps queries to and from the table endpoint's HTTP shape:
// column=operator.value filters, select/order/limit/offset/on_conflict
// parameters, and the Prefer, Accept and Range headers.
package rest

import (
	"fmt"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// Media types.
const (
	MediaJSON          = "application/json"
	MediaMsgpack       = "application/msgpack"
	MediaObject        = "application/vnd.pgrst.object+json"
	MediaObjectMsgpack = "application/vnd.pgrst.object+msgpack"
)

// Header names.
const (
	HeaderPrefer       = "Prefer"
	HeaderRange        = "Range"
	HeaderContentRange = "Content-Range"
	HeaderClientInfo   = "X-Client-Info"
	HeaderRequestID    = "X-Request-Id"
	HeaderDeprecated   = "X-Client-Deprecated"
)

// Reserved query parameters. Every other parameter is a filter.
const (
	paramSelect     = "select"
	paramOrder      = "order"
	paramLimit      = "limit"
	paramOffset     = "offset"
	paramOnConflict = "on_conflict"
)

// Format is a response encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatMsgpack
)

// ContentType returns the media type of the format.
func (f Format) ContentType() string {
	if f == FormatMsgpack {
		return MediaMsgpack
	}
	return MediaJSON
}

// Preferences are the parsed Prefer headers.
type Preferences struct {
	Count      ast.CountMode
	Return     string // "representation" or "minimal"
	Resolution string // "merge-duplicates" or "ignore-duplicates"
}

// ParsePreferences reads every Prefer header. Unknown preferences are
// ignored.
func ParsePreferences(h http.Header) (Preferences, error) {
	var p Preferences
	for _, line := range h.Values(HeaderPrefer) {
		for _, item := range strings.Split(line, ",") {
			key, value, _ := strings.Cut(strings.TrimSpace(item), "=")
			switch strings.ToLower(key) {
			case "count":
				if value != string(ast.CountExact) {
					return p, types.Errorf(types.CodeInvalidPredicate, "unsupported count preference %q", value)
				}
				p.Count = ast.CountExact
			case "return":
				if value != "representation" && value != "minimal" {
					return p, types.Errorf(types.CodeInvalidPredicate, "unsupported return preference %q", value)
				}
				p.Return = value
			case "resolution":
				if value != "merge-duplicates" && value != "ignore-duplicates" {
					return p, types.Errorf(types.CodeInvalidPredicate, "unsupported resolution preference %q", value)
				}
				p.Resolution = value
			}
		}
	}
	return p, nil
}

// String renders the preferences as a Prefer header value.
func (p Preferences) String() string {
	var parts []string
	if p.Count != ast.CountNone {
		parts = append(parts, "count="+string(p.Count))
	}
	if p.Return != "" {
		parts = append(parts, "return="+p.Return)
	}
	if p.Resolution != "" {
		parts = append(parts, "resolution="+p.Resolution)
	}
	return strings.Join(parts, ", ")
}

// Negotiate reads the Accept header: the requested row mode and response
// format. Unparseable entries are skipped.
func Negotiate(h http.Header) (ast.Mode, Format) {
	mode, format := ast.ModeList, FormatJSON
	for _, line := range h.Values("Accept") {
		for _, entry := range strings.Split(line, ",") {
			mt, params, err := mime.ParseMediaType(strings.TrimSpace(entry))
			if err != nil {
				continue
			}
			switch mt {
			case MediaMsgpack:
				format = FormatMsgpack
			case MediaObject, MediaObjectMsgpack:
				mode = ast.ModeSingle
				if params["nullable"] == "true" {
					mode = ast.ModeMaybeSingle
				}
				if mt == MediaObjectMsgpack {
					format = FormatMsgpack
				}
			}
		}
	}
	return mode, format
}

// Accept renders the Accept header for a mode and format.
func Accept(mode ast.Mode, format Format) string {
	if !mode.IsSingular() {
		return format.ContentType()
	}
	mt := MediaObject
	if format == FormatMsgpack {
		mt = MediaObjectMsgpack
	}
	if mode == ast.ModeMaybeSingle {
		mt += ";nullable=true"
	}
	return mt
}

// ParseRange parses a Range header such as "0-49", "items=0-49" or "10-".
// It returns the offset and, when bounded, the limit.
func ParseRange(s string) (offset int, limit *int, err error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "items=")
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return 0, nil, types.Errorf(types.CodeInvalidRange, "invalid range %q", s)
	}
	offset, err = strconv.Atoi(strings.TrimSpace(from))
	if err != nil || offset < 0 {
		return 0, nil, types.Errorf(types.CodeInvalidRange, "invalid range start in %q", s)
	}
	if strings.TrimSpace(to) == "" {
		return offset, nil, nil
	}
	end, err := strconv.Atoi(strings.TrimSpace(to))
	if err != nil || end < offset {
		return 0, nil, types.Errorf(types.CodeInvalidRange, "invalid range end in %q", s)
	}
	if end-offset == math.MaxInt {
		return offset, nil, nil
	}
	n := end - offset + 1
	return offset, &n, nil
}

// ContentRange renders the Content-Range header for rows returned from
// offset, with the exact total when it was counted: "0-9/25", "*/0",
// "0-9/*".
func ContentRange(offset, rows int, total *int64) string {
	t := "*"
	if total != nil {
		t = strconv.FormatInt(*total, 10)
	}
	if rows == 0 {
		return "*/" + t
	}
	return fmt.Sprintf("%d-%d/%s", offset, offset+rows-1, t)
}
