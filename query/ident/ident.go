// Package ident validates and quotes table and column names.
package ident

import (
	"regexp"
	"strings"

	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// MaxLength is the maximum length of one identifier segment (PostgreSQL
// NAMEDATALEN - 1).
const MaxLength = 63

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Identifier is a table or column name that passed Sanitize.
type Identifier string

// Sanitize validates name. It fails with InvalidIdentifier when the name is
// empty, has a segment longer than MaxLength, or contains anything other
// than [A-Za-z0-9_] and at most one schema-qualifying dot.
func Sanitize(name string) (Identifier, error) {
	if name == "" {
		return "", types.Errorf(types.CodeInvalidIdentifier, "identifier must not be empty")
	}
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return "", invalid(name, "at most one schema qualifier is allowed")
	}
	for _, part := range parts {
		if len(part) > MaxLength {
			return "", invalid(name, "identifier exceeds 63 characters")
		}
		if !segmentPattern.MatchString(part) {
			return "", invalid(name, "only letters, digits and underscores are allowed")
		}
	}
	return Identifier(name), nil
}

// MustSanitize is like Sanitize but panics on error. Intended for constants.
func MustSanitize(name string) Identifier {
	id, err := Sanitize(name)
	if err != nil {
		panic(err)
	}
	return id
}

// SanitizeAll validates every name and stops at the first failure.
func SanitizeAll(names []string) ([]Identifier, error) {
	out := make([]Identifier, 0, len(names))
	for _, name := range names {
		id, err := Sanitize(name)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// Quote renders the identifier as a double-quoted SQL identifier, quoting
// schema and name separately.
func (id Identifier) Quote() string {
	parts := strings.Split(string(id), ".")
	for i, p := range parts {
		parts[i] = `"` + p + `"`
	}
	return strings.Join(parts, ".")
}

// Name returns the unqualified part of the identifier.
func (id Identifier) Name() string {
	s := string(id)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// String returns the raw identifier.
func (id Identifier) String() string {
	return string(id)
}

func invalid(name, reason string) *types.Error {
	return &types.Error{
		Code:    types.CodeInvalidIdentifier,
		Message: "invalid identifier " + quoteForMessage(name),
		Details: reason,
	}
}

func quoteForMessage(name string) string {
	if len(name) > 80 {
		name = name[:80] + "..."
	}
	return `"` + strings.ReplaceAll(name, `"`, `\"`) + `"`
}
