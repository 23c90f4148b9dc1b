package ident

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// listLexer tokenizes column lists such as "id, nome" or "*". Any character
// outside the rules is a lexer error, which surfaces as InvalidIdentifier.
var listLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Star", Pattern: `\*`},
	{Name: "Ident", Pattern: `[A-Za-z0-9_]+(?:\.[A-Za-z0-9_]+)*`},
	{Name: "Punct", Pattern: `[,()]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

type columnList struct {
	Items []*columnItem `@@ ( "," @@ )*`
}

type columnItem struct {
	Name  string      `( @Star | @Ident )`
	Embed *columnList `( "(" @@ ")" )?`
}

var listParser = participle.MustBuild[columnList](
	participle.Lexer(listLexer),
	participle.Elide("Whitespace"),
)

// ParseProjection parses a select list. It returns nil for "*" (and for an
// empty string), or the sanitized column names. Embedded projections like
// "*,lessons(*)" are rejected.
func ParseProjection(s string) ([]Identifier, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return parseList(s, true)
}

// ParseColumns parses a comma-separated list of column names, as used by
// on_conflict. "*" is not allowed.
func ParseColumns(s string) ([]Identifier, error) {
	if strings.TrimSpace(s) == "" {
		return nil, types.Errorf(types.CodeInvalidIdentifier, "column list must not be empty")
	}
	return parseList(s, false)
}

func parseList(s string, allowStar bool) ([]Identifier, error) {
	list, err := listParser.ParseString("", s)
	if err != nil {
		return nil, &types.Error{
			Code:    types.CodeInvalidIdentifier,
			Message: "invalid column list " + quoteForMessage(s),
			Details: err.Error(),
			Cause:   err,
		}
	}

	var (
		star    bool
		columns []Identifier
	)
	for _, item := range list.Items {
		if item.Embed != nil {
			return nil, &types.Error{
				Code:    types.CodeInvalidIdentifier,
				Message: "embedded projections are not supported",
				Details: s,
				Hint:    "query the related table with a separate call",
			}
		}
		if item.Name == "*" {
			if !allowStar {
				return nil, invalid(s, "* is not allowed here")
			}
			star = true
			continue
		}
		id, err := Sanitize(item.Name)
		if err != nil {
			return nil, err
		}
		columns = append(columns, id)
	}
	if star {
		if len(columns) > 0 {
			return nil, invalid(s, "* cannot be combined with named columns")
		}
		return nil, nil
	}
	return columns, nil
}
