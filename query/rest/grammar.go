package rest

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// order=nome.asc,criado_em.desc.nullslast
var orderLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Ident", Pattern: `[A-Za-z0-9_]+`},
	{Name: "Punct", Pattern: `[.,]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

type orderList struct {
	Terms []*orderTerm `@@ ( "," @@ )*`
}

type orderTerm struct {
	Column    string   `@Ident`
	Modifiers []string `( "." @Ident )*`
}

var orderParser = participle.MustBuild[orderList](
	participle.Lexer(orderLexer),
	participle.Elide("Whitespace"),
)

// in.(1,2,"Recife, PE")
var valueListLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Punct", Pattern: `[(),]`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Bare", Pattern: `[^,()"]+`},
})

type valueList struct {
	Items []*listItem `"(" ( @@ ( "," @@ )* )? ")"`
}

type listItem struct {
	Quoted *string `  @String`
	Bare   *string `| @Bare`
}

var valueListParser = participle.MustBuild[valueList](
	participle.Lexer(valueListLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
)

func parseOrder(s string) ([]ast.Ordering, error) {
	list, err := orderParser.ParseString("order", s)
	if err != nil {
		return nil, &types.Error{
			Code:    types.CodeInvalidPredicate,
			Message: "invalid order " + quote(s),
			Details: err.Error(),
			Hint:    "use order=column.asc,other.desc.nullslast",
		}
	}

	out := make([]ast.Ordering, 0, len(list.Terms))
	for _, term := range list.Terms {
		o := ast.Ordering{Column: term.Column, Direction: ast.Asc}
		var seenDir, seenNulls bool
		for _, m := range term.Modifiers {
			switch strings.ToLower(m) {
			case "asc", "desc":
				if seenDir {
					return nil, types.Errorf(types.CodeInvalidPredicate, "order term %q has two directions", term.Column)
				}
				seenDir = true
				o.Direction = ast.Direction(strings.ToLower(m))
			case "nullsfirst", "nullslast":
				if seenNulls {
					return nil, types.Errorf(types.CodeInvalidPredicate, "order term %q has two nulls placements", term.Column)
				}
				seenNulls = true
				o.Nulls = ast.Nulls(strings.ToLower(m))
			default:
				return nil, types.Errorf(types.CodeInvalidPredicate, "unknown order modifier %q", m)
			}
		}
		out = append(out, o)
	}
	return out, nil
}

func parseValueList(s string) ([]interface{}, error) {
	list, err := valueListParser.ParseString("in", s)
	if err != nil {
		return nil, &types.Error{
			Code:    types.CodeInvalidPredicate,
			Message: "invalid in list " + quote(s),
			Details: err.Error(),
			Hint:    `use in.(a,b,"c,d")`,
		}
	}

	values := make([]interface{}, 0, len(list.Items))
	for _, item := range list.Items {
		if item.Quoted != nil {
			values = append(values, *item.Quoted)
			continue
		}
		values = append(values, strings.TrimSpace(*item.Bare))
	}
	return values, nil
}

func quote(s string) string {
	if len(s) > 64 {
		s = s[:64] + "..."
	}
	return `"` + s + `"`
}
