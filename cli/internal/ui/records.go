package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	titleCaser = cases.Title(language.Und)
	nullColor  = color.New(color.Faint)
	codeColor  = color.New(color.FgRed, color.Bold)
	countColor = color.New(color.FgCyan)
)

// ColumnTitle turns a column name into a table header: "data_cadastro"
// becomes "Data Cadastro".
func ColumnTitle(column string) string {
	return titleCaser.String(strings.ReplaceAll(column, "_", " "))
}

// Columns returns the keys of rows. Keys in preferred come first, in that
// order; the rest follow sorted.
func Columns(rows []map[string]interface{}, preferred []string) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, c := range preferred {
		if !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	var rest []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				rest = append(rest, k)
			}
		}
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

// FormatCell renders one value for a table cell.
func FormatCell(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return nullColor.Sprint("null")
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// PrintRecords prints rows as a table with titled headers.
func PrintRecords(w io.Writer, rows []map[string]interface{}, preferred []string) {
	if len(rows) == 0 {
		printLine(w, infoStyle, "·", "no rows", nil)
		return
	}
	cols := Columns(rows, preferred)
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = ColumnTitle(c)
	}
	data := make([][]string, 0, len(rows))
	for _, row := range rows {
		line := make([]string, len(cols))
		for i, c := range cols {
			line[i] = FormatCell(row[c])
		}
		data = append(data, line)
	}
	writeTable(w, headers, data, "")
}

// PrintCount prints the exact row count of a response.
func PrintCount(w io.Writer, n int64) {
	countColor.Fprintf(w, "count: %d\n", n)
}

// PrintErrorCode prints an error code and message.
func PrintErrorCode(w io.Writer, code, message string) {
	codeColor.Fprintf(w, "%s", code)
	fmt.Fprintf(w, ": %s\n", message)
}

// PrintSQL renders a statement and its arguments as markdown.
func PrintSQL(sql string, args []interface{}) error {
	var b strings.Builder
	b.WriteString("```sql\n")
	b.WriteString(sql)
	b.WriteString("\n```\n")
	if len(args) > 0 {
		b.WriteString("\n| # | value | type |\n|---|---|---|\n")
		for i, a := range args {
			fmt.Fprintf(&b, "| %d | `%s` | %T |\n", i+1, strings.ReplaceAll(FormatCell(a), "|", `\|`), a)
		}
	}
	return PrintMarkdown(b.String())
}
