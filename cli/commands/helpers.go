package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Usantos1/primecamp-ofc-sub009/cli/internal/config"
	"github.com/Usantos1/primecamp-ofc-sub009/cli/internal/ui"
	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/query/rest"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/client"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// openClient connects to the configured database, or to the table
// endpoint when a remote URL is set.
func openClient(ctx context.Context, cfg *config.Config) (*client.Client, error) {
	if cfg.Remote.URL != "" {
		opts := []client.RemoteOption{}
		if cfg.Remote.APIKey != "" {
			opts = append(opts, client.WithAPIKey(cfg.Remote.APIKey))
		}
		if cfg.Remote.Msgpack {
			opts = append(opts, client.WithMsgpack())
		}
		return client.NewRemote(cfg.Remote.URL, opts...)
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("no database configured: set database.url, TABLEQUERY_DATABASE_URL or DATABASE_URL")
	}
	retry := cfg.Retry
	return client.Connect(ctx, client.Config{
		Provider: providerFor(cfg),
		URL:      cfg.Database.URL,
		Pool:     cfg.Pool,
		Retry:    &retry,
	})
}

// providerFor returns the configured provider, or one guessed from the URL.
func providerFor(cfg *config.Config) string {
	if cfg.Database.Provider != "" {
		return cfg.Database.Provider
	}
	return detectProvider(cfg.Database.URL)
}

func detectProvider(connStr string) string {
	if strings.Contains(connStr, "sqlite") || strings.HasPrefix(connStr, "file:") || strings.HasSuffix(connStr, ".db") {
		return "sqlite"
	}
	return "postgresql"
}

// queryFlags describe a table request the way the endpoint receives it.
type queryFlags struct {
	method     string
	columns    string
	where      []string
	order      string
	limit      int
	offset     int
	count      bool
	single     bool
	maybe      bool
	data       string
	onConflict string
	resolution string
	returning  bool
	asJSON     bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.method, "method", "X", http.MethodGet, "GET, HEAD, POST, PATCH or DELETE")
	fl.StringVarP(&f.columns, "select", "s", "", "columns to return, e.g. id,nome")
	fl.StringArrayVarP(&f.where, "where", "w", nil, "filter column=operator.value, repeatable (e.g. situacao=eq.ativo)")
	fl.StringVarP(&f.order, "order", "o", "", "ordering, e.g. nome.asc,id.desc.nullslast")
	fl.IntVar(&f.limit, "limit", -1, "maximum rows")
	fl.IntVar(&f.offset, "offset", -1, "rows to skip")
	fl.BoolVarP(&f.count, "count", "c", false, "compute the exact count")
	fl.BoolVar(&f.single, "single", false, "expect exactly one row")
	fl.BoolVar(&f.maybe, "maybe-single", false, "expect at most one row")
	fl.StringVarP(&f.data, "data", "d", "", "JSON body for POST and PATCH")
	fl.StringVar(&f.onConflict, "on-conflict", "", "conflict columns for an upsert")
	fl.StringVar(&f.resolution, "resolution", "", "merge-duplicates or ignore-duplicates")
	fl.BoolVarP(&f.returning, "return", "r", false, "return the written rows")
	fl.BoolVar(&f.asJSON, "json", false, "print the raw envelope as JSON")
}

// request renders the flags as an endpoint request on table.
func (f *queryFlags) request(table string) (*http.Request, error) {
	var params []string
	add := func(k, v string) {
		params = append(params, url.QueryEscape(k)+"="+url.QueryEscape(v))
	}
	if f.columns != "" {
		add("select", f.columns)
	}
	for _, w := range f.where {
		col, expr, ok := strings.Cut(w, "=")
		if !ok {
			return nil, types.Errorf(types.CodeInvalidPredicate, "filter %q must be column=operator.value", w)
		}
		add(col, expr)
	}
	if f.order != "" {
		add("order", f.order)
	}
	if f.limit >= 0 {
		add("limit", strconv.Itoa(f.limit))
	}
	if f.offset >= 0 {
		add("offset", strconv.Itoa(f.offset))
	}
	if f.onConflict != "" {
		add("on_conflict", f.onConflict)
	}

	var body io.Reader
	if f.data != "" {
		body = bytes.NewBufferString(f.data)
	}
	method := strings.ToUpper(f.method)
	req, err := http.NewRequest(method, "/tables/"+url.PathEscape(table)+"?"+strings.Join(params, "&"), body)
	if err != nil {
		return nil, err
	}

	prefs := rest.Preferences{Resolution: f.resolution}
	if f.count {
		prefs.Count = ast.CountExact
	}
	if f.returning {
		prefs.Return = "representation"
	}
	if p := prefs.String(); p != "" {
		req.Header.Set(rest.HeaderPrefer, p)
	}
	mode := ast.ModeList
	switch {
	case f.single:
		mode = ast.ModeSingle
	case f.maybe:
		mode = ast.ModeMaybeSingle
	}
	req.Header.Set("Accept", rest.Accept(mode, rest.FormatJSON))
	return req, nil
}

// build decodes the flags into a query, exactly as the endpoint would.
func (f *queryFlags) build(table string) (*ast.Query, error) {
	req, err := f.request(table)
	if err != nil {
		return nil, err
	}
	return rest.NewDecoder(1).Decode(req, table)
}

// printResponse prints an envelope as a table, or as JSON with --json. A
// failed envelope is also returned as the command error.
func printResponse(w io.Writer, resp types.Response, columns []string, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
		return resp.Err()
	}
	if resp.Error != nil {
		ui.PrintErrorCode(w, string(resp.Error.Code), resp.Error.Message)
		if resp.Error.Details != "" {
			fmt.Fprintf(w, "  details: %s\n", resp.Error.Details)
		}
		if resp.Error.Hint != "" {
			fmt.Fprintf(w, "  hint: %s\n", resp.Error.Hint)
		}
		return resp.Error
	}
	if resp.Data != nil {
		ui.PrintRecords(w, resp.Rows(), columns)
	}
	if resp.Count != nil {
		ui.PrintCount(w, *resp.Count)
	}
	return nil
}

// starterTables renders allow-list entries for a comma-separated list of
// tables, each allowing select.
func starterTables(list string) string {
	var b strings.Builder
	for _, t := range strings.Split(list, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		fmt.Fprintf(&b, "  %s:\n    operations: [select]\n", t)
	}
	if b.Len() == 0 {
		return "  {}"
	}
	return strings.TrimRight(b.String(), "\n")
}
