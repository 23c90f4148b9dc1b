package client

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
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/query/rest"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// HeaderErrorCode carries the error code of responses without a body
// (HEAD).
const HeaderErrorCode = "X-Error-Code"

// HTTPRunner runs queries against the table endpoint. It sends the query's
// logical intent, never SQL.
type HTTPRunner struct {
	base       *url.URL
	httpClient *http.Client
	format     rest.Format
	apiKey     string
	header     http.Header
	clientInfo string
}

// RemoteOption configures an HTTPRunner.
type RemoteOption func(*HTTPRunner)

// WithAPIKey authenticates every request with key.
func WithAPIKey(key string) RemoteOption {
	return func(r *HTTPRunner) { r.apiKey = key }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *HTTPRunner) { r.httpClient = c }
}

// WithMsgpack asks for msgpack envelopes instead of JSON.
func WithMsgpack() RemoteOption {
	return func(r *HTTPRunner) { r.format = rest.FormatMsgpack }
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) RemoteOption {
	return func(r *HTTPRunner) { r.header.Add(key, value) }
}

// WithClientInfo overrides the X-Client-Info value.
func WithClientInfo(info string) RemoteOption {
	return func(r *HTTPRunner) { r.clientInfo = info }
}

// NewHTTPRunner creates a runner for the endpoint at baseURL.
func NewHTTPRunner(baseURL string, opts ...RemoteOption) (*HTTPRunner, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}

	r := &HTTPRunner{
		base:       u,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		header:     make(http.Header),
		clientInfo: "tablequery-go/" + Version,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run encodes q, sends it and decodes the envelope.
func (r *HTTPRunner) Run(ctx context.Context, q *ast.Query) types.Response {
	req, err := rest.Encode(q, r.format)
	if err != nil {
		return types.Fail(err)
	}
	return r.do(ctx, req)
}

// Call invokes the procedure name on the endpoint.
func (r *HTTPRunner) Call(ctx context.Context, name string, args ast.Record) types.Response {
	if args == nil {
		args = ast.Record{}
	}
	body, err := json.Marshal(args)
	if err != nil {
		return types.Fail(types.Wrap(types.CodeInvalidPayload, err, "procedure arguments are not JSON encodable"))
	}
	req := &rest.Request{
		Method: http.MethodPost,
		Path:   "/rpc/" + url.PathEscape(name),
		Header: http.Header{
			"Accept":       {r.format.ContentType()},
			"Content-Type": {rest.MediaJSON},
		},
		Body: body,
	}
	return r.do(ctx, req)
}

func (r *HTTPRunner) do(ctx context.Context, req *rest.Request) types.Response {
	u := *r.base
	u.Path = r.base.Path + req.Path
	u.RawQuery = req.RawQuery

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return types.Fail(types.Wrap(types.CodeUpstreamDriverError, err, "could not build request"))
	}
	for k, vs := range r.header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	for k, vs := range req.Header {
		hreq.Header[k] = vs
	}
	hreq.Header.Set(rest.HeaderClientInfo, r.clientInfo)
	if r.apiKey != "" {
		hreq.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	hresp, err := r.httpClient.Do(hreq)
	if err != nil {
		if ctx.Err() != nil {
			return types.Fail(ctx.Err())
		}
		return types.Fail(types.Wrap(types.CodeUpstreamDriverError, err, "request to table endpoint failed"))
	}
	defer hresp.Body.Close()

	resp, err := decodeResponse(hresp, req.Method == http.MethodHead)
	if err != nil {
		return types.Fail(err)
	}
	resp.Status = hresp.StatusCode
	return resp
}

func decodeResponse(hresp *http.Response, head bool) (types.Response, error) {
	if head {
		return headResponse(hresp), nil
	}

	raw, err := io.ReadAll(hresp.Body)
	if err != nil {
		return types.Response{}, types.Wrap(types.CodeUpstreamDriverError, err, "could not read response")
	}

	var resp types.Response
	if strings.HasPrefix(hresp.Header.Get("Content-Type"), rest.MediaMsgpack) {
		dec := msgpack.NewDecoder(bytes.NewReader(raw))
		dec.UseLooseInterfaceDecoding(true)
		if err := dec.Decode(&resp); err != nil {
			return types.Response{}, types.Wrap(types.CodeUpstreamDriverError, err, "malformed msgpack envelope")
		}
		resp.Data = normalizeMsgpack(resp.Data)
		return resp, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return types.Response{}, &types.Error{
			Code:    types.CodeUpstreamDriverError,
			Message: fmt.Sprintf("malformed envelope (status %d)", hresp.StatusCode),
			Details: truncate(string(raw), 200),
			Cause:   err,
		}
	}
	resp.Data = ast.NormalizeJSON(resp.Data)
	return resp, nil
}

// headResponse rebuilds the envelope of a HEAD response from its headers.
func headResponse(hresp *http.Response) types.Response {
	if code := hresp.Header.Get(HeaderErrorCode); code != "" {
		return types.Fail(types.Errorf(types.Code(code), "request failed with status %d", hresp.StatusCode))
	}
	resp := types.OK(nil)
	if cr := hresp.Header.Get(rest.HeaderContentRange); cr != "" {
		if _, total, ok := strings.Cut(cr, "/"); ok && total != "*" {
			if n, err := strconv.ParseInt(total, 10, 64); err == nil {
				resp = resp.WithCount(n)
			}
		}
	}
	return resp
}

// normalizeMsgpack turns map[interface{}]interface{} values produced for
// non-string keys into string-keyed maps.
func normalizeMsgpack(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, item := range t {
			t[k] = normalizeMsgpack(item)
		}
		return t
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, item := range t {
			m[fmt.Sprint(k)] = normalizeMsgpack(item)
		}
		return m
	case []interface{}:
		for i, item := range t {
			t[i] = normalizeMsgpack(item)
		}
		return t
	default:
		return v
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
