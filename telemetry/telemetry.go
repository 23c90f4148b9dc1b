// Package telemetry collects per-table statement and per-route request
// metrics in process, renders them for /metrics, and optionally exports
// snapshots to an HTTP endpoint.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Usantos1/primecamp-ofc-sub009/internal/debug"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
)

// QueryStats aggregates the statements run for one table and operation.
type QueryStats struct {
	Table         string               `json:"table"`
	Operation     string               `json:"operation"`
	Count         int64                `json:"count"`
	Errors        int64                `json:"errors"`
	Rows          int64                `json:"rows"`
	TotalDuration time.Duration        `json:"total_duration"`
	MaxDuration   time.Duration        `json:"max_duration"`
	Codes         map[types.Code]int64 `json:"codes,omitempty"`
}

// RequestStats aggregates the HTTP requests answered for one route and
// status.
type RequestStats struct {
	Route         string        `json:"route"`
	Status        int           `json:"status"`
	Count         int64         `json:"count"`
	TotalDuration time.Duration `json:"total_duration"`
}

// Snapshot is a point-in-time copy of the collected metrics.
type Snapshot struct {
	Since    time.Time      `json:"since"`
	Taken    time.Time      `json:"taken"`
	Version  string         `json:"version,omitempty"`
	Queries  []QueryStats   `json:"queries"`
	Requests []RequestStats `json:"requests"`
}

type queryKey struct{ table, operation string }

type requestKey struct {
	route  string
	status int
}

// Collector collects metrics. It implements executor.MetricsRecorder and is
// safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	since    time.Time
	queries  map[queryKey]*QueryStats
	requests map[requestKey]*RequestStats

	version       string
	endpoint      string
	httpClient    *http.Client
	flushInterval time.Duration
	stopChan      chan struct{}
	wg            sync.WaitGroup
	stopOnce      sync.Once
}

// Option configures a Collector.
type Option func(*Collector)

// WithVersion sets the version reported in snapshots.
func WithVersion(v string) Option {
	return func(c *Collector) { c.version = v }
}

// WithExport exports a snapshot to endpoint every interval once Start is
// called.
func WithExport(endpoint string, interval time.Duration) Option {
	return func(c *Collector) {
		c.endpoint = endpoint
		if interval > 0 {
			c.flushInterval = interval
		}
	}
}

// WithHTTPClient replaces the export HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Collector) { c.httpClient = client }
}

// NewCollector creates an empty collector.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		since:         time.Now(),
		queries:       make(map[queryKey]*QueryStats),
		requests:      make(map[requestKey]*RequestStats),
		httpClient:    &http.Client{Timeout: 5 * time.Second},
		flushInterval: 30 * time.Second,
		stopChan:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RecordQuery records one statement execution.
func (c *Collector) RecordQuery(table, operation string, duration time.Duration, rows int, code types.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := queryKey{table, operation}
	s, ok := c.queries[k]
	if !ok {
		s = &QueryStats{Table: table, Operation: operation}
		c.queries[k] = s
	}
	s.Count++
	s.Rows += int64(rows)
	s.TotalDuration += duration
	if duration > s.MaxDuration {
		s.MaxDuration = duration
	}
	if code != "" {
		s.Errors++
		if s.Codes == nil {
			s.Codes = make(map[types.Code]int64)
		}
		s.Codes[code]++
	}
}

// RecordRequest records one answered HTTP request.
func (c *Collector) RecordRequest(route string, status int, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := requestKey{route, status}
	s, ok := c.requests[k]
	if !ok {
		s = &RequestStats{Route: route, Status: status}
		c.requests[k] = s
	}
	s.Count++
	s.TotalDuration += duration
}

// Snapshot copies the collected metrics, sorted by key.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{Since: c.since, Taken: time.Now(), Version: c.version}
	for _, s := range c.queries {
		cp := *s
		if s.Codes != nil {
			cp.Codes = make(map[types.Code]int64, len(s.Codes))
			for code, n := range s.Codes {
				cp.Codes[code] = n
			}
		}
		snap.Queries = append(snap.Queries, cp)
	}
	for _, s := range c.requests {
		snap.Requests = append(snap.Requests, *s)
	}

	sort.Slice(snap.Queries, func(i, j int) bool {
		a, b := snap.Queries[i], snap.Queries[j]
		if a.Table != b.Table {
			return a.Table < b.Table
		}
		return a.Operation < b.Operation
	})
	sort.Slice(snap.Requests, func(i, j int) bool {
		a, b := snap.Requests[i], snap.Requests[j]
		if a.Route != b.Route {
			return a.Route < b.Route
		}
		return a.Status < b.Status
	})
	return snap
}

// Reset drops everything collected so far.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.since = time.Now()
	c.queries = make(map[queryKey]*QueryStats)
	c.requests = make(map[requestKey]*RequestStats)
}

// WriteText writes the snapshot in a line-oriented text exposition format.
func (c *Collector) WriteText(w io.Writer) error {
	snap := c.Snapshot()
	var b strings.Builder
	for _, q := range snap.Queries {
		labels := fmt.Sprintf(`table=%q,operation=%q`, q.Table, q.Operation)
		fmt.Fprintf(&b, "tablequery_statements_total{%s} %d\n", labels, q.Count)
		fmt.Fprintf(&b, "tablequery_statement_rows_total{%s} %d\n", labels, q.Rows)
		fmt.Fprintf(&b, "tablequery_statement_seconds_sum{%s} %g\n", labels, q.TotalDuration.Seconds())
		fmt.Fprintf(&b, "tablequery_statement_seconds_max{%s} %g\n", labels, q.MaxDuration.Seconds())

		codes := make([]string, 0, len(q.Codes))
		for code := range q.Codes {
			codes = append(codes, string(code))
		}
		sort.Strings(codes)
		for _, code := range codes {
			fmt.Fprintf(&b, "tablequery_statement_errors_total{%s,code=%q} %d\n", labels, code, q.Codes[types.Code(code)])
		}
	}
	for _, r := range snap.Requests {
		labels := fmt.Sprintf(`route=%q,status="%d"`, r.Route, r.Status)
		fmt.Fprintf(&b, "tablequery_requests_total{%s} %d\n", labels, r.Count)
		fmt.Fprintf(&b, "tablequery_request_seconds_sum{%s} %g\n", labels, r.TotalDuration.Seconds())
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Start begins periodic export when an endpoint is configured and export
// is not disabled through TABLEQUERY_TELEMETRY_DISABLED.
func (c *Collector) Start() {
	if c.endpoint == "" || Disabled() {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.flush()
			case <-c.stopChan:
				c.flush()
				return
			}
		}
	}()
}

// Close stops the export loop after a final flush.
func (c *Collector) Close() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
	c.wg.Wait()
}

func (c *Collector) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Export(ctx); err != nil {
		debug.Warn("telemetry export failed", "endpoint", c.endpoint, "error", err)
	}
}

// Export posts the current snapshot as JSON to the configured endpoint.
func (c *Collector) Export(ctx context.Context) error {
	if c.endpoint == "" {
		return nil
	}
	payload, err := json.Marshal(c.Snapshot())
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build export request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "tablequery-go/"+c.version)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("export snapshot: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Disabled reports whether export is switched off through the environment.
func Disabled() bool {
	v := os.Getenv("TABLEQUERY_TELEMETRY_DISABLED")
	return v == "1" || v == "true"
}
