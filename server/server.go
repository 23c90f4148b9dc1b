// Package server exposes tables and procedures over HTTP: the generic
// table endpoint, procedure calls, health and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Usantos1/primecamp-ofc-sub009/internal/debug"
	"github.com/Usantos1/primecamp-ofc-sub009/internal/pool"
	"github.com/Usantos1/primecamp-ofc-sub009/query/ast"
	"github.com/Usantos1/primecamp-ofc-sub009/query/ident"
	"github.com/Usantos1/primecamp-ofc-sub009/query/rest"
	"github.com/Usantos1/primecamp-ofc-sub009/query/rpc"
	"github.com/Usantos1/primecamp-ofc-sub009/runtime/types"
	"github.com/Usantos1/primecamp-ofc-sub009/telemetry"
)

// DefaultMaxBodyBytes bounds request bodies.
const DefaultMaxBodyBytes = 1 << 20

// Backend runs decoded queries and procedure calls, e.g. a
// service.QueryService.
type Backend interface {
	Run(ctx context.Context, q *ast.Query) types.Response
	Call(ctx context.Context, name string, args ast.Record) types.Response
}

// Config configures a Server.
type Config struct {
	// Addr is the listen address for ListenAndServe.
	Addr string
	// Backend runs queries. Required.
	Backend Backend
	// Procedures serves /rpc calls. Without it calls go to Backend.Call.
	Procedures *rpc.Registry
	// AllowList restricts tables and procedures. Nil exposes everything.
	AllowList *AllowList
	// Auth resolves identities. Nil authenticates everyone as anon.
	Auth Authenticator
	// Pool is reported by /healthz.
	Pool *pool.Pool
	// Telemetry records requests and serves /metrics.
	Telemetry *telemetry.Collector
	// MinClientVersion flags older Go clients as deprecated.
	MinClientVersion string
	// MaxBodyBytes bounds request bodies. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
	// CacheSize bounds the parsed query string cache.
	CacheSize int
	// ShutdownTimeout bounds graceful shutdown. Zero means 10s.
	ShutdownTimeout time.Duration
}

// Server is the HTTP endpoint.
type Server struct {
	cfg     Config
	decoder *rest.Decoder
	gate    *ClientGate
	allow   *AllowList
	auth    Authenticator
	handler http.Handler
}

// New creates a server for cfg.
func New(cfg Config) (*Server, error) {
	if cfg.Backend == nil {
		return nil, errors.New("server: backend is required")
	}
	gate, err := NewClientGate(cfg.MinClientVersion)
	if err != nil {
		return nil, err
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		cfg:     cfg,
		decoder: rest.NewDecoder(cfg.CacheSize),
		gate:    gate,
		allow:   cfg.AllowList,
		auth:    cfg.Auth,
	}
	if s.allow == nil {
		debug.Warn("no allow-list configured, every table is exposed")
		s.allow = NewAllowList(AllowAll())
	}
	if s.auth == nil {
		s.auth = Anonymous()
	}

	mux := http.NewServeMux()
	// GET patterns also match HEAD.
	mux.HandleFunc("GET /tables/{table}", s.handleTable)
	mux.HandleFunc("POST /tables/{table}", s.handleTable)
	mux.HandleFunc("PATCH /tables/{table}", s.handleTable)
	mux.HandleFunc("DELETE /tables/{table}", s.handleTable)
	mux.HandleFunc("POST /rpc/{name}", s.handleRPC)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if cfg.Telemetry != nil {
		mux.HandleFunc("GET /metrics", s.handleMetrics)
	}
	s.handler = s.instrument(mux)
	return s, nil
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on cfg.Addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		debug.Info("table endpoint listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	_, format := rest.Negotiate(r.Header)
	id, ok := s.authenticate(w, r, format)
	if !ok {
		return
	}

	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}
	q, err := s.decoder.Decode(r, r.PathValue("table"))
	if err != nil {
		s.respond(w, r, format, nil, types.Fail(err))
		return
	}
	if err := s.allow.Policy().CheckTable(id, q.Table, q.Operation()); err != nil {
		s.respond(w, r, format, q, types.Fail(err))
		return
	}

	s.respond(w, r, format, q, s.cfg.Backend.Run(r.Context(), q))
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	_, format := rest.Negotiate(r.Header)
	id, ok := s.authenticate(w, r, format)
	if !ok {
		return
	}

	name := r.PathValue("name")
	if _, err := ident.Sanitize(name); err != nil {
		s.respond(w, r, format, nil, types.Fail(err))
		return
	}
	if err := s.allow.Policy().CheckProcedure(id, name); err != nil {
		s.respond(w, r, format, nil, types.Fail(err))
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		s.respond(w, r, format, nil, types.Fail(types.Wrap(types.CodeInvalidPayload, err, "could not read request body")))
		return
	}
	args, err := rpc.DecodeArgs(raw)
	if err != nil {
		s.respond(w, r, format, nil, types.Fail(err))
		return
	}

	var resp types.Response
	if s.cfg.Procedures != nil {
		resp = s.cfg.Procedures.Call(r.Context(), name, args)
	} else {
		resp = s.cfg.Backend.Call(r.Context(), name, args)
	}
	s.respond(w, r, format, nil, resp)
}

type health struct {
	Status  string          `json:"status"`
	Error   string          `json:"error,omitempty"`
	Pool    *pool.PoolStats `json:"pool,omitempty"`
	Decoder interface{}     `json:"decoder_cache"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := health{Status: "ok", Decoder: s.decoder.CacheStats()}
	status := http.StatusOK
	if s.cfg.Pool != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.cfg.Pool.HealthCheck(ctx); err != nil {
			h.Status = "unavailable"
			h.Error = err.Error()
			status = http.StatusServiceUnavailable
		}
		stats := s.cfg.Pool.Stats()
		h.Pool = &stats
	}
	writeJSON(w, status, h)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	if err := s.cfg.Telemetry.WriteText(w); err != nil {
		debug.Warn("write metrics failed", "error", err)
	}
}

// authenticate resolves the caller. A failure is answered with 401.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, format rest.Format) (Identity, bool) {
	id, err := s.auth.Authenticate(r)
	if err != nil {
		resp := types.Fail(err)
		resp.Status = http.StatusUnauthorized
		w.Header().Set("WWW-Authenticate", `Bearer realm="tablequery"`)
		s.write(w, r, format, resp)
		return Identity{}, false
	}
	return id, true
}
