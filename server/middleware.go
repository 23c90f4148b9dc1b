package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Usantos1/primecamp-ofc-sub009/internal/debug"
	"github.com/Usantos1/primecamp-ofc-sub009/query/rest"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// instrument assigns the request id, flags deprecated clients, and logs
// and records every request.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(rest.HeaderRequestID)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}
		w.Header().Set(rest.HeaderRequestID, requestID)
		logger := debug.With("request_id", requestID)

		info := r.Header.Get(rest.HeaderClientInfo)
		if v, deprecated := s.gate.Deprecated(info); deprecated {
			w.Header().Set(rest.HeaderDeprecated, "true")
			logger.Warn("deprecated client", "client_version", v, "minimum", s.cfg.MinClientVersion)
		}

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		duration := time.Since(start)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		if s.cfg.Telemetry != nil {
			s.cfg.Telemetry.RecordRequest(route, rec.status, duration)
		}
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", duration,
			"client", info,
		)
	})
}
