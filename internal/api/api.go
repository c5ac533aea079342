// Package api serves the codevox recognition engine over HTTP.
//
// Endpoints:
//
//	POST /v1/format    rewrite identifier mentions in a transcript
//	POST /v1/classify  list the identifiers found in free text
//	POST /v1/match     resolve a spoken phrase against identifiers
//	GET  /healthz      liveness probe
//	GET  /readyz       readiness probe
//	GET  /metrics      Prometheus scrape endpoint
//
// Request and response bodies are JSON. Malformed requests are answered with
// 400 and a body of the form {"error": "..."}.
package api

import (
	"net/http"

	"github.com/MrWong99/codevox/internal/engine"
	"github.com/MrWong99/codevox/internal/health"
	"github.com/MrWong99/codevox/internal/observe"
)

// DefaultMaxBodyBytes caps request bodies.
const DefaultMaxBodyBytes = 1 << 20

// Option configures a [Server].
type Option func(*Server)

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithHealth mounts the probe endpoints of h.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// WithMaxBodyBytes caps request bodies at n bytes.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// Server holds the HTTP handlers. The engine is looked up on every request,
// so a reloaded engine takes effect without restarting the server.
type Server struct {
	engine         func() *engine.Engine
	metrics        *observe.Metrics
	health         *health.Handler
	metricsHandler http.Handler
	maxBody        int64
}

// New returns a Server resolving the current engine through current.
func New(current func() *engine.Engine, opts ...Option) *Server {
	s := &Server{
		engine:  current,
		maxBody: DefaultMaxBodyBytes,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Handler returns the routed handler wrapped in the observability middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/format", s.handleFormat)
	mux.HandleFunc("POST /v1/classify", s.handleClassify)
	mux.HandleFunc("POST /v1/match", s.handleMatch)
	if s.health != nil {
		s.health.Register(mux)
	}
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}
	return observe.Middleware(s.metrics)(mux)
}
