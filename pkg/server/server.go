// Package server exposes report analysis over HTTP.
//
// Routes:
//
//	POST /api/v1/reports   analyze a report body, answer with findings and groups
//	GET  /api/v1/formats   list detectable formats
//	GET  /healthz          liveness
//	GET  /readyz           readiness (parser canary, memory)
//	GET  /metrics          Prometheus exposition
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/exploopio/reportlens/pkg/core"
	"github.com/exploopio/reportlens/pkg/errors"
	"github.com/exploopio/reportlens/pkg/health"
	"github.com/exploopio/reportlens/pkg/intake"
	"github.com/exploopio/reportlens/pkg/metrics"
	"github.com/exploopio/reportlens/pkg/pipeline"
)

// Config configures the HTTP server.
type Config struct {
	Addr              string          `yaml:"addr"`
	ReadHeaderTimeout time.Duration   `yaml:"read_header_timeout"`
	ReadTimeout       time.Duration   `yaml:"read_timeout"`
	WriteTimeout      time.Duration   `yaml:"write_timeout"`
	IdleTimeout       time.Duration   `yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration   `yaml:"shutdown_timeout"`
	MaxBodyBytes      int64           `yaml:"max_body_bytes"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
}

// DefaultConfig returns the defaults used by the CLI.
func DefaultConfig() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
		ShutdownTimeout:   30 * time.Second,
		MaxBodyBytes:      intake.MaxReportSize,
		RateLimit:         DefaultRateLimitConfig(),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	v := core.NewValidator()
	v.Required("server.addr", c.Addr)
	v.MinDuration("server.read_header_timeout", c.ReadHeaderTimeout, time.Second)
	v.MinDuration("server.read_timeout", c.ReadTimeout, time.Second)
	v.MinDuration("server.write_timeout", c.WriteTimeout, time.Second)
	v.MinDuration("server.shutdown_timeout", c.ShutdownTimeout, time.Second)
	v.Range("server.max_body_bytes", float64(c.MaxBodyBytes), 1, float64(intake.MaxReportSize))
	if c.RateLimit.Enabled {
		v.Custom("server.rate_limit.requests_per_sec", func() bool {
			return c.RateLimit.RequestsPerSec > 0
		}, "must be positive")
		v.Min("server.rate_limit.burst", c.RateLimit.Burst, 1)
	}
	return v.Validate()
}

// Options carries the server's collaborators. Nil fields get defaults.
type Options struct {
	Analyzer *pipeline.Analyzer
	Metrics  metrics.Collector
	Logger   core.Logger
	Version  string
}

// Server is the reportlens HTTP API.
type Server struct {
	cfg      Config
	analyzer *pipeline.Analyzer
	metrics  metrics.Collector
	logger   core.Logger
	health   *health.Handler
	limiter  *RateLimiter
	router   chi.Router
}

// New builds the server and its routes. Call Close when done with a server
// that was never started with Serve.
func New(cfg Config, opts Options) *Server {
	s := &Server{
		cfg:      cfg,
		analyzer: opts.Analyzer,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
	if s.logger == nil {
		s.logger = &core.NopLogger{}
	}
	if s.metrics == nil {
		s.metrics = metrics.NewPrometheusCollector(&metrics.PrometheusConfig{RegisterDefaultMetrics: true})
	}
	if s.analyzer == nil {
		s.analyzer = pipeline.New(&pipeline.Config{Metrics: s.metrics, Logger: s.logger})
	}
	if s.cfg.MaxBodyBytes <= 0 {
		s.cfg.MaxBodyBytes = intake.MaxReportSize
	}

	s.health = health.NewHandler(health.WithVersion(opts.Version))
	s.health.Register("parsers", &health.ParserCheck{Registry: s.analyzer.Registry()})
	s.health.Register("memory", &health.MemoryCheck{})
	s.health.Register("system_memory", &health.SystemMemoryCheck{MaxUsagePercent: 95})

	if cfg.RateLimit.Enabled {
		s.limiter = NewRateLimiter(cfg.RateLimit, s.logger)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(instrument(s.metrics))

	r.Method(http.MethodGet, "/healthz", s.health.LivenessHandler())
	r.Method(http.MethodGet, "/readyz", s.health.ReadinessHandler())
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}
		r.Get("/formats", s.handleFormats)
		r.Post("/reports", s.handleReports)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, &errors.APIError{
			StatusCode: http.StatusNotFound,
			Code:       "not_found",
			Message:    "no route for " + r.URL.Path,
			RequestID:  requestID(r),
		})
	})
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Health returns the health check handler.
func (s *Server) Health() *health.Handler {
	return s.health
}

// ListenAndServe listens on the configured address and serves until ctx
// is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.E(errors.KindInternal, "server.ListenAndServe", "listen "+s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then marks the server unready and
// drains in-flight requests for up to ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.Close()

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.health.SetReady(false)
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.E(errors.KindInternal, "server.Serve", "shutdown", err)
	}
	return nil
}

// Close releases background resources.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}
