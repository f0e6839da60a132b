// Package health serves liveness and readiness checks for the reportlens
// API. Readiness runs the registered checks concurrently under a timeout.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/exploopio/reportlens/pkg/core"
	"github.com/exploopio/reportlens/pkg/report"
)

// Checker is one readiness check.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// CheckFunc adapts a function to Checker.
type CheckFunc func(ctx context.Context) CheckResult

func (f CheckFunc) Name() string                          { return "" }
func (f CheckFunc) Check(ctx context.Context) CheckResult { return f(ctx) }

// Status is the outcome of a check or of the whole readiness check.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult holds the result of a single check.
type CheckResult struct {
	Status     Status         `json:"status"`
	Message    string         `json:"message,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMS int64          `json:"duration_ms"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Response is the readiness response body.
type Response struct {
	Status        Status                 `json:"status"`
	Timestamp     time.Time              `json:"timestamp"`
	Version       string                 `json:"version,omitempty"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	Checks        map[string]CheckResult `json:"checks,omitempty"`
}

// =============================================================================
// Handler
// =============================================================================

// Handler runs registered checks and serves the health endpoints.
type Handler struct {
	mu     sync.RWMutex
	checks map[string]Checker
	ready  bool

	version     string
	startTime   time.Time
	timeout     time.Duration
	hideDetails bool
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithVersion sets the version reported by the readiness endpoint.
func WithVersion(version string) HandlerOption {
	return func(h *Handler) { h.version = version }
}

// WithTimeout bounds the total time spent running checks.
func WithTimeout(timeout time.Duration) HandlerOption {
	return func(h *Handler) {
		if timeout > 0 {
			h.timeout = timeout
		}
	}
}

// WithHideDetails omits per-check results from responses.
func WithHideDetails() HandlerOption {
	return func(h *Handler) { h.hideDetails = true }
}

// NewHandler creates a ready handler with no checks.
func NewHandler(opts ...HandlerOption) *Handler {
	h := &Handler{
		checks:    make(map[string]Checker),
		ready:     true,
		startTime: time.Now(),
		timeout:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds or replaces a check.
func (h *Handler) Register(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = checker
}

// RegisterFunc adds a check function.
func (h *Handler) RegisterFunc(name string, fn func(ctx context.Context) CheckResult) {
	h.Register(name, CheckFunc(fn))
}

// SetReady toggles readiness. The server clears it while draining.
func (h *Handler) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

// IsReady returns the readiness flag.
func (h *Handler) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// Check runs every registered check concurrently. Any unhealthy check makes
// the response unhealthy; otherwise any degraded check makes it degraded.
func (h *Handler) Check(ctx context.Context) Response {
	h.mu.RLock()
	checks := make(map[string]Checker, len(h.checks))
	for name, c := range h.checks {
		checks[name] = c
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(checks))
	)
	for name, c := range checks {
		name, c := name, c
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			res := c.Check(ctx)
			res.DurationMS = time.Since(start).Milliseconds()
			if res.Timestamp.IsZero() {
				res.Timestamp = time.Now()
			}
			mu.Lock()
			results[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := StatusHealthy
	for _, res := range results {
		switch res.Status {
		case StatusUnhealthy:
			status = StatusUnhealthy
		case StatusDegraded:
			if status == StatusHealthy {
				status = StatusDegraded
			}
		}
	}

	resp := Response{
		Status:        status,
		Timestamp:     time.Now(),
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}
	if !h.hideDetails {
		resp.Checks = results
	}
	return resp
}

// LivenessHandler answers 200 as long as the process can serve requests.
func (h *Handler) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    StatusHealthy,
			"timestamp": time.Now(),
		})
	})
}

// ReadinessHandler answers 503 when the handler is not ready or a check is
// unhealthy. Degraded still answers 200.
func (h *Handler) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.IsReady() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":    StatusUnhealthy,
				"message":   "draining",
				"timestamp": time.Now(),
			})
			return
		}

		resp := h.Check(r.Context())
		code := http.StatusOK
		if resp.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// =============================================================================
// Built-in Checks
// =============================================================================

// MemoryCheck fails when the Go heap grows past MaxHeapBytes.
type MemoryCheck struct {
	MaxHeapBytes uint64
}

func (c *MemoryCheck) Name() string { return "memory" }

func (c *MemoryCheck) Check(ctx context.Context) CheckResult {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	res := CheckResult{
		Timestamp: time.Now(),
		Metadata: map[string]any{
			"heap_alloc_bytes": m.HeapAlloc,
			"heap_inuse_bytes": m.HeapInuse,
			"num_gc":           m.NumGC,
			"goroutines":       runtime.NumGoroutine(),
		},
	}
	if c.MaxHeapBytes > 0 && m.HeapAlloc > c.MaxHeapBytes {
		res.Status = StatusUnhealthy
		res.Error = fmt.Sprintf("heap %d bytes exceeds %d bytes", m.HeapAlloc, c.MaxHeapBytes)
		return res
	}
	res.Status = StatusHealthy
	res.Message = fmt.Sprintf("heap %d MB", m.HeapAlloc>>20)
	return res
}

// canaryReports are the smallest inputs each built-in detector accepts.
var canaryReports = map[report.Format]string{
	report.FormatSARIF:      `{"version":"2.1.0","runs":[{"tool":{"driver":{"name":"canary"}},"results":[]}]}`,
	report.FormatSemgrep:    `{"results":[],"errors":[],"paths":{"scanned":[]}}`,
	report.FormatGitLabSAST: `{"version":"15.0.0","vulnerabilities":[],"scan":{"type":"sast","status":"success"}}`,
}

// ParserCheck feeds a minimal report of every built-in format through the
// registry and fails when one is misdetected or rejected.
type ParserCheck struct {
	Registry *core.ParserRegistry
}

func (c *ParserCheck) Name() string { return "parsers" }

func (c *ParserCheck) Check(ctx context.Context) CheckResult {
	reg := c.Registry
	if reg == nil {
		reg = core.NewParserRegistry()
	}

	var failed []string
	for _, format := range report.AllFormats() {
		parsed, err := reg.DetectAndParseBytes([]byte(canaryReports[format]))
		switch {
		case err != nil:
			failed = append(failed, fmt.Sprintf("%s: %v", format, err))
		case parsed.Format != format:
			failed = append(failed, fmt.Sprintf("%s: detected as %s", format, parsed.Format))
		}
	}

	res := CheckResult{
		Timestamp: time.Now(),
		Metadata:  map[string]any{"formats": reg.List()},
	}
	if len(failed) > 0 {
		res.Status = StatusUnhealthy
		res.Error = strings.Join(failed, "; ")
		return res
	}
	res.Status = StatusHealthy
	res.Message = fmt.Sprintf("%d formats detected", len(report.AllFormats()))
	return res
}

var (
	_ Checker = (*MemoryCheck)(nil)
	_ Checker = (*SystemMemoryCheck)(nil)
	_ Checker = (*ParserCheck)(nil)
	_ Checker = CheckFunc(nil)
)
