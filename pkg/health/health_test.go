package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/exploopio/reportlens/pkg/core"
	"github.com/exploopio/reportlens/pkg/report"
)

func staticCheck(status Status) CheckFunc {
	return func(ctx context.Context) CheckResult {
		return CheckResult{Status: status}
	}
}

func TestHandler_Check_Aggregation(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"no checks", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(WithVersion("1.2.3"))
			for i, s := range tt.statuses {
				h.Register(string(rune('a'+i)), staticCheck(s))
			}
			resp := h.Check(context.Background())
			if resp.Status != tt.want {
				t.Errorf("Check().Status = %v, want %v", resp.Status, tt.want)
			}
			if len(resp.Checks) != len(tt.statuses) {
				t.Errorf("len(Check().Checks) = %d, want %d", len(resp.Checks), len(tt.statuses))
			}
			if resp.Version != "1.2.3" {
				t.Errorf("Check().Version = %q, want 1.2.3", resp.Version)
			}
		})
	}
}

func TestHandler_Check_Timeout(t *testing.T) {
	h := NewHandler(WithTimeout(20 * time.Millisecond))
	h.RegisterFunc("slow", func(ctx context.Context) CheckResult {
		<-ctx.Done()
		return CheckResult{Status: StatusUnhealthy, Error: ctx.Err().Error()}
	})

	start := time.Now()
	resp := h.Check(context.Background())
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Check() took %v, want bounded by timeout", elapsed)
	}
	if resp.Status != StatusUnhealthy {
		t.Errorf("Check().Status = %v, want %v", resp.Status, StatusUnhealthy)
	}
}

func TestHandler_HideDetails(t *testing.T) {
	h := NewHandler(WithHideDetails())
	h.Register("ping", staticCheck(StatusHealthy))
	if resp := h.Check(context.Background()); resp.Checks != nil {
		t.Errorf("Check().Checks = %v, want nil", resp.Checks)
	}
}

func TestLivenessHandler(t *testing.T) {
	h := NewHandler()
	h.Register("broken", staticCheck(StatusUnhealthy))
	h.SetReady(false)

	rec := httptest.NewRecorder()
	h.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("liveness status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name     string
		ready    bool
		status   Status
		wantCode int
	}{
		{"healthy", true, StatusHealthy, http.StatusOK},
		{"degraded still serves", true, StatusDegraded, http.StatusOK},
		{"unhealthy", true, StatusUnhealthy, http.StatusServiceUnavailable},
		{"draining", false, StatusHealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler()
			h.Register("c", staticCheck(tt.status))
			h.SetReady(tt.ready)

			rec := httptest.NewRecorder()
			h.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rec.Code != tt.wantCode {
				t.Errorf("readiness status = %d, want %d", rec.Code, tt.wantCode)
			}

			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if _, ok := body["status"]; !ok {
				t.Errorf("body has no status: %s", rec.Body.String())
			}
		})
	}
}

func TestMemoryCheck(t *testing.T) {
	if res := (&MemoryCheck{}).Check(context.Background()); res.Status != StatusHealthy {
		t.Errorf("MemoryCheck{} status = %v, want %v", res.Status, StatusHealthy)
	}
	if res := (&MemoryCheck{MaxHeapBytes: 1}).Check(context.Background()); res.Status != StatusUnhealthy {
		t.Errorf("MemoryCheck{MaxHeapBytes: 1} status = %v, want %v", res.Status, StatusUnhealthy)
	}
}

func TestSystemMemoryCheck(t *testing.T) {
	c := &SystemMemoryCheck{}
	if c.Name() != "system_memory" {
		t.Errorf("Name() = %q, want system_memory", c.Name())
	}
	res := c.Check(context.Background())
	if res.Status == StatusUnhealthy {
		t.Errorf("SystemMemoryCheck status = %v (%s)", res.Status, res.Error)
	}
}

func TestParserCheck(t *testing.T) {
	res := (&ParserCheck{}).Check(context.Background())
	if res.Status != StatusHealthy {
		t.Fatalf("ParserCheck status = %v, error %q", res.Status, res.Error)
	}

	// A registry whose SARIF parser always fails must be reported.
	reg := core.NewParserRegistry()
	reg.Register(&core.FuncParser{
		Name:     report.FormatSARIF,
		DetectFn: func(any) bool { return false },
		ParseFn:  func(any) (*report.Parsed, error) { return nil, nil },
	})
	res = (&ParserCheck{Registry: reg}).Check(context.Background())
	if res.Status != StatusUnhealthy {
		t.Errorf("ParserCheck with broken SARIF status = %v, want %v", res.Status, StatusUnhealthy)
	}
	if res.Error == "" {
		t.Error("ParserCheck with broken SARIF has empty error")
	}
}
