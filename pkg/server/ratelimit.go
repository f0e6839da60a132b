package server

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/exploopio/reportlens/pkg/core"
	"github.com/exploopio/reportlens/pkg/errors"
)

// visitorTTL is how long an idle client keeps its bucket.
const visitorTTL = 3 * time.Minute

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	Enabled         bool          `yaml:"enabled"`
	RequestsPerSec  float64       `yaml:"requests_per_sec"`
	Burst           int           `yaml:"burst"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultRateLimitConfig allows 5 reports per second with bursts of 10.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:         true,
		RequestsPerSec:  5,
		Burst:           10,
		CleanupInterval: time.Minute,
	}
}

// RateLimiter limits requests per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	cleanup  time.Duration
	logger   core.Logger

	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter and starts its cleanup loop. Call Stop
// to end the loop.
func NewRateLimiter(cfg RateLimitConfig, logger core.Logger) *RateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if logger == nil {
		logger = &core.NopLogger{}
	}
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(cfg.RequestsPerSec),
		burst:    cfg.Burst,
		cleanup:  cfg.CleanupInterval,
		logger:   logger,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go rl.cleanupVisitors()
	return rl
}

// Stop ends the cleanup loop and waits for it. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
	<-rl.stopped
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

func (rl *RateLimiter) cleanupVisitors() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()
	defer close(rl.stopped)

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastSeen) > visitorTTL {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Middleware rejects requests over the limit with 429 and sets the
// X-RateLimit-* headers on every response.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		limiter := rl.limiterFor(ip)

		tokens := limiter.Tokens()
		remaining := int(math.Max(0, math.Floor(tokens)-1))
		reset := time.Now()
		if missing := float64(rl.burst) - tokens; missing > 0 && rl.rate > 0 {
			reset = reset.Add(time.Duration(missing / float64(rl.rate) * float64(time.Second)))
		}

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !limiter.Allow() {
			rl.logger.Warn("rate limit exceeded ip=%s path=%s", ip, r.URL.Path)
			h.Set("X-RateLimit-Remaining", "0")
			h.Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, &errors.APIError{
				StatusCode: http.StatusTooManyRequests,
				Code:       "rate_limited",
				Message:    "rate limit exceeded",
				RequestID:  requestID(r),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the host part of RemoteAddr. middleware.RealIP runs
// first and has already applied X-Real-IP or X-Forwarded-For.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
