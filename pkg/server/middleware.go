package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/exploopio/reportlens/pkg/core"
	"github.com/exploopio/reportlens/pkg/metrics"
)

// instrument records request count, latency and in-flight requests. The
// route label is the chi pattern so ids in paths do not explode cardinality.
func instrument(c metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.GaugeInc(metrics.HTTPInFlight.Name)
			defer c.GaugeDec(metrics.HTTPInFlight.Name)

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			c.CounterInc(metrics.HTTPRequestsTotal.Name,
				"method", r.Method, "route", route, "status", strconv.Itoa(status))
			c.HistogramObserve(metrics.HTTPRequestDuration.Name, time.Since(start).Seconds(),
				"method", r.Method, "route", route)
		})
	}
}

// accessLog writes one debug line per request.
func accessLog(logger core.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("%s %s %d %dB %s request_id=%s",
				r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start), requestID(r))
		})
	}
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}
