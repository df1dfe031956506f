// Package metrics exposes Prometheus collectors for redirects, persistence
// and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Redirect outcomes.
const (
	ResultHit     = "hit"
	ResultMiss    = "miss"
	ResultDefault = "default"
)

var (
	Redirects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "qrdirector_redirects_total",
		Help: "Redirect lookups by outcome",
	}, []string{"result"})

	PersistFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "qrdirector_persist_failures_total",
		Help: "Links file writes that failed",
	})

	Links = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "qrdirector_links",
		Help: "Links currently held in the directory, including the default",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "qrdirector_http_requests_total",
		Help: "Total number of HTTP requests received",
	}, []string{"status", "route"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "qrdirector_http_request_duration_seconds",
		Help:    "Histogram of response time for handler in seconds",
		Buckets: []float64{.0001, .001, .005, .01, .05, .1, .5, 1, 2, 5},
	}, []string{"route"})
)

func init() {
	prometheus.MustRegister(Redirects, PersistFailures, Links, httpRequests, httpDuration)
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming handlers working behind the middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request counts and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		httpRequests.WithLabelValues(strconv.Itoa(rec.statusCode), route).Inc()
		httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
