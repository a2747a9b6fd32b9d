package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vidtube",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vidtube",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vidtube",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	tokenEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vidtube",
			Subsystem: "auth",
			Name:      "token_events_total",
			Help:      "Token issuance, rotation and rejection events.",
		},
		[]string{"event"},
	)

	toggles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vidtube",
			Subsystem: "toggle",
			Name:      "operations_total",
			Help:      "Like and subscription toggles by outcome.",
		},
		[]string{"kind", "result"},
	)

	blobCleanups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vidtube",
			Subsystem: "media",
			Name:      "blob_cleanups_total",
			Help:      "Replaced or orphaned media deletions by outcome.",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		tokenEvents,
		toggles,
		blobCleanups,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
// Requests are labelled by the matched route pattern rather than the raw path
// so identifiers do not explode label cardinality.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		route := routeLabel(r)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	})
}

// RecordTokenEvent counts an auth token lifecycle event such as "issued",
// "refreshed", "reuse_rejected" or "revoked".
func RecordTokenEvent(event string) {
	tokenEvents.WithLabelValues(event).Inc()
}

// RecordToggle counts a toggle outcome; removed distinguishes unlike from like.
func RecordToggle(kind string, removed bool) {
	result := "created"
	if removed {
		result = "removed"
	}
	toggles.WithLabelValues(kind, result).Inc()
}

// RecordBlobCleanup counts a background media deletion.
func RecordBlobCleanup(success bool) {
	result := "ok"
	if !success {
		result = "failed"
	}
	blobCleanups.WithLabelValues(result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func routeLabel(r *http.Request) string {
	pattern := r.Pattern
	if pattern == "" {
		return "unmatched"
	}
	// patterns carry the method, which already has its own label
	if _, path, ok := strings.Cut(pattern, " "); ok {
		return path
	}
	return pattern
}
