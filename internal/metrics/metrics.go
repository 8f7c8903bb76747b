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
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbtrack_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orbtrack_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	catalogFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbtrack_catalog_fetches_total",
			Help: "Catalog fetches by result (success, error, cancelled).",
		},
		[]string{"result"},
	)

	catalogFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orbtrack_catalog_fetch_duration_seconds",
			Help:    "Duration of catalog HTTP fetches.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbtrack_cache_lookups_total",
			Help: "Group cache lookups by result (hit, miss, stale).",
		},
		[]string{"result"},
	)

	rosterObjects = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbtrack_roster_objects",
			Help: "Number of tracked objects in the roster.",
		},
	)

	groupsByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orbtrack_groups",
			Help: "Number of configured groups by selection state.",
		},
		[]string{"state"},
	)

	groupFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbtrack_group_load_failures_total",
			Help: "Group loads that ended in failure.",
		},
	)

	invalidElementsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbtrack_invalid_element_sets_total",
			Help: "Element sets rejected when building tracked objects.",
		},
	)

	propagationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "orbtrack_propagation_failures_total",
			Help: "Predictions that failed.",
		},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orbtrack_streams_active",
			Help: "Open event streams.",
		},
	)

	streamMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbtrack_stream_messages_total",
			Help: "Events written to streams by type.",
		},
		[]string{"event"},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orbtrack_stream_errors_total",
			Help: "Stream errors by reason (rate_limit, send_error, marshal_error).",
		},
		[]string{"reason"},
	)

	snapshotDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orbtrack_snapshot_duration_seconds",
			Help:    "Duration of roster snapshot predictions.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		catalogFetchesTotal,
		catalogFetchDuration,
		cacheLookupsTotal,
		rosterObjects,
		groupsByState,
		groupFailuresTotal,
		invalidElementsTotal,
		propagationFailuresTotal,
		snapshotDuration,
		streamsActive,
		streamMessagesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCatalogFetch records one catalog fetch and its duration.
func ObserveCatalogFetch(result string, d time.Duration) {
	catalogFetchesTotal.WithLabelValues(result).Inc()
	catalogFetchDuration.Observe(d.Seconds())
}

// IncCacheLookup counts a group cache lookup ("hit", "miss" or "stale").
func IncCacheLookup(result string) {
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// SetRosterObjects sets the current roster size.
func SetRosterObjects(n int) {
	rosterObjects.Set(float64(n))
}

// SetGroupStates publishes the number of groups in each selection state.
func SetGroupStates(counts map[string]int) {
	for state, n := range counts {
		groupsByState.WithLabelValues(state).Set(float64(n))
	}
}

// IncGroupFailures counts a failed group load.
func IncGroupFailures() {
	groupFailuresTotal.Inc()
}

// AddInvalidElements counts element sets rejected during object construction.
func AddInvalidElements(n int) {
	invalidElementsTotal.Add(float64(n))
}

// RecordSnapshot records the duration of a roster snapshot and its failures.
func RecordSnapshot(d time.Duration, failures int) {
	snapshotDuration.Observe(d.Seconds())
	propagationFailuresTotal.Add(float64(failures))
}

// StreamOpened and StreamClosed track open event streams.
func StreamOpened() { streamsActive.Inc() }
func StreamClosed() { streamsActive.Dec() }

// IncStreamMessages counts one event of the given type written to a stream.
func IncStreamMessages(event string) {
	streamMessagesTotal.WithLabelValues(event).Inc()
}

// IncStreamErrors counts a stream error by reason.
func IncStreamErrors(reason string) {
	streamErrorsTotal.WithLabelValues(reason).Inc()
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer's
// Flush and deadline methods.
func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}

var exactRoutes = map[string]bool{
	"/":                  true,
	"/healthz":           true,
	"/readyz":            true,
	"/metrics":           true,
	"/api/v1/groups":     true,
	"/api/v1/objects":    true,
	"/api/v1/terminator": true,
	"/api/v1/stream":     true,
}

var objectViews = map[string]bool{
	"ground-track": true,
	"visibility":   true,
	"sky-track":    true,
	"passes":       true,
}

// normalizeRoute maps a request path to a bounded label set so that object
// and group indices do not each create a time series.
func normalizeRoute(path string) string {
	if exactRoutes[path] {
		return path
	}

	parts := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	if !strings.HasPrefix(path, "/api/v1/") || len(parts) < 2 || !isIndex(parts[1]) {
		return "other"
	}

	switch {
	case parts[0] == "groups" && len(parts) == 3 && (parts[2] == "select" || parts[2] == "deselect"):
		return "/api/v1/groups/{index}/" + parts[2]
	case parts[0] == "objects" && len(parts) == 2:
		return "/api/v1/objects/{index}"
	case parts[0] == "objects" && len(parts) == 3 && objectViews[parts[2]]:
		return "/api/v1/objects/{index}/" + parts[2]
	}
	return "other"
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
