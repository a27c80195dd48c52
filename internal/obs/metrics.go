package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_lookups_total",
			Help: "Course catalog cache lookups by key kind and result.",
		},
		[]string{"kind", "result"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Outbound notifications by template and outcome.",
		},
		[]string{"template", "outcome"},
	)

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the last readiness probe succeeded.",
	})

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "coursehub_build_info",
			Help: "Constant 1 labelled with the running version and commit.",
		},
		[]string{"version", "commit"},
	)

	initOnce sync.Once
)

// Init registers the service metrics in the default registry.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration, cacheLookups, notifications, ready, buildInfo)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetBuildInfo publishes the running version; call after Init.
func SetBuildInfo(version, commit string) {
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, commit).Set(1)
}

// CacheLookup counts a catalog cache access. result is hit, miss or error.
func CacheLookup(kind, result string) {
	cacheLookups.WithLabelValues(kind, result).Inc()
}

// NotificationSent counts a notification attempt.
func NotificationSent(template string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	notifications.WithLabelValues(template, outcome).Inc()
}

// SetReady records the outcome of the latest readiness probe.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
		return
	}
	ready.Set(0)
}

// Instrument measures request counts, latency and in-flight requests.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// otherPath labels every request outside the known routes.
const otherPath = "other"

// routeTemplates lists the API shapes; ":id" matches any single segment.
var routeTemplates = [][]string{
	{"healthz"},
	{"readyz"},
	{"metrics"},
	{"v1", "auth", "register"},
	{"v1", "auth", "login"},
	{"v1", "auth", "refresh"},
	{"v1", "auth", "logout"},
	{"v1", "auth", "me"},
	{"v1", "courses"},
	{"v1", "courses", ":id"},
	{"v1", "courses", ":id", "content"},
	{"v1", "courses", ":id", "content", ":id", "questions"},
	{"v1", "courses", ":id", "content", ":id", "questions", ":id", "answers"},
	{"v1", "courses", ":id", "reviews"},
	{"v1", "courses", ":id", "reviews", ":id", "replies"},
	{"v1", "admin", "users", ":id", "courses"},
}

// CanonicalPath collapses identifiers in known routes and folds everything
// else into "other" so metric labels stay bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return otherPath
	}
	segments := strings.Split(trimmed, "/")
	for _, tmpl := range routeTemplates {
		if matchTemplate(tmpl, segments) {
			return "/" + strings.Join(tmpl, "/")
		}
	}
	return otherPath
}

func matchTemplate(tmpl, segments []string) bool {
	if len(tmpl) != len(segments) {
		return false
	}
	for i, part := range tmpl {
		if part == ":id" {
			if segments[i] == "" {
				return false
			}
			continue
		}
		if part != segments[i] {
			return false
		}
	}
	return true
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
