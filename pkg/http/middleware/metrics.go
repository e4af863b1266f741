package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	applogger "MarketPulse/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
	size     *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	httpStats   *httpMetrics
)

func loadHTTPMetrics() *httpMetrics {
	metricsOnce.Do(func() {
		httpStats = &httpMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			}, []string{"path", "method", "status"}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			}, []string{"route", "method", "status", "class"}),
			inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "http_in_flight_requests",
				Help: "Current number of in-flight HTTP requests",
			}, []string{"route", "method"}),
			size: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{200, 500, 1_000, 2_000, 5_000, 10_000, 50_000, 100_000, 500_000, 1_000_000},
			}, []string{"route", "method", "status", "class"}),
		}
		prometheus.MustRegister(httpStats.requests, httpStats.duration, httpStats.inFlight, httpStats.size)
	})
	return httpStats
}

// Metrics records per-request Prometheus metrics and logs 5xx and slow
// responses. Route labels come from the mux template when one is set, so
// cardinality stays bounded.
func Metrics(l *applogger.Logger, slowThreshold time.Duration) func(http.Handler) http.Handler {
	m := loadHTTPMetrics()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routeLabel(r)
			m.inFlight.WithLabelValues(route, r.Method).Inc()
			defer m.inFlight.WithLabelValues(route, r.Method).Dec()

			rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			status := strconv.Itoa(rec.code)
			class := statusClass(rec.code)
			m.requests.WithLabelValues(route, r.Method, status).Inc()
			m.duration.WithLabelValues(route, r.Method, status, class).Observe(elapsed.Seconds())
			m.size.WithLabelValues(route, r.Method, status, class).Observe(float64(rec.bytes))

			logRequest(l, slowThreshold, route, r.Method, rec, elapsed)
		})
	}
}

func logRequest(l *applogger.Logger, slowThreshold time.Duration, route, method string, rec *statusRecorder, elapsed time.Duration) {
	if l == nil {
		return
	}
	fields := []applogger.Field{
		applogger.String("route", route),
		applogger.String("method", method),
		applogger.String("status", strconv.Itoa(rec.code)),
		applogger.Duration("duration_ms", elapsed),
		applogger.Int("bytes", rec.bytes),
	}
	switch {
	case rec.code >= 500:
		l.Error("http request failed", fields...)
	case slowThreshold > 0 && elapsed >= slowThreshold:
		l.Warn("http request slow", fields...)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	code  int
	bytes int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// routeLabel prefers a route template planted in the request context and
// falls back to the raw URL path.
func routeLabel(r *http.Request) string {
	if s, ok := r.Context().Value("route").(string); ok && s != "" {
		return s
	}
	return r.URL.Path
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
