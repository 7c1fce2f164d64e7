package middleware

import (
	"net/http"
	"slotkeeper/pkg/metrics"
	"strconv"
	"strings"
	"time"
)

// literalSegments are the path words that are never identifiers.
var literalSegments = map[string]bool{
	"slots":     true,
	"available": true,
	"history":   true,
	"reserve":   true,
}

// HTTPMetrics records request counts, latency and in-flight requests. Paths
// are reduced to their route shape so ids do not become label values.
func HTTPMetrics(m *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.InFlightGauge.Inc()
			defer m.InFlightGauge.Dec()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			path := routeShape(r.URL.Path)
			status := strconv.Itoa(wrapped.statusCode)
			m.RequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
			m.RequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		})
	}
}

func routeShape(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := 1; i < len(segments); i++ {
		prev := segments[i-1]
		if (prev == "slots" || prev == "providers") && !literalSegments[segments[i]] {
			segments[i] = ":id"
		}
	}
	return "/" + strings.Join(segments, "/")
}
