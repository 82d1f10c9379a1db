package metrics

import (
	"net/http"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// knownPaths bounds the path label cardinality. Anything outside the
// fixed API surface is bucketed as "other" so symbol-bearing or
// malformed URLs cannot grow the series set.
var knownPaths = map[string]struct{}{
	"/api/quote":             {},
	"/api/historical/price":  {},
	"/api/historical/series": {},
	"/api/indicators":        {},
	"/api/search":            {},
	"/api/health":            {},
}

func pathLabel(path string) string {
	if _, ok := knownPaths[path]; ok {
		return path
	}
	return "other"
}

// HTTPMiddleware returns middleware that records HTTP metrics.
func HTTPMiddleware(reg *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reg.InFlightInc()
			defer reg.InFlightDec()

			start := time.Now()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			reg.RecordRequest(r.Method, pathLabel(r.URL.Path), rw.statusCode, duration)
		})
	}
}
