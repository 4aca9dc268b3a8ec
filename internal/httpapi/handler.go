package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *statusWriter) WriteHeader(statusCode int) {
	if w.status == 0 {
		w.status = statusCode
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

// withObservability counts every request by route pattern and writes an
// access log line. The query string is never logged, and paths carrying a
// subscription token are logged by pattern only.
func (s *server) withObservability(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}

		route := ""
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			// unmatched: keep label cardinality bounded
			route = "(unmatched)"
		}
		pattern := r.Method + " " + route

		s.metrics.IncRequest(pattern, status)

		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
			return
		}
		path := r.URL.Path
		if strings.Contains(route, "{token}") {
			path = route
		}
		s.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", path),
			zap.String("pattern", pattern),
			zap.Int("status", status),
			zap.Duration("dur", time.Since(start).Round(time.Millisecond)),
			zap.Int("bytes", sw.bytes))
	})
}
