package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// servedRoutes bounds the path label. Anything else is counted as "other".
var servedRoutes = map[string]struct{}{
	"/v1/answers": {},
	"/healthz":    {},
	"/metrics":    {},
}

func routeLabel(path string) string {
	if _, ok := servedRoutes[path]; ok {
		return path
	}
	return "other"
}

// Middleware counts requests by route and status and tracks in-flight load.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	counted := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		m.observeRequest(r.Method, routeLabel(r.URL.Path), sw.code(), time.Since(started))
	})
	return promhttp.InstrumentHandlerInFlight(m.requestInFlight, counted)
}

func (m *Metrics) observeRequest(method, route string, status int, elapsed time.Duration) {
	m.requestTotal.WithLabelValues(m.service, method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(m.service, method, route).Observe(elapsed.Seconds())
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) code() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
