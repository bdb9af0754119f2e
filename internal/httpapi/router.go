// Package httpapi serves the read-only admin endpoints.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dshills/eventsys/internal/event"
	"github.com/dshills/eventsys/internal/event/execution"
)

// Source provides the data served by the router. *app.Application implements it.
type Source interface {
	Stats() execution.Stats
	Ready() bool
}

// typeInfo is the JSON form of an event type.
type typeInfo struct {
	Name     string   `json:"name"`
	Abstract bool     `json:"abstract"`
	Parents  []string `json:"parents,omitempty"`
}

// NewRouter returns the admin handler. Request metrics are registered on reg
// and /metrics serves reg.
func NewRouter(src Source, reg *prometheus.Registry, logger zerolog.Logger) http.Handler {
	m := newRequestMetrics(reg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(m.middleware)
	r.Use(accessLog(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !src.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "stopping"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, src.Stats())
	})

	r.Get("/types", func(w http.ResponseWriter, r *http.Request) {
		types := event.Types()
		out := make([]typeInfo, 0, len(types))
		for _, t := range types {
			info := typeInfo{Name: t.Name(), Abstract: t.IsAbstract()}
			for _, p := range t.Parents() {
				info.Parents = append(info.Parents, p.Name())
			}
			out = append(out, info)
		}
		writeJSON(w, http.StatusOK, map[string]any{"types": out})
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestMetrics instruments admin requests.
type requestMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newRequestMetrics(reg prometheus.Registerer) *requestMetrics {
	m := &requestMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventsys",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of admin HTTP requests.",
		}, []string{"path", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eventsys",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of admin HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method", "status"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *requestMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := []string{routePatternOrPath(r), r.Method, strconv.Itoa(status)}
		m.requests.WithLabelValues(labels...).Inc()
		m.duration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// the URL path.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

func accessLog(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("request_id", middleware.GetReqID(r.Context())).
				Dur("dur", time.Since(start)).
				Msg("request")
		})
	}
}
