// Package metrics exposes prometheus collectors on a private registry
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"captchahub/internal/platform/config"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name
const DefaultNamespace = "captchahub"

// Collector holds the service metrics
type Collector struct {
	reg *prometheus.Registry

	events          *prometheus.CounterVec
	handlerFailures *prometheus.CounterVec
	registered      prometheus.Gauge
	solveSeconds    *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// FromConfig reads METRICS_NAMESPACE and METRICS_GO_COLLECTORS
func FromConfig(cfg config.Conf) *Collector {
	c := cfg.Prefix("METRICS_")
	col := New(c.MayString("NAMESPACE", DefaultNamespace))
	if c.MayBool("GO_COLLECTORS", true) {
		col.reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return col
}

// New builds a Collector with its own registry so tests never collide
func New(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collector{
		reg: reg,
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "captcha",
			Name:      "events_total",
			Help:      "Task lifecycle events by kind and result type",
		}, []string{"kind", "result_type"}),
		handlerFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "captcha",
			Name:      "handler_failures_total",
			Help:      "Solver handler notifications that returned an error or panicked",
		}, []string{"handler"}),
		registered: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "captcha",
			Name:      "registered_tasks",
			Help:      "Tasks currently held by the registry",
		}),
		solveSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "captcha",
			Name:      "solve_seconds",
			Help:      "Time from registration to first result",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"result_type"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the private registry
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Event counts one lifecycle event
func (c *Collector) Event(kind, resultType string) {
	c.events.WithLabelValues(kind, resultType).Inc()
}

// HandlerFailed counts one isolated handler failure
func (c *Collector) HandlerFailed(handler string) {
	c.handlerFailures.WithLabelValues(handler).Inc()
}

// AddRegistered moves the registry size by delta
func (c *Collector) AddRegistered(delta int) { c.registered.Add(float64(delta)) }

// Solved records time to first result
func (c *Collector) Solved(resultType string, d time.Duration) {
	c.solveSeconds.WithLabelValues(resultType).Observe(d.Seconds())
}

// Handler serves the registry in the exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}

// Middleware records request count and latency by chi route pattern
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := routePattern(r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// routePattern keeps label cardinality bounded, unmatched paths share one label
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
