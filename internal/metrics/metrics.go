// Package metrics holds the prometheus collectors of the realtime service.
// Every method is safe on a nil *Metrics so components can run without metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	gatherer prometheus.Gatherer

	connections    prometheus.Gauge
	rooms          prometheus.Gauge
	events         *prometheus.CounterVec
	rejected       *prometheus.CounterVec
	fanout         prometheus.Histogram
	dropped        prometheus.Counter
	storeLatency   *prometheus.HistogramVec
	mirrorFailures *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New registers the collectors on reg; nil means the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{
		gatherer: gatherer,
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rental_ws_connections",
			Help: "Current number of live websocket connections.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rental_ws_rooms",
			Help: "Current number of non-empty rooms.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rental_ws_events_total",
			Help: "Inbound realtime events by type.",
		}, []string{"type"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rental_ws_events_rejected_total",
			Help: "Inbound realtime events answered with an error, by code.",
		}, []string{"code"}),
		fanout: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rental_ws_broadcast_recipients",
			Help:    "Number of connections a broadcast was queued for.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rental_ws_slow_consumers_dropped_total",
			Help: "Connections dropped because their send buffer was full.",
		}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rental_store_latency_seconds",
			Help:    "Latency of durable store operations.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"op"}),
		mirrorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rental_mirror_failures_total",
			Help: "Failed inline mirror writes by operation.",
		}, []string{"op"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rental_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rental_http_request_duration_seconds",
			Help:    "HTTP request duration by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.connections,
		m.rooms,
		m.events,
		m.rejected,
		m.fanout,
		m.dropped,
		m.storeLatency,
		m.mirrorFailures,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

func (m *Metrics) SetRooms(n int) {
	if m == nil {
		return
	}
	m.rooms.Set(float64(n))
}

func (m *Metrics) Event(typ string) {
	if m == nil {
		return
	}
	if typ == "" {
		typ = "unknown"
	}
	m.events.WithLabelValues(typ).Inc()
}

func (m *Metrics) Rejected(code string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(code).Inc()
}

func (m *Metrics) Fanout(recipients int) {
	if m == nil {
		return
	}
	m.fanout.Observe(float64(recipients))
}

func (m *Metrics) SlowConsumerDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) ObserveStore(op string, dur time.Duration) {
	if m == nil || op == "" {
		return
	}
	m.storeLatency.WithLabelValues(op).Observe(dur.Seconds())
}

func (m *Metrics) MirrorFailure(op string) {
	if m == nil {
		return
	}
	m.mirrorFailures.WithLabelValues(op).Inc()
}

// Middleware records request count and latency labelled by the chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the registry the collectors were registered on.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
