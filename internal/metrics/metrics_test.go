package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ConnOpened()
	m.ConnClosed()
	m.SetRooms(3)
	m.Event("offer")
	m.Rejected("bad_request")
	m.Fanout(2)
	m.SlowConsumerDropped()
	m.ObserveStore("messages.create", time.Millisecond)
	m.MirrorFailure("project")

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ConnOpened()
	m.ConnOpened()
	m.ConnClosed()
	if got := testutil.ToFloat64(m.connections); got != 1 {
		t.Fatalf("connections = %v, want 1", got)
	}

	m.Event("offer")
	m.Event("offer")
	m.Event("")
	if got := testutil.ToFloat64(m.events.WithLabelValues("offer")); got != 2 {
		t.Fatalf("offer events = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("unknown events = %v, want 1", got)
	}

	m.SlowConsumerDropped()
	if got := testutil.ToFloat64(m.dropped); got != 1 {
		t.Fatalf("dropped = %v, want 1", got)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/messages/conversation/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/metrics", m.Handler().ServeHTTP)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/messages/conversation/7", nil))

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/api/messages/conversation/{id}", "418"))
	if got != 1 {
		t.Fatalf("requests = %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "rental_http_requests_total") {
		t.Fatalf("metrics output missing collector: %s", rec.Body.String())
	}
}
