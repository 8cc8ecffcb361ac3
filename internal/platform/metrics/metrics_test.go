package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_EventCounters(t *testing.T) {
	t.Parallel()

	c := New("test")
	c.Event("created", "textual")
	c.Event("created", "textual")
	c.Event("rejected", "positional")
	c.HandlerFailed("capsolver")
	c.AddRegistered(4)
	c.AddRegistered(-1)
	c.Solved("textual", 2*time.Second)

	if got := testutil.ToFloat64(c.events.WithLabelValues("created", "textual")); got != 2 {
		t.Fatalf("created = %v", got)
	}
	if got := testutil.ToFloat64(c.handlerFailures.WithLabelValues("capsolver")); got != 1 {
		t.Fatalf("handler failures = %v", got)
	}
	if got := testutil.ToFloat64(c.registered); got != 3 {
		t.Fatalf("registered = %v", got)
	}
	if n := testutil.CollectAndCount(c.events); n != 2 {
		t.Fatalf("event series = %d", n)
	}
}

func TestCollector_MiddlewareUsesRoutePattern(t *testing.T) {
	t.Parallel()

	c := New("test")
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/tasks/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, p := range []string{"/tasks/1", "/tasks/2", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	if got := testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "/tasks/{id}", "418")); got != 2 {
		t.Fatalf("pattern count = %v", got)
	}
	if got := testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Fatalf("unmatched count = %v", got)
	}
}

func TestCollector_HandlerExposes(t *testing.T) {
	t.Parallel()

	c := New("test")
	c.Event("registered", "interactive")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `test_captcha_events_total{kind="registered",result_type="interactive"} 1`) {
		t.Fatalf("body missing counter:\n%s", rec.Body.String())
	}
}
