package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type recordedRequest struct {
	method string
	route  string
	status int
}

type fakeCollector struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (f *fakeCollector) RecordHTTPRequest(method, route string, statusCode int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, recordedRequest{method, route, statusCode})
}
func (f *fakeCollector) RecordUpstreamCall(string, bool, time.Duration) {}
func (f *fakeCollector) RecordEntrySaved(bool)                          {}
func (f *fakeCollector) RecordExport(string)                            {}
func (f *fakeCollector) RecordAIFallback(string)                        {}
func (f *fakeCollector) RecordSessionsCleaned(int)                      {}

// TestMetricsMiddleware_UsesRoutePattern はURLではなくルートパターンで記録されることを検証する。
func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	collector := &fakeCollector{}

	r := chi.NewRouter()
	r.Use(NewMetricsMiddleware(collector))
	r.Get("/api/entries/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		req := httptest.NewRequest(http.MethodGet, "/api/entries/"+id, nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	want := []recordedRequest{
		{http.MethodGet, "/api/entries/{id}", http.StatusNotFound},
		{http.MethodGet, "/api/entries/{id}", http.StatusNotFound},
		{http.MethodGet, unmatchedRoute, http.StatusNotFound},
	}
	if len(collector.requests) != len(want) {
		t.Fatalf("recorded %d requests, want %d: %+v", len(collector.requests), len(want), collector.requests)
	}
	for i := range want {
		if collector.requests[i] != want[i] {
			t.Errorf("request[%d] = %+v, want %+v", i, collector.requests[i], want[i])
		}
	}
}
