package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text exposition format", ct)
	}
	return w.Body.String()
}

func TestHandler_ExposesRecordedSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordEntrySaved(false)
	c.RecordHTTPRequest(http.MethodPost, "/api/entries/", http.StatusCreated, 15*time.Millisecond)
	c.RecordUpstreamCall("language", false, time.Second)

	body := scrape(t, reg)

	for _, want := range []string{
		`mindjournal_entries_saved_total{kind="published"} 1`,
		`mindjournal_http_requests_total{method="POST",route="/api/entries/",status_code="201"} 1`,
		`mindjournal_upstream_calls_total{result="failure",service="language"} 1`,
		`mindjournal_upstream_latency_seconds_count{service="language"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}

func TestHandler_OnlyRegistryContents(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	body := scrape(t, reg)

	if strings.Contains(body, "go_goroutines") {
		t.Error("a custom registry should not expose default Go collectors")
	}
}
