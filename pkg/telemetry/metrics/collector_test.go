package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/relay/pkg/config"
)

func TestCollectorExposesMetrics(t *testing.T) {
	c := NewCollector(config.MetricsConfig{Enabled: true, Namespace: "relay"}, prometheus.NewRegistry())

	c.RecordRequest("backend-a", "test-model", "success", 120*time.Millisecond)
	c.RecordStreamChunk("backend-a")
	c.ObserveRateLimitWait("backend-a", 5*time.Millisecond)
	c.SetCredentialCounts("backend-a", 3, 1)
	c.RecordMint("backend-a", "success")

	r := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, r)

	body, err := io.ReadAll(w.Result().Body)
	if err != nil {
		t.Fatalf("reading scrape body: %v", err)
	}

	for _, metric := range []string{
		"relay_requests_total",
		"relay_request_duration_seconds",
		"relay_stream_chunks_total",
		"relay_rate_limit_wait_seconds",
		"relay_credentials_active",
		"relay_credentials_blocked",
		"relay_credential_mints_total",
	} {
		if !strings.Contains(string(body), metric) {
			t.Errorf("scrape output is missing %s", metric)
		}
	}
}

func TestDisabledCollectorIsNoOp(t *testing.T) {
	c := NewCollector(config.MetricsConfig{Enabled: false}, prometheus.NewRegistry())

	// Must not panic or register anything.
	c.RecordRequest("backend-a", "test-model", "success", time.Millisecond)
	c.SetCredentialCounts("backend-a", 1, 0)

	r := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, r)

	if strings.Contains(w.Body.String(), "relay_requests_total") {
		t.Error("disabled collector still exported request metrics")
	}
}
