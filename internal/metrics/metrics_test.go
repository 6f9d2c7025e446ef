package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNew_FreshRegistryWhenNil(t *testing.T) {
	a := New(nil)
	b := New(nil)

	// Registering the same names twice would panic on a shared registry.
	a.ConversationsProcessed.Inc()
	b.ConversationsProcessed.Add(2)
}

func TestHandler_ExposesCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.UtterancesScored.Add(7)
	m.ScoringDuration.Observe(1.5)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "helm_utterances_scored_total 7") {
		t.Errorf("metrics output missing scored counter:\n%s", body)
	}
	if !strings.Contains(body, "helm_scoring_duration_seconds_count 1") {
		t.Errorf("metrics output missing duration histogram:\n%s", body)
	}
}
