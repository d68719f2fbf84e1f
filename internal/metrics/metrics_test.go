package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersRecord(t *testing.T) {
	m := New()
	m.RecordEvaluation("CompSec", true)
	m.RecordEvaluation("CompSec", true)
	m.RecordEvaluation("History", false)
	m.RecordPersistFailure("Social")
	m.RecordDroppedEvent()
	m.SetObservers(3)

	if got := testutil.ToFloat64(m.evaluations.WithLabelValues("CompSec", "correct")); got != 2 {
		t.Fatalf("expected 2 correct CompSec evaluations, got %v", got)
	}
	if got := testutil.ToFloat64(m.evaluations.WithLabelValues("History", "incorrect")); got != 1 {
		t.Fatalf("expected 1 incorrect History evaluation, got %v", got)
	}
	if got := testutil.ToFloat64(m.observers); got != 3 {
		t.Fatalf("expected observers gauge 3, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordEvaluation("CompSec", true)
	m.RecordInvalidResponse()
	m.RecordProviderError()
	m.ObserveProviderLatency("simulated", 10)
	m.RecordPersistFailure("CompSec")
	m.SetObservers(1)
	m.RecordDroppedEvent()
	m.TrackPresence(func(context.Context) (int, error) { return 1, nil })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 from nil metrics handler, got %d", rec.Code)
	}
}

func TestTrackPresenceReadsAtScrape(t *testing.T) {
	m := New()
	live := 2
	m.TrackPresence(func(context.Context) (int, error) { return live, nil })

	if !strings.Contains(scrape(t, m), "quizeval_observers_present 2\n") {
		t.Fatalf("expected presence gauge of 2")
	}
	live = 5
	if !strings.Contains(scrape(t, m), "quizeval_observers_present 5\n") {
		t.Fatalf("expected presence gauge of 5")
	}
}

func TestTrackPresenceFailureIsNaN(t *testing.T) {
	m := New()
	m.TrackPresence(func(context.Context) (int, error) { return 0, errors.New("redis down") })
	if !strings.Contains(scrape(t, m), "quizeval_observers_present NaN\n") {
		t.Fatalf("expected NaN presence gauge")
	}
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	return rec.Body.String()
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(WithNamespace("test"))
	m.ObserveProviderLatency("simulated", 120)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "test_provider_latency_ms") {
		t.Fatalf("expected latency histogram in exposition, got %s", rec.Body.String())
	}
}
