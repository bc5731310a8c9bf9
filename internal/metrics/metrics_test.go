package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsRegistered(t *testing.T) {
	OperationDuration.WithLabelValues("find_partners", "ok").Observe(0.2)
	PreselectSize.WithLabelValues("company").Observe(30)
	FailuresTotal.WithLabelValues("find_partners", "not_found").Inc()
	EmbeddingCacheTotal.WithLabelValues("summary", "hit").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}

	expected := map[string]bool{
		"govcon_matching_operation_duration_seconds": false,
		"govcon_matching_preselect_size":             false,
		"govcon_matching_failures_total":             false,
		"govcon_embedding_cache_lookups_total":       false,
	}
	var histogram *dto.MetricFamily
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
		if mf.GetName() == "govcon_matching_preselect_size" {
			histogram = mf
		}
	}

	for name, found := range expected {
		if !found {
			t.Errorf("metric %s not registered", name)
		}
	}
	if histogram == nil || histogram.GetType() != dto.MetricType_HISTOGRAM {
		t.Fatalf("expected preselect size to be a histogram")
	}

	if got := testutil.ToFloat64(FailuresTotal.WithLabelValues("find_partners", "not_found")); got < 1 {
		t.Fatalf("expected failure counter to be incremented, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if rec.Code != 200 || !strings.Contains(string(body), "govcon_matching_") {
		t.Fatalf("unexpected metrics response %d", rec.Code)
	}
}
