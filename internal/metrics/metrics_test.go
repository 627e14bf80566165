package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.ObserveLLMAttempt("gpt-test", 200*time.Millisecond)
	m.IncLLMRetry("gpt-test")
	m.IncLLMRetry("gpt-test")
	m.ObserveLLMResult("gpt-test", true, 100, 20)
	m.ObserveLLMResult("gpt-test", false, 0, 0)
	m.AddEmbeddedUnits("bow", 12)
	m.ObserveRetrieval("dense", time.Millisecond, false)
	m.ObserveRetrieval("relational", time.Millisecond, true)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"retries", testutil.ToFloat64(m.LLMRetriesTotal.WithLabelValues("gpt-test")), 2},
		{"succeeded", testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("gpt-test", "succeeded")), 1},
		{"failed", testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("gpt-test", "failed")), 1},
		{"input tokens", testutil.ToFloat64(m.LLMTokensTotal.WithLabelValues("gpt-test", "input")), 100},
		{"units", testutil.ToFloat64(m.EmbeddedUnitsTotal.WithLabelValues("bow")), 12},
		{"retrieval errors", testutil.ToFloat64(m.RetrievalErrorsTotal.WithLabelValues("relational")), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveLLMAttempt("x", time.Second)
	m.IncLLMRetry("x")
	m.ObserveLLMResult("x", true, 1, 1)
	m.AddEmbeddedUnits("x", 1)
	m.ObserveRetrieval("dense", time.Second, true)
	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")); err != nil {
		t.Errorf("WriteTextfile on nil = %v", err)
	}
	if m.Registry() != nil {
		t.Error("nil Metrics should have nil registry")
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.IncLLMRetry("gpt-test")

	path := filepath.Join(t.TempDir(), "pbench.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `pbench_llm_retries_total{model="gpt-test"} 1`) {
		t.Errorf("textfile missing retry counter:\n%s", data)
	}
}
