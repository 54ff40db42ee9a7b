package prometheus

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MolForge-Engine/internal/infrastructure/monitoring/logging"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "molforge"}, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func TestNewMetricsCollectorRequiresNamespace(t *testing.T) {
	_, err := NewMetricsCollector(CollectorConfig{}, logging.NewNopLogger())
	assert.Error(t, err)
}

func TestRegisterAndUseCounter(t *testing.T) {
	c := newTestCollector(t)
	counter := c.RegisterCounter("test_total", "test counter", "label")
	counter.WithLabelValues("a").Inc()
	counter.WithLabelValues("a").Add(2)
	counter.With(map[string]string{"label": "b"}).Inc()

	body := scrape(t, c)
	assert.Contains(t, body, "molforge_test_total")
	assert.Contains(t, body, `label="a"`)
}

func TestRegisterGaugeAndHistogram(t *testing.T) {
	c := newTestCollector(t)
	g := c.RegisterGauge("queue_depth", "test gauge", "q")
	g.WithLabelValues("main").Set(3)
	g.WithLabelValues("main").Inc()
	g.WithLabelValues("main").Dec()

	h := c.RegisterHistogram("latency_seconds", "test histogram", nil, "op")
	h.WithLabelValues("step").Observe(0.02)

	body := scrape(t, c)
	assert.Contains(t, body, "molforge_queue_depth")
	assert.Contains(t, body, "molforge_latency_seconds_bucket")
}

func TestDuplicateRegistrationReturnsSameMetric(t *testing.T) {
	c := newTestCollector(t)
	first := c.RegisterCounter("dup_total", "dup", "l")
	second := c.RegisterCounter("dup_total", "dup", "l")
	first.WithLabelValues("x").Inc()
	second.WithLabelValues("x").Inc()

	body := scrape(t, c)
	assert.Contains(t, body, `molforge_dup_total{l="x"} 2`)
}

func TestEngineMetricsHelpers(t *testing.T) {
	c := newTestCollector(t)
	m := NewEngineMetrics(c)

	RecordTrainingStep(m, 10*time.Millisecond, 0.5, 0.3, 1.2)
	RecordMolecule(m, 9, true)
	RecordMolecule(m, 30, false)
	RecordSamplingAnomaly(m, "SAMPLE_002")
	RecordError(m, "training", "MODEL_002")

	body := scrape(t, c)
	assert.Contains(t, body, "molforge_training_steps_total")
	assert.Contains(t, body, `molforge_training_loss{term="total"} 2`)
	assert.Contains(t, body, `outcome="stopped"`)
	assert.Contains(t, body, `outcome="max_atoms"`)
	assert.Contains(t, body, `code="SAMPLE_002"`)
}

func TestTimerNilHistogram(t *testing.T) {
	timer := NewTimer(nil)
	timer.ObserveDuration()
}

func scrape(t *testing.T, c MetricsCollector) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)
	return rec.Body.String()
}
