package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	require.NoError(t, m.Track("sessions:purge").End(nil))
	boom := errors.New("boom")
	assert.Same(t, boom, m.Track("sessions:purge").End(boom))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("sessions:purge", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("sessions:purge", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("sessions:purge")))
}

func TestAddPurgedSessions(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddPurgedSessions(3)
	m.AddPurgedSessions(0)
	m.AddPurgedSessions(-1)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.purged))
}

func TestNilMetricsAreInert(t *testing.T) {
	var m *Metrics
	m.AddPurgedSessions(5)
	assert.NoError(t, m.Track("x").End(nil))
}

func TestNilRegistererSharesDefault(t *testing.T) {
	assert.Same(t, NewMetrics(nil), NewMetrics(nil))
	assert.NotSame(t, NewMetrics(prometheus.NewRegistry()), NewMetrics(prometheus.NewRegistry()))
}
