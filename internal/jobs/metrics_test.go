package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("approvals:sweep").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("approvals:sweep").End(boom), boom)
	m.AddAffected("approvals:sweep", 4)
	m.AddAffected("approvals:sweep", 0)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("approvals:sweep", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("approvals:sweep")))
	require.Equal(t, 4.0, testutil.ToFloat64(m.affected.WithLabelValues("approvals:sweep")))
}

func TestNilMetricsTracker(t *testing.T) {
	var m *Metrics
	require.NoError(t, m.Track("noop").End(nil))
	m.AddAffected("noop", 1)
}
