package monitoring

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()

	m.RecordRun("application", "done")
	m.RecordRequire("deny")
	m.RecordRequire("host")
	m.RecordLogLine()
	m.RecordTimer("timeout")
	m.RecordUncaught()
	m.RecordBudgetExceeded("execution")
	m.SetExports(2)
	m.SetBindingsChanged(1, 0)
	m.ObserveStage("compile", 3*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("application", "done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequireCalls.WithLabelValues("deny")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ExportsReported))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BindingsChanged.WithLabelValues("added")))

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requires)
	assert.Equal(t, int64(1), snap.LogLines)
	assert.Equal(t, int64(1), snap.TimersFired)
	assert.Equal(t, int64(1), snap.Uncaught)
}

func TestNewMetricsIsolated(t *testing.T) {
	// Two collectors must not collide on registration.
	a := NewMetrics()
	b := NewMetrics()
	a.RecordLogLine()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.LogLines))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.LogLines))
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.RecordRun("demo", "errored")

	path := filepath.Join(t.TempDir(), "jsbox.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `jsbox_runs_total{app="demo",state="errored"} 1`)

	var nilMetrics *Metrics
	assert.NoError(t, nilMetrics.WriteTextfile(path))
	assert.NoError(t, m.WriteTextfile(""))
}
