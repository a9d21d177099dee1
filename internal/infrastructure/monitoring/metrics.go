package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for harness runs
type Metrics struct {
	registry *prometheus.Registry

	// Run metrics
	RunsTotal       *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	BudgetExceeded  *prometheus.CounterVec
	ExportsReported prometheus.Gauge
	BindingsChanged *prometheus.GaugeVec

	// Loader metrics
	RequireCalls *prometheus.CounterVec

	// Console and timer metrics
	LogLines      prometheus.Counter
	TimersFired   *prometheus.CounterVec
	UncaughtTotal prometheus.Counter

	// Snapshot for reports - track current values
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for the JSON report
type Snapshot struct {
	LogLines    int64 `json:"log_lines"`
	TimersFired int64 `json:"timers_fired"`
	Uncaught    int64 `json:"uncaught"`
	Requires    int64 `json:"requires"`
}

// NewMetrics creates a metrics collector on a private registry so repeated
// runs in one process (tests) never collide on registration.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsbox_runs_total",
				Help: "Total number of harness runs by final state",
			},
			[]string{"app", "state"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jsbox_stage_duration_seconds",
				Help:    "Duration of each run stage in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"stage"},
		),
		BudgetExceeded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsbox_budget_exceeded_total",
				Help: "Total number of parse or execution budget overruns",
			},
			[]string{"budget"},
		),
		ExportsReported: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "jsbox_exports",
				Help: "Number of exports reported by the last run",
			},
		),
		BindingsChanged: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "jsbox_global_bindings_changed",
				Help: "Global bindings added or deleted by the last run",
			},
			[]string{"change"},
		),
		RequireCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsbox_require_total",
				Help: "Total number of require calls by resolution strategy",
			},
			[]string{"strategy"},
		),
		LogLines: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "jsbox_log_lines_total",
				Help: "Total number of intercepted console lines",
			},
		),
		TimersFired: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jsbox_timers_fired_total",
				Help: "Total number of sandbox timer callbacks executed",
			},
			[]string{"kind"},
		),
		UncaughtTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "jsbox_uncaught_exceptions_total",
				Help: "Total number of exceptions caught at the process boundary",
			},
		),
	}
}

// Registry returns the gatherer backing these metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRun records the terminal state of a run
func (m *Metrics) RecordRun(app, state string) {
	m.RunsTotal.WithLabelValues(app, state).Inc()
}

// ObserveStage records how long a stage took
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordBudgetExceeded records a parse or execution budget overrun
func (m *Metrics) RecordBudgetExceeded(budget string) {
	m.BudgetExceeded.WithLabelValues(budget).Inc()
}

// SetExports sets the number of exports in the last report
func (m *Metrics) SetExports(count int) {
	m.ExportsReported.Set(float64(count))
}

// SetBindingsChanged records the size of the context diff
func (m *Metrics) SetBindingsChanged(added, deleted int) {
	m.BindingsChanged.WithLabelValues("added").Set(float64(added))
	m.BindingsChanged.WithLabelValues("deleted").Set(float64(deleted))
}

// RecordRequire records a require decision
func (m *Metrics) RecordRequire(strategy string) {
	m.RequireCalls.WithLabelValues(strategy).Inc()
	m.mu.Lock()
	m.snapshot.Requires++
	m.mu.Unlock()
}

// RecordLogLine records one intercepted console line
func (m *Metrics) RecordLogLine() {
	m.LogLines.Inc()
	m.mu.Lock()
	m.snapshot.LogLines++
	m.mu.Unlock()
}

// RecordTimer records one executed timer callback
func (m *Metrics) RecordTimer(kind string) {
	m.TimersFired.WithLabelValues(kind).Inc()
	m.mu.Lock()
	m.snapshot.TimersFired++
	m.mu.Unlock()
}

// RecordUncaught records an exception caught at the process boundary
func (m *Metrics) RecordUncaught() {
	m.UncaughtTotal.Inc()
	m.mu.Lock()
	m.snapshot.Uncaught++
	m.mu.Unlock()
}

// Snapshot returns the current counter values
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
