package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsbox/internal/auditlog"
	"github.com/GriffinCanCode/jsbox/internal/config"
	"github.com/GriffinCanCode/jsbox/internal/differ"
	"github.com/GriffinCanCode/jsbox/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsbox/internal/inspect"
	"github.com/GriffinCanCode/jsbox/internal/logging"
	"github.com/GriffinCanCode/jsbox/internal/report"
	"github.com/GriffinCanCode/jsbox/internal/sandbox"
	"github.com/GriffinCanCode/jsbox/internal/shared/id"
)

// Runner drives one application through the state machine
// Idle → Resolving → Reading → Compiling → Executing → Done, with Errored
// reachable from Reading, Compiling and Executing.
type Runner struct {
	cfg        *config.Config
	logger     *logging.Logger
	metrics    *monitoring.Metrics
	console    io.Writer
	stderr     io.Writer
	onLogError func(error)

	state   State
	history []State
}

// New creates a runner.
func New(cfg *config.Config, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NewDefault()
	}
	return &Runner{
		cfg:     cfg,
		logger:  logger.Named("runner"),
		metrics: monitoring.NewMetrics(),
		console: os.Stdout,
		stderr:  os.Stderr,
		state:   StateIdle,
	}
}

// WithMetrics replaces the runner's metrics collector
func (r *Runner) WithMetrics(metrics *monitoring.Metrics) *Runner {
	r.metrics = metrics
	return r
}

// WithOutput sets the real console and the stream failure dumps go to
func (r *Runner) WithOutput(console, stderr io.Writer) *Runner {
	r.console = console
	r.stderr = stderr
	return r
}

// WithLogErrorHandler overrides what happens when the log file cannot be
// appended to. The default logs and exits.
func (r *Runner) WithLogErrorHandler(fn func(error)) *Runner {
	r.onLogError = fn
	return r
}

// State returns the current state.
func (r *Runner) State() State {
	return r.state
}

// History returns every state entered during the last run, in order.
func (r *Runner) History() []State {
	return append([]State(nil), r.history...)
}

// Metrics returns the runner's metrics collector.
func (r *Runner) Metrics() *monitoring.Metrics {
	return r.metrics
}

func (r *Runner) transition(next State) {
	if !r.state.CanTransition(next) {
		r.logger.Error("invalid state transition",
			zap.String("from", string(r.state)),
			zap.String("to", string(next)),
		)
	}
	r.logger.Debug("state", zap.String("from", string(r.state)), zap.String("to", string(next)))
	r.state = next
	r.history = append(r.history, next)
}

// run carries per-run collaborators.
type run struct {
	id          id.RunID
	entry       Entry
	logger      *logging.Logger
	interceptor *auditlog.Interceptor
	report      *report.Report
	start       time.Time
}

// Run executes the application named by arg. The report is emitted before
// pending timers are drained, metrics after. A non-nil error is always a
// *RunError except for harness setup failures.
func (r *Runner) Run(ctx context.Context, arg string) (*report.Report, error) {
	r.state = StateIdle
	r.history = []State{StateIdle}

	cur := &run{id: id.NewRunID(), start: time.Now()}

	r.transition(StateResolving)
	cur.entry = Resolve(r.cfg.Sandbox.BaseDir, arg, r.cfg.Sandbox.DefaultApp)
	cur.logger = r.logger.WithRun(cur.id.String(), cur.entry.App)
	cur.logger.Debug("entry resolved", zap.String("file", cur.entry.File))

	interceptor, err := auditlog.New(auditlog.Options{
		App:     cur.entry.App,
		Path:    r.cfg.Logging.File,
		Console: r.console,
		OnError: r.onLogError,
		Logger:  cur.logger,
		Metrics: r.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start log interceptor: %w", err)
	}
	defer func() {
		if err := interceptor.Close(); err != nil {
			cur.logger.Warn("failed to close log file", zap.Error(err))
		}
	}()
	cur.interceptor = interceptor

	cur.report = &report.Report{
		RunID:     cur.id.String(),
		App:       cur.entry.App,
		Entry:     cur.entry.File,
		StartedAt: cur.start.UTC(),
	}

	r.transition(StateReading)
	src, err := ReadEntry(cur.entry.File)
	if err != nil {
		return cur.report, r.fail(cur, newRunError(StateReading, ErrEntryNotFound, err))
	}

	box, err := sandbox.New(sandbox.Config{
		UtilsDir:    r.cfg.UtilsPath(),
		Deny:        r.cfg.Sandbox.Deny,
		ExecTimeout: r.cfg.Sandbox.ExecTimeout.Std(),
		Console:     interceptor,
		Logger:      cur.logger,
		Metrics:     r.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build sandbox: %w", err)
	}
	defer box.Close()

	before := differ.Take(box.Global())

	r.transition(StateCompiling)
	compileStart := time.Now()
	prog, err := sandbox.Compile(ctx, cur.entry.File, sandbox.WrapSource(src), r.cfg.Sandbox.ParseTimeout.Std())
	compiled := time.Since(compileStart)
	r.metrics.ObserveStage("compile", compiled)
	cur.report.Durations.Compile = report.Millis(compiled)
	if err != nil {
		if errors.Is(err, sandbox.ErrParseTimeout) {
			r.metrics.RecordBudgetExceeded("parse")
			return cur.report, r.fail(cur, newRunError(StateCompiling, ErrParseBudgetExceeded, err))
		}
		return cur.report, r.fail(cur, newRunError(StateCompiling, ErrCompile, err))
	}

	r.transition(StateExecuting)
	execStart := time.Now()
	err = box.Execute(ctx, prog)
	if err == nil {
		err = r.collect(ctx, cur, box, before)
	}
	executed := time.Since(execStart)
	r.metrics.ObserveStage("execute", executed)
	cur.report.Durations.Execute = report.Millis(executed)
	if err != nil {
		if errors.Is(err, sandbox.ErrInterrupted) {
			r.metrics.RecordBudgetExceeded("execution")
			return cur.report, r.fail(cur, newRunError(StateExecuting, ErrExecutionBudgetExceeded, err))
		}
		return cur.report, r.fail(cur, newRunError(StateExecuting, ErrRuntime, err))
	}

	r.transition(StateDone)
	r.finish(cur)

	if err := box.Drain(ctx, r.cfg.Sandbox.Linger.Std()); err != nil {
		cur.logger.Warn("timers abandoned", zap.Error(err))
	}
	r.writeMetrics(cur)
	return cur.report, nil
}

// collect inspects exports and diffs the context. Both may reach proxy
// traps, so they run under the execution budget.
func (r *Runner) collect(ctx context.Context, cur *run, box *sandbox.Context, before differ.Snapshot) error {
	records, err := box.Inspect(ctx)
	if err != nil {
		return err
	}

	var after differ.Snapshot
	err = box.Guard(ctx, func() error {
		after = differ.Take(box.DiffTarget())
		return nil
	})
	if err != nil {
		return err
	}

	diff := differ.Compare(before, after)
	cur.report.Exports = records
	cur.report.Diff = &diff
	cur.report.IdentityIntact = box.WellFormed()

	r.metrics.SetExports(len(records))
	r.metrics.SetBindingsChanged(len(diff.Added), len(diff.Deleted))

	cur.interceptor.Log("Exported:", exportSummary(records))
	if diff.Unchanged() {
		cur.interceptor.Log("Context was not changed")
	} else {
		cur.interceptor.Log("Context changed:",
			"added ["+strings.Join(diff.Added, ", ")+"]",
			"deleted ["+strings.Join(diff.Deleted, ", ")+"]",
		)
	}
	if !cur.report.IdentityIntact {
		cur.logger.Warn("global no longer refers to the global object")
	}
	return nil
}

func exportSummary(records []inspect.Record) string {
	if len(records) == 0 {
		return "none"
	}
	parts := make([]string, len(records))
	for i, rec := range records {
		parts[i] = rec.Summary()
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// finish stamps the report and emits it. It runs before timers drain.
func (r *Runner) finish(cur *run) {
	cur.report.State = string(r.state)
	cur.report.Durations.Total = report.Millis(time.Since(cur.start))
	cur.report.Metrics = r.metrics.Snapshot()
	r.metrics.RecordRun(cur.entry.App, string(r.state))

	cur.logger.Info("run finished",
		zap.String("state", string(r.state)),
		zap.Int("exports", len(cur.report.Exports)),
		zap.Float64("total_ms", cur.report.Durations.Total),
	)

	if path := r.cfg.Output.ReportFile; path != "" {
		if err := report.Write(path, cur.report); err != nil {
			cur.logger.Error("failed to write report", zap.Error(err))
		}
	}
}

// fail moves to Errored, prints the diagnostic dump and the label, and
// emits the report.
func (r *Runner) fail(cur *run, runErr *RunError) error {
	r.transition(StateErrored)

	failure := &report.Failure{Label: runErr.Label, Message: runErr.Err.Error()}
	var scriptErr *sandbox.ScriptError
	if errors.As(runErr, &scriptErr) {
		failure.Stack = scriptErr.Stack
	}
	cur.report.Error = failure

	cur.logger.Error("run failed",
		zap.String("state", string(runErr.State)),
		zap.String("label", runErr.Label),
		zap.Error(runErr.Err),
	)
	r.dump(runErr, failure.Stack)
	cur.interceptor.Log(runErr.Label)

	r.finish(cur)
	r.writeMetrics(cur)
	return runErr
}

// dump writes the error chain to stderr for a human reader.
func (r *Runner) dump(err *RunError, stack string) {
	red := color.New(color.FgRed, color.Bold)
	dim := color.New(color.Faint)

	red.Fprintf(r.stderr, "%s during %s\n", err.Label, err.State)
	for e := err.Err; e != nil; e = errors.Unwrap(e) {
		dim.Fprintf(r.stderr, "  %v\n", e)
	}
	if stack != "" {
		dim.Fprint(r.stderr, stack)
	}
}

func (r *Runner) writeMetrics(cur *run) {
	path := r.cfg.Output.MetricsFile
	if path == "" {
		return
	}
	if err := r.metrics.WriteTextfile(path); err != nil {
		cur.logger.Error("failed to write metrics", zap.Error(err))
	}
}
