// Package runner drives one application through the harness state machine.
//
// A run moves Idle → Resolving → Reading → Compiling → Executing → Done.
// Reading, Compiling and Executing may instead end in Errored, each failure
// carrying one of the sentinel errors and a short label that is also
// written through the audit log:
//
//	Reading    ErrEntryNotFound            "Entry not found"
//	Compiling  ErrParseBudgetExceeded      "Parsing timeout"
//	Compiling  ErrCompile                  "Compile error"
//	Executing  ErrExecutionBudgetExceeded  "Execution timeout"
//	Executing  ErrRuntime                  "Runtime error"
//
// After a successful execution the runner inspects module.exports, diffs
// the context against its pre-run snapshot and emits the JSON report. Timers
// the application left behind are drained afterwards, bounded by the linger
// budget.
//
// Example Usage:
//
//	r := runner.New(cfg, logger)
//	rep, err := r.Run(ctx, "myapp")
//	os.Exit(runner.ExitCode(err))
package runner
