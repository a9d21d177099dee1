// Package logging provides structured harness logging using uber/zap.
//
// Two modes are available:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// These are the harness's own diagnostics. Lines written by sandboxed code
// go through the audit log interceptor instead (see package auditlog).
//
// Example Usage:
//
//	logger := logging.NewDefault().WithRun(runID, "application")
//	logger.Error("execution failed", zap.Error(err))
package logging
