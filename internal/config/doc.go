// Package config provides layered configuration for the jsbox harness.
//
// Configuration starts from built-in defaults, is overlaid by an optional
// YAML or TOML file, then by environment variables. CLI flags are applied
// last by cmd/jsbox.
//
// Configuration Sections:
//   - Sandbox: base and utility directories, default app, budgets, deny list
//   - Logging: harness log level/format and the audit log file
//   - Output: JSON report and Prometheus textfile destinations
//
// Example Usage:
//
//	cfg, err := config.Load("jsbox.yaml")
//	if err != nil {
//		return err
//	}
//	fmt.Println(cfg.Sandbox.ExecTimeout.Std())
//
// Environment Variables (prefix JSBOX_):
//   - BASE_DIR, UTILS_DIR, DEFAULT_APP, DENY
//   - PARSE_TIMEOUT, EXEC_TIMEOUT, LINGER
//   - LOG_LEVEL, LOG_DEV, LOG_FILE
//   - REPORT_FILE, METRICS_FILE
package config
