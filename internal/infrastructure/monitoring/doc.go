/*
Package monitoring provides run metrics collection.

# Overview

Each harness run records Prometheus metrics on a private registry: run
outcomes, per-stage durations, budget overruns, require decisions, console
lines, timer callbacks and uncaught exceptions.

# Usage

	metrics := monitoring.NewMetrics()
	metrics.ObserveStage("compile", elapsed)
	metrics.RecordRun("application", "Done")

	// Export for the node_exporter textfile collector
	if err := metrics.WriteTextfile("/var/lib/node_exporter/jsbox.prom"); err != nil {
		return err
	}

A harness run is short-lived, so there is no HTTP endpoint; the textfile is
written once after the run completes.
*/
package monitoring
