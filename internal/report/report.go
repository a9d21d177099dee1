// Package report encodes the outcome of one harness run as JSON.
package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/jsbox/internal/differ"
	"github.com/GriffinCanCode/jsbox/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsbox/internal/inspect"
)

// Stdout is the path that selects standard output.
const Stdout = "-"

// stdout is swapped by tests.
var stdout io.Writer = os.Stdout

// Report is the outcome of one run.
type Report struct {
	RunID          string              `json:"run_id"`
	App            string              `json:"app"`
	Entry          string              `json:"entry"`
	State          string              `json:"state"`
	StartedAt      time.Time           `json:"started_at"`
	Durations      Durations           `json:"durations"`
	Exports        []inspect.Record    `json:"exports"`
	Diff           *differ.Diff        `json:"diff,omitempty"`
	IdentityIntact bool                `json:"identity_intact"`
	Error          *Failure            `json:"error,omitempty"`
	Metrics        monitoring.Snapshot `json:"metrics"`
}

// Durations holds stage timings in milliseconds.
type Durations struct {
	Compile float64 `json:"compile_ms"`
	Execute float64 `json:"execute_ms"`
	Total   float64 `json:"total_ms"`
}

// Millis converts d for a Durations field.
func Millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// Failure describes why a run errored.
type Failure struct {
	Label   string `json:"label"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// Encode renders r as indented JSON with sorted object keys.
func Encode(r *Report) ([]byte, error) {
	if r.Exports == nil {
		r.Exports = []inspect.Record{}
	}
	data, err := sonic.ConfigStd.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return append(data, '\n'), nil
}

// Write encodes r to path, or to standard output when path is Stdout.
func Write(path string, r *Report) error {
	data, err := Encode(r)
	if err != nil {
		return err
	}
	if path == Stdout {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Decode parses an encoded report.
func Decode(data []byte) (*Report, error) {
	var r Report
	if err := sonic.ConfigStd.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &r, nil
}
