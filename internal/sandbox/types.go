package sandbox

import (
	"errors"
	"time"

	"github.com/GriffinCanCode/jsbox/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsbox/internal/logging"
)

var (
	// ErrInterrupted reports that running code was stopped by a budget or
	// by context cancellation.
	ErrInterrupted = errors.New("execution interrupted")

	// ErrParseTimeout reports that compilation did not finish within its budget.
	ErrParseTimeout = errors.New("parse budget exceeded")

	// ErrSyntax reports that the source failed to compile.
	ErrSyntax = errors.New("syntax error")

	// ErrNotCallable reports that the compiled program did not evaluate to a
	// function.
	ErrNotCallable = errors.New("program did not produce a callable")

	// ErrLingerExceeded reports that timers were still pending when the
	// linger budget ran out.
	ErrLingerExceeded = errors.New("linger budget exceeded")
)

// Console receives intercepted console output.
type Console interface {
	Log(parts ...string)
}

// Config defines sandbox configuration
type Config struct {
	UtilsDir     string        // utility modules resolvable by require
	Deny         []string      // doublestar patterns require always refuses
	ExecTimeout  time.Duration // budget for execution and each timer callback
	MaxCallStack int           // goja call stack limit
	Console      Console
	Logger       *logging.Logger
	Metrics      *monitoring.Metrics
}

// DefaultDeny lists the module names refused by default.
var DefaultDeny = []string{"fs", "fs/*", "node:fs", "node:fs/*"}

// DefaultConfig returns sandbox defaults.
func DefaultConfig() Config {
	return Config{
		UtilsDir:     "utils",
		Deny:         DefaultDeny,
		ExecTimeout:  5 * time.Second,
		MaxCallStack: 1024,
	}
}

// ScriptError is an exception thrown by sandboxed code.
type ScriptError struct {
	Message string // rendered thrown value
	Stack   string // one frame per line
	Cause   error
}

func (e *ScriptError) Error() string {
	return e.Message
}

func (e *ScriptError) Unwrap() error {
	return e.Cause
}
