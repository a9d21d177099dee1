package runner

import (
	"errors"
	"fmt"
)

var (
	ErrEntryNotFound           = errors.New("entry not found")
	ErrParseBudgetExceeded     = errors.New("parse budget exceeded")
	ErrCompile                 = errors.New("compile error")
	ErrExecutionBudgetExceeded = errors.New("execution budget exceeded")
	ErrRuntime                 = errors.New("runtime error")
)

// Failure labels printed through the interceptor.
const (
	LabelEntryNotFound = "Entry not found"
	LabelParseTimeout  = "Parsing timeout"
	LabelCompile       = "Compile error"
	LabelExecTimeout   = "Execution timeout"
	LabelRuntime       = "Runtime error"
)

var labels = map[error]string{
	ErrEntryNotFound:           LabelEntryNotFound,
	ErrParseBudgetExceeded:     LabelParseTimeout,
	ErrCompile:                 LabelCompile,
	ErrExecutionBudgetExceeded: LabelExecTimeout,
	ErrRuntime:                 LabelRuntime,
}

// RunError is a failure of the state machine, raised in State.
type RunError struct {
	State State
	Label string
	Err   error
}

func newRunError(state State, sentinel, cause error) *RunError {
	err := sentinel
	if cause != nil {
		err = fmt.Errorf("%w: %w", sentinel, cause)
	}
	return &RunError{State: state, Label: labels[sentinel], Err: err}
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Label, e.State, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// ExitCode maps a run result onto the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
