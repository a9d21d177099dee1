package runner

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunErrorWrapping(t *testing.T) {
	cause := errors.New("boom")
	err := newRunError(StateExecuting, ErrRuntime, cause)

	assert.Equal(t, LabelRuntime, err.Label)
	assert.ErrorIs(t, err, ErrRuntime)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrCompile)
	assert.Equal(t, "Runtime error (Executing): runtime error: boom", err.Error())

	var target *RunError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &target))
	assert.Equal(t, StateExecuting, target.State)
}

func TestRunErrorWithoutCause(t *testing.T) {
	err := newRunError(StateCompiling, ErrParseBudgetExceeded, nil)
	assert.Equal(t, LabelParseTimeout, err.Label)
	assert.Equal(t, ErrParseBudgetExceeded, err.Err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(newRunError(StateReading, ErrEntryNotFound, nil)))
	assert.Equal(t, 1, ExitCode(errors.New("setup failed")))
}
