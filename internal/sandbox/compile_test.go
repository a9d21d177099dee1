package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapSource(t *testing.T) {
	assert.Equal(t, "(api => {\nmodule.exports = 1;\n})", WrapSource("module.exports = 1;"))
}

func TestCompile(t *testing.T) {
	prog, err := Compile(context.Background(), "app.js", WrapSource("module.exports = {};"), time.Second)
	require.NoError(t, err)
	assert.NotNil(t, prog)
}

func TestCompileSyntaxError(t *testing.T) {
	_, err := Compile(context.Background(), "app.js", WrapSource("module.exports = {"), time.Second)
	assert.ErrorIs(t, err, ErrSyntax)
	assert.NotErrorIs(t, err, ErrParseTimeout)
}

func TestCompileBudget(t *testing.T) {
	release := make(chan struct{})
	original := compileFn
	compileFn = func(name, src string, strict bool) (*goja.Program, error) {
		<-release
		return original(name, src, strict)
	}
	t.Cleanup(func() {
		close(release)
		compileFn = original
	})

	start := time.Now()
	_, err := Compile(context.Background(), "app.js", WrapSource(""), 50*time.Millisecond)

	assert.ErrorIs(t, err, ErrParseTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCompileCancelled(t *testing.T) {
	release := make(chan struct{})
	original := compileFn
	compileFn = func(name, src string, strict bool) (*goja.Program, error) {
		<-release
		return original(name, src, strict)
	}
	t.Cleanup(func() {
		close(release)
		compileFn = original
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Compile(ctx, "app.js", WrapSource(""), time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
