package sandbox

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/jsbox/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsbox/internal/logging"
)

// recorder is a Console that keeps every line.
type recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *recorder) Log(parts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, strings.Join(parts, " "))
}

func (r *recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func testConfig(console Console) Config {
	cfg := DefaultConfig()
	cfg.UtilsDir = ""
	cfg.ExecTimeout = 2 * time.Second
	cfg.Console = console
	cfg.Logger = logging.NewNop()
	cfg.Metrics = monitoring.NewMetrics()
	return cfg
}

func newContext(t *testing.T, cfg Config) *Context {
	t.Helper()
	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// run compiles src as an application and executes it.
func run(t *testing.T, c *Context, src string) error {
	t.Helper()
	prog, err := Compile(context.Background(), "application.js", WrapSource(src), time.Second)
	require.NoError(t, err)
	return c.Execute(context.Background(), prog)
}

func eval(t *testing.T, c *Context, src string) goja.Value {
	t.Helper()
	v, err := c.Eval(context.Background(), src)
	require.NoError(t, err)
	return v
}
