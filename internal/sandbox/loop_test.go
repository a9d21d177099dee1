package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrainRunsTimers(t *testing.T) {
	rec := &recorder{}
	c := newContext(t, testConfig(rec))

	require.NoError(t, run(t, c, `
		setTimeout(function (a, b) { console.log('timeout', a, b); }, 5, 'x', 'y');
		api.timers.setImmediate(function () { console.log('immediate'); });
		var n = 0;
		var id = setInterval(function () {
			n++;
			console.log('tick', n);
			if (n === 3) clearInterval(id);
		}, 1);
	`))
	assert.Equal(t, 3, c.Pending())

	require.NoError(t, c.Drain(context.Background(), time.Second))

	lines := rec.Lines()
	assert.Contains(t, lines, "timeout x y")
	assert.Contains(t, lines, "immediate")
	assert.Contains(t, lines, "tick 3")
	assert.NotContains(t, lines, "tick 4")
	assert.Equal(t, 0, c.Pending())
}

func TestClearTimeout(t *testing.T) {
	rec := &recorder{}
	c := newContext(t, testConfig(rec))

	require.NoError(t, run(t, c, `
		var id = setTimeout(function () { console.log('never'); }, 1);
		clearTimeout(id);
		clearTimeout(undefined);
		clearTimeout(12345);
	`))

	assert.Equal(t, 0, c.Pending())
	require.NoError(t, c.Drain(context.Background(), time.Second))
	assert.Empty(t, rec.Lines())
}

func TestTimerCallbackMustBeFunction(t *testing.T) {
	c := newContext(t, testConfig(&recorder{}))

	err := run(t, c, `setTimeout('console.log(1)', 1);`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TypeError")
}

func TestUncaughtTimerErrorIsNotFatal(t *testing.T) {
	rec := &recorder{}
	c := newContext(t, testConfig(rec))

	require.NoError(t, run(t, c, `
		setTimeout(function () { throw new Error('boom'); }, 1);
		setTimeout(function () { console.log('still running'); }, 20);
	`))

	require.NoError(t, c.Drain(context.Background(), time.Second))

	lines := rec.Lines()
	assert.Contains(t, lines, "Unhandled exception: Error: boom")
	assert.Contains(t, lines, "still running")
	assert.Equal(t, int64(1), c.metrics.Snapshot().Uncaught)
}

func TestTimerCallbackBudget(t *testing.T) {
	rec := &recorder{}
	cfg := testConfig(rec)
	cfg.ExecTimeout = 50 * time.Millisecond
	c := newContext(t, cfg)

	require.NoError(t, run(t, c, `setTimeout(function () { for (;;) {} }, 1);`))
	require.NoError(t, c.Drain(context.Background(), time.Second))

	lines := rec.Lines()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Unhandled exception: execution interrupted")
}

func TestDrainLinger(t *testing.T) {
	c := newContext(t, testConfig(&recorder{}))

	require.NoError(t, run(t, c, `setInterval(function () {}, 5);`))

	err := c.Drain(context.Background(), 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrLingerExceeded)
	assert.Equal(t, 0, c.Pending())
}

func TestDrainCancelled(t *testing.T) {
	c := newContext(t, testConfig(&recorder{}))

	require.NoError(t, run(t, c, `setTimeout(function () {}, 60000);`))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Drain(ctx, 0), context.Canceled)
}

func TestLoopGlobalsHidden(t *testing.T) {
	c := newContext(t, testConfig(&recorder{}))

	got := eval(t, c, `[typeof setImmediate, typeof clearImmediate, typeof setTimeout, typeof require].join(',')`)
	assert.Equal(t, "undefined,undefined,function,function", got.Export())
	assert.Equal(t, Bindings, c.Global().Keys())
}

func TestClearImmediate(t *testing.T) {
	rec := &recorder{}
	c := newContext(t, testConfig(rec))

	require.NoError(t, run(t, c, `
		var id = api.timers.setImmediate(function () { console.log('never'); });
		api.timers.clearImmediate(id);
		setTimeout(function () { console.log('after'); }, 1);
	`))
	assert.Equal(t, 1, c.Pending())

	require.NoError(t, c.Drain(context.Background(), time.Second))
	assert.Equal(t, []string{"after"}, rec.Lines())
}

func TestTimerHandlesAreNumbers(t *testing.T) {
	c := newContext(t, testConfig(&recorder{}))

	got := eval(t, c, `
		var a = setTimeout(function () {}, 1);
		var b = setInterval(function () {}, 1);
		var i = api.timers.setImmediate(function () {});
		clearInterval(b);
		[typeof a, b - a, i - b].join(',');
	`)
	assert.Equal(t, "number,1,1", got.Export())
}

func TestDrainTwice(t *testing.T) {
	rec := &recorder{}
	c := newContext(t, testConfig(rec))

	require.NoError(t, run(t, c, `setTimeout(function () { console.log('first'); }, 1);`))
	require.NoError(t, c.Drain(context.Background(), time.Second))

	eval(t, c, `setTimeout(function () { console.log('second'); }, 1);`)
	require.NoError(t, c.Drain(context.Background(), time.Second))

	assert.Equal(t, []string{"first", "second"}, rec.Lines())
}

func TestCloseAbandonsPending(t *testing.T) {
	rec := &recorder{}
	c := newContext(t, testConfig(rec))

	require.NoError(t, run(t, c, `
		api.timers.setImmediate(function () { console.log('immediate'); });
		setTimeout(function () { console.log('timeout'); }, 1);
		setInterval(function () { console.log('tick'); }, 1);
	`))
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.Pending())
	assert.Empty(t, rec.Lines())
	assert.NoError(t, c.Drain(context.Background(), time.Second))
}

func TestToDelay(t *testing.T) {
	c := newContext(t, testConfig(&recorder{}))

	tests := []struct {
		src  string
		want time.Duration
	}{
		{"10", 10 * time.Millisecond},
		{"0", time.Millisecond},
		{"-5", time.Millisecond},
		{"undefined", time.Millisecond},
		{"'abc'", time.Millisecond},
		{"'25'", 25 * time.Millisecond},
		{"1e12", time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, toDelay(eval(t, c, tt.src)))
		})
	}
}
