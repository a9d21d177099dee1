package sandbox

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
)

const (
	kindTimeout   = "timeout"
	kindInterval  = "interval"
	kindImmediate = "immediate"
)

// maxDelay is the largest delay a timer accepts; larger values fire after
// one millisecond.
const maxDelay = math.MaxInt32

// loopGlobals are the timer functions eventloop installs on the global
// object. They are captured and removed so only the sandbox's own bindings
// are visible to scripts.
var loopGlobals = map[string]string{
	kindTimeout:   "setTimeout",
	kindInterval:  "setInterval",
	kindImmediate: "setImmediate",
}

var loopClears = map[string]string{
	kindTimeout:   "clearTimeout",
	kindInterval:  "clearInterval",
	kindImmediate: "clearImmediate",
}

type timer struct {
	id     int64
	kind   string
	fn     goja.Callable
	args   []goja.Value
	handle goja.Value
}

// scheduler fronts the event loop's timer functions with numeric handles
// and wraps every callback so failures are reported instead of swallowed.
// It is only used from the goroutine that owns the runtime: the loop runs
// on that goroutine inside Drain.
type scheduler struct {
	loop   *eventloop.EventLoop
	native map[string]goja.Callable
	nextID int64
	timers map[int64]*timer
	ctx    context.Context
	closed bool
}

func newScheduler(loop *eventloop.EventLoop, global *goja.Object) (*scheduler, error) {
	s := &scheduler{
		loop:   loop,
		native: make(map[string]goja.Callable, len(loopGlobals)+len(loopClears)),
		timers: make(map[int64]*timer),
		ctx:    context.Background(),
	}
	for _, names := range []map[string]string{loopGlobals, loopClears} {
		for _, name := range names {
			fn, ok := goja.AssertFunction(global.Get(name))
			if !ok {
				return nil, fmt.Errorf("event loop binding %s is missing", name)
			}
			s.native[name] = fn
			if err := global.Delete(name); err != nil {
				return nil, fmt.Errorf("failed to unbind %s: %w", name, err)
			}
		}
	}
	return s, nil
}

// Pending returns the number of timers that have not fired or been cleared.
func (c *Context) Pending() int {
	return len(c.sched.timers)
}

// Drain runs the event loop until no timer is pending. A positive linger
// bounds the wait; timers still pending when it runs out are abandoned and
// ErrLingerExceeded is returned. Each callback runs under the execution
// budget and its failures are handled as uncaught exceptions.
func (c *Context) Drain(ctx context.Context, linger time.Duration) error {
	s := c.sched
	if s.closed || len(s.timers) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		c.abandon()
		return err
	}

	s.ctx = ctx
	defer func() { s.ctx = context.Background() }()

	var deadline <-chan time.Time
	if linger > 0 {
		timer := time.NewTimer(linger)
		defer timer.Stop()
		deadline = timer.C
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	var expired bool
	var cancelled error

	s.loop.Run(func(*goja.Runtime) {
		go func() {
			defer close(stopped)
			select {
			case <-deadline:
				expired = true
				s.loop.StopNoWait()
			case <-ctx.Done():
				cancelled = ctx.Err()
				s.loop.StopNoWait()
			case <-done:
			}
		}()
	})
	close(done)
	<-stopped

	abandoned := len(s.timers)
	if abandoned == 0 {
		return nil
	}
	c.abandon()
	if expired {
		return fmt.Errorf("%w: %d timers abandoned after %s", ErrLingerExceeded, abandoned, linger)
	}
	return cancelled
}

// abandon drops every pending timer. Immediates the loop still runs while
// terminating see closed and return without calling back into the script.
func (c *Context) abandon() {
	s := c.sched
	s.closed = true
	s.loop.Terminate()
	clear(s.timers)
}

// fire runs one timer callback. It is what the event loop actually calls.
func (c *Context) fire(t *timer) {
	s := c.sched
	if s.closed || s.timers[t.id] != t {
		return
	}
	if t.kind != kindInterval {
		delete(s.timers, t.id)
	}
	c.metrics.RecordTimer(t.kind)

	err := c.Guard(s.ctx, func() error {
		_, err := t.fn(goja.Undefined(), t.args...)
		return err
	})
	if err != nil {
		c.uncaught(err)
	}
}

// setTimer returns setTimeout, setInterval or setImmediate.
func (c *Context) setTimer(kind string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(c.vm.NewTypeError("The \"callback\" argument must be of type function"))
		}

		s := c.sched
		t := &timer{kind: kind, fn: fn}
		loopArgs := []goja.Value{c.vm.ToValue(func(goja.FunctionCall) goja.Value {
			c.fire(t)
			return goja.Undefined()
		})}
		rest := 1
		if kind != kindImmediate {
			loopArgs = append(loopArgs, c.vm.ToValue(toDelay(call.Argument(1)).Milliseconds()))
			rest = 2
		}
		if len(call.Arguments) > rest {
			t.args = append([]goja.Value(nil), call.Arguments[rest:]...)
		}

		handle, err := s.native[loopGlobals[kind]](goja.Undefined(), loopArgs...)
		if err != nil {
			c.rethrow(err)
		}
		s.nextID++
		t.id = s.nextID
		t.handle = handle
		s.timers[t.id] = t
		return c.vm.ToValue(t.id)
	}
}

// clearTimer serves clearTimeout, clearInterval and clearImmediate, which
// share one handle space.
func (c *Context) clearTimer(call goja.FunctionCall) goja.Value {
	handle := call.Argument(0)
	if goja.IsUndefined(handle) || goja.IsNull(handle) {
		return goja.Undefined()
	}

	s := c.sched
	t, ok := s.timers[handle.ToInteger()]
	if !ok {
		return goja.Undefined()
	}
	delete(s.timers, t.id)
	if _, err := s.native[loopClears[t.kind]](goja.Undefined(), t.handle); err != nil {
		c.rethrow(err)
	}
	return goja.Undefined()
}

// toDelay converts a millisecond delay. Values below one, above maxDelay or
// not numbers at all become one millisecond.
func toDelay(v goja.Value) time.Duration {
	ms := v.ToFloat()
	if math.IsNaN(ms) || ms < 1 || ms > maxDelay {
		ms = 1
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// timersModule returns the frozen timers object used by api.timers and
// require('timers'), building it on first use.
func (c *Context) timersModule() (*goja.Object, error) {
	if c.timersAPI != nil {
		return c.timersAPI, nil
	}

	timers := c.vm.NewObject()
	funcs := []struct {
		name string
		fn   func(goja.FunctionCall) goja.Value
	}{
		{"setTimeout", c.setTimer(kindTimeout)},
		{"setInterval", c.setTimer(kindInterval)},
		{"setImmediate", c.setTimer(kindImmediate)},
		{"clearTimeout", c.clearTimer},
		{"clearInterval", c.clearTimer},
		{"clearImmediate", c.clearTimer},
	}
	for _, f := range funcs {
		if err := timers.Set(f.name, f.fn); err != nil {
			return nil, err
		}
	}
	if _, err := c.freeze(goja.Undefined(), timers); err != nil {
		return nil, fmt.Errorf("failed to freeze timers: %w", err)
	}
	c.timersAPI = timers
	return timers, nil
}
