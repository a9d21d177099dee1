package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsbox/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsbox/internal/inspect"
	"github.com/GriffinCanCode/jsbox/internal/logging"
)

// Bindings lists the enumerable globals of a fresh context in creation order.
var Bindings = []string{
	"module",
	"console",
	"setTimeout",
	"setInterval",
	"clearTimeout",
	"clearInterval",
	"require",
	"global",
}

// Context is an isolated goja runtime with the harness bindings installed.
type Context struct {
	vm        *goja.Runtime
	config    Config
	console   Console
	logger    *logging.Logger
	metrics   *monitoring.Metrics
	reflector *inspect.Reflector
	loader    *Loader
	sched     *scheduler

	global    *goja.Object
	api       *goja.Object
	requireFn goja.Value
	timersAPI *goja.Object
	freeze    goja.Callable
	errorCtor *goja.Object
}

// New creates a sandbox context. Everything untrusted code could tamper
// with is captured here, before any of it runs.
func New(config Config) (*Context, error) {
	defaults := DefaultConfig()
	if config.ExecTimeout <= 0 {
		config.ExecTimeout = defaults.ExecTimeout
	}
	if config.MaxCallStack <= 0 {
		config.MaxCallStack = defaults.MaxCallStack
	}
	if config.Console == nil {
		config.Console = nopConsole{}
	}
	if config.Logger == nil {
		config.Logger = logging.NewDefault()
	}
	if config.Metrics == nil {
		config.Metrics = monitoring.NewMetrics()
	}

	loader, err := newLoader(config.UtilsDir, config.Deny)
	if err != nil {
		return nil, err
	}

	// The event loop creates the runtime. It only runs inside Drain, so
	// outside of it the calling goroutine drives the runtime directly.
	loop := eventloop.NewEventLoop(
		eventloop.EnableConsole(false),
		eventloop.WithRegistry(loader.registry),
	)
	var vm *goja.Runtime
	loop.Run(func(r *goja.Runtime) { vm = r })
	vm.SetMaxCallStackSize(config.MaxCallStack)

	reflector, err := inspect.NewReflector(vm)
	if err != nil {
		return nil, fmt.Errorf("failed to capture intrinsics: %w", err)
	}

	c := &Context{
		vm:        vm,
		config:    config,
		console:   config.Console,
		logger:    config.Logger.Named("sandbox"),
		metrics:   config.Metrics,
		reflector: reflector,
		loader:    loader,
		global:    vm.GlobalObject(),
	}

	if err := c.captureIntrinsics(); err != nil {
		return nil, err
	}

	loader.bind(c)
	c.sched, err = newScheduler(loop, c.global)
	if err != nil {
		return nil, err
	}
	if err := c.global.Delete("require"); err != nil {
		return nil, fmt.Errorf("failed to unbind registry require: %w", err)
	}

	if err := c.setupGlobals(); err != nil {
		return nil, err
	}
	if err := c.setupAPI(); err != nil {
		return nil, err
	}

	c.logger.Debug("sandbox created",
		zap.Strings("bindings", Bindings),
		zap.Int("utilities", len(c.loader.local)),
	)
	return c, nil
}

func (c *Context) captureIntrinsics() error {
	object, ok := c.global.Get("Object").(*goja.Object)
	if !ok {
		return errors.New("intrinsic Object is missing")
	}
	freeze, ok := goja.AssertFunction(object.Get("freeze"))
	if !ok {
		return errors.New("intrinsic Object.freeze is missing")
	}
	errorCtor, ok := c.global.Get("Error").(*goja.Object)
	if !ok {
		return errors.New("intrinsic Error is missing")
	}
	c.freeze = freeze
	c.errorCtor = errorCtor
	return nil
}

// setupGlobals installs the bindings in the order listed by Bindings.
func (c *Context) setupGlobals() error {
	module := c.vm.NewObject()
	if err := module.Set("exports", c.vm.NewObject()); err != nil {
		return err
	}

	c.requireFn = c.vm.ToValue(c.require)
	values := map[string]any{
		"module":        module,
		"console":       c.newConsole(),
		"setTimeout":    c.setTimer(kindTimeout),
		"setInterval":   c.setTimer(kindInterval),
		"clearTimeout":  c.clearTimer,
		"clearInterval": c.clearTimer,
		"require":       c.requireFn,
		"global":        c.global,
	}
	for _, name := range Bindings {
		if err := c.vm.Set(name, values[name]); err != nil {
			return fmt.Errorf("failed to bind %s: %w", name, err)
		}
	}
	return nil
}

// setupAPI builds the frozen capability object handed to the application.
func (c *Context) setupAPI() error {
	timers, err := c.timersModule()
	if err != nil {
		return err
	}
	events, err := c.loader.load("events")
	if err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}

	api := c.vm.NewObject()
	if err := api.Set("timers", timers); err != nil {
		return err
	}
	if err := api.Set("events", events); err != nil {
		return err
	}
	if _, err := c.freeze(goja.Undefined(), api); err != nil {
		return fmt.Errorf("failed to freeze api: %w", err)
	}
	c.api = api
	return nil
}

// API returns the capability object.
func (c *Context) API() *goja.Object {
	return c.api
}

// Global returns the global object, which is the binding scope.
func (c *Context) Global() *goja.Object {
	return c.global
}

// Reflector returns the reflector bound to this context.
func (c *Context) Reflector() *inspect.Reflector {
	return c.reflector
}

// Execute runs a compiled program, which must evaluate to a function, and
// calls that function with the capability object. Both steps share the
// execution budget.
func (c *Context) Execute(ctx context.Context, prog *goja.Program) error {
	return c.Guard(ctx, func() error {
		v, err := c.vm.RunProgram(prog)
		if err != nil {
			return err
		}
		fn, ok := goja.AssertFunction(v)
		if !ok {
			return ErrNotCallable
		}
		_, err = fn(goja.Undefined(), c.api)
		return err
	})
}

// Eval runs source in the global scope under the execution budget.
func (c *Context) Eval(ctx context.Context, src string) (goja.Value, error) {
	var result goja.Value
	err := c.Guard(ctx, func() error {
		v, err := c.vm.RunString(src)
		result = v
		return err
	})
	return result, err
}

// Guard runs fn under the execution budget. Any read that can reach a
// proxy trap or user code belongs inside a Guard.
func (c *Context) Guard(ctx context.Context, fn func() error) error {
	return c.guard(ctx, c.config.ExecTimeout, fn)
}

func (c *Context) guard(ctx context.Context, budget time.Duration, fn func() error) (err error) {
	done := make(chan struct{})
	stopped := make(chan struct{})
	timer := time.NewTimer(budget)

	go func() {
		defer close(stopped)
		defer timer.Stop()
		select {
		case <-timer.C:
			c.vm.Interrupt(budgetExceeded(budget))
		case <-ctx.Done():
			c.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			err = c.fromPanic(r)
		}
		close(done)
		<-stopped
		c.vm.ClearInterrupt()
	}()

	return c.translate(fn())
}

type budgetExceeded time.Duration

func (b budgetExceeded) Error() string {
	return fmt.Sprintf("budget of %s exhausted", time.Duration(b))
}

// translate maps goja errors onto ErrInterrupted and *ScriptError.
func (c *Context) translate(err error) error {
	if err == nil {
		return nil
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return fmt.Errorf("%w: %w", ErrInterrupted, cause)
		}
		return fmt.Errorf("%w: %v", ErrInterrupted, interrupted.Value())
	}

	var ex *goja.Exception
	if errors.As(err, &ex) {
		return &ScriptError{
			Message: c.reflector.Describe(ex.Value()),
			Stack:   stackOf(ex),
			Cause:   err,
		}
	}

	var overflow *goja.StackOverflowError
	if errors.As(err, &overflow) {
		return &ScriptError{Message: "RangeError: Maximum call stack size exceeded", Cause: err}
	}

	return err
}

func (c *Context) fromPanic(r any) error {
	switch v := r.(type) {
	case *goja.Exception:
		return c.translate(v)
	case *goja.InterruptedError:
		return c.translate(v)
	case goja.Value:
		return &ScriptError{Message: c.reflector.Describe(v)}
	case error:
		return &ScriptError{Message: "panic: " + v.Error(), Cause: v}
	default:
		return &ScriptError{Message: fmt.Sprintf("panic: %v", v)}
	}
}

func stackOf(ex *goja.Exception) string {
	var b bytes.Buffer
	for _, frame := range ex.Stack() {
		b.WriteString("\tat ")
		frame.Write(&b)
		b.WriteByte('\n')
	}
	return b.String()
}

// Exports returns module.exports as the application left it, or undefined
// when module was replaced by something without exports. Call inside Guard.
func (c *Context) Exports() goja.Value {
	module, ok := c.dataProperty(c.global, "module").(*goja.Object)
	if !ok {
		return goja.Undefined()
	}
	return c.dataProperty(module, "exports")
}

// Inspect builds export records for module.exports under the execution
// budget.
func (c *Context) Inspect(ctx context.Context) ([]inspect.Record, error) {
	var records []inspect.Record
	err := c.Guard(ctx, func() error {
		records = c.reflector.Exports(c.Exports(), inspect.DefaultDepth)
		return nil
	})
	return records, err
}

// DiffTarget returns the object whose keys describe the context after the
// run: module.exports.global when the application exported one, otherwise
// the global binding, otherwise the global object. Call inside Guard.
func (c *Context) DiffTarget() *goja.Object {
	if exports, ok := c.Exports().(*goja.Object); ok {
		if target, ok := c.dataProperty(exports, "global").(*goja.Object); ok {
			return target
		}
	}
	if target, ok := c.dataProperty(c.global, "global").(*goja.Object); ok {
		return target
	}
	return c.global
}

// WellFormed reports whether the global binding still refers to the global
// object itself.
func (c *Context) WellFormed() bool {
	g, ok := c.dataProperty(c.global, "global").(*goja.Object)
	return ok && g.SameAs(c.global)
}

// dataProperty reads an own data property without triggering getters.
func (c *Context) dataProperty(obj *goja.Object, key string) goja.Value {
	v, accessor, ok := c.reflector.Property(obj, key)
	if !ok || accessor || v == nil {
		return goja.Undefined()
	}
	return v
}

// uncaught handles an exception nothing above the event loop could catch.
func (c *Context) uncaught(err error) {
	c.console.Log("Unhandled exception: " + err.Error())
	c.metrics.RecordUncaught()
	c.logger.Warn("uncaught exception", zap.Error(err))
}

// throwError throws a JS Error built from the captured constructor.
func (c *Context) throwError(message, code string) {
	obj, err := c.vm.New(c.errorCtor, c.vm.ToValue(message))
	if err != nil {
		panic(c.vm.NewGoError(err))
	}
	if code != "" {
		_ = obj.Set("code", code)
	}
	panic(obj)
}

// Close abandons pending timers and stops the event loop. Call it from the
// goroutine that owns the context, never while Drain is running.
func (c *Context) Close() error {
	if !c.sched.closed {
		c.abandon()
	}
	return nil
}

type nopConsole struct{}

func (nopConsole) Log(...string) {}
