package sandbox

import (
	"github.com/dop251/goja"

	"github.com/GriffinCanCode/jsbox/internal/inspect"
)

// consoleMethods all write through the intercepted console.
var consoleMethods = []string{"log", "info", "warn", "error", "debug"}

// newConsole creates the console binding.
func (c *Context) newConsole() *goja.Object {
	console := c.vm.NewObject()
	for _, method := range consoleMethods {
		_ = console.Set(method, c.consoleLog)
	}
	_ = console.Set("dir", c.consoleDir)
	return console
}

// consoleLog joins its arguments the way Array.prototype.join does:
// null and undefined become empty strings.
func (c *Context) consoleLog(call goja.FunctionCall) goja.Value {
	c.console.Log(joinArgs(call.Arguments)...)
	return goja.Undefined()
}

func (c *Context) consoleDir(call goja.FunctionCall) goja.Value {
	depth := inspect.DefaultDepth
	if opts, ok := call.Argument(1).(*goja.Object); ok {
		if d, ok := c.dataProperty(opts, "depth").Export().(int64); ok {
			depth = int(d)
		}
	}
	c.console.Log(c.reflector.Inspect(call.Argument(0), depth))
	return goja.Undefined()
}

func joinArgs(args []goja.Value) []string {
	parts := make([]string, len(args))
	for i, arg := range args {
		if arg == nil || goja.IsUndefined(arg) || goja.IsNull(arg) {
			continue
		}
		parts[i] = arg.String()
	}
	return parts
}
