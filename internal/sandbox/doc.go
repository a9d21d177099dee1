// Package sandbox builds the isolated goja context untrusted application
// code runs in.
//
// A Context owns one goja runtime whose global object is the binding scope.
// The only enumerable bindings are module, console, the timer functions,
// require and global (the global object itself). Code receives its
// capabilities through a frozen api object instead of ambient globals.
//
// Key Features:
//   - Budgets: compilation runs in a supervised goroutine, execution is
//     interrupted from a watchdog when its budget runs out
//   - Restricted loader: deny patterns, a local utility index and a small
//     host module registry, resolved from a table built once and loaded
//     through a goja_nodejs require registry
//   - Event loop: timers are scheduled on a goja_nodejs event loop that
//     only runs inside Drain, each callback under the execution budget
//   - Uncaught exceptions from timer callbacks are logged and never fatal
//
// A Context is not safe for concurrent use. Every method, Close included,
// must be called from the goroutine that owns it.
package sandbox
