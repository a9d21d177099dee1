// Command jsbox runs one untrusted JavaScript application inside the sandbox
// harness.
//
// Usage:
//
//	jsbox [flags] [application]
//
// The application argument names a directory holding index.js or a file
// <application>.js, both relative to the base directory. Without one, or
// when neither exists, application.js runs under the name "application".
//
// Configuration comes from defaults, then --config, then JSBOX_* environment
// variables, then explicit flags. The exit status is 0 when the run reaches
// Done and 1 otherwise.
package main
