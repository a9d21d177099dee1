package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// compileFn is swapped by tests to simulate a slow parser.
var compileFn = goja.Compile

// WrapSource turns application source into an arrow function taking the
// capability object.
func WrapSource(src string) string {
	return "(api => {\n" + src + "\n})"
}

// Compile compiles src on its own goroutine under the parse budget. On
// timeout the compilation is abandoned, its result discarded when it
// eventually finishes.
func Compile(ctx context.Context, name, src string, budget time.Duration) (*goja.Program, error) {
	type result struct {
		prog *goja.Program
		err  error
	}
	results := make(chan result, 1)
	compile := compileFn

	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- result{err: fmt.Errorf("%w: compiler panic: %v", ErrSyntax, r)}
			}
		}()
		prog, err := compile(name, src, false)
		results <- result{prog: prog, err: err}
	}()

	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case r := <-results:
		if r.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, r.err)
		}
		return r.prog, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w after %s", ErrParseTimeout, budget)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
