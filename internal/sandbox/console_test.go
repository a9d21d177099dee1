package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsoleJoin(t *testing.T) {
	rec := &recorder{}
	c := newContext(t, testConfig(rec))

	eval(t, c, `
		console.log('a', null, undefined, 1, true);
		console.error('oops');
		console.info({});
		console.dir({ a: 1, nested: { b: [1, 2] } });
		console.dir({ a: { b: { c: 1 } } }, { depth: 0 });
	`)

	assert.Equal(t, []string{
		"a   1 true",
		"oops",
		"[object Object]",
		"{ a: 1, nested: { b: [ 1, 2 ] } }",
		"{ a: [Object] }",
	}, rec.Lines())
}
