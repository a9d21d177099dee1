package inspect

import (
	"fmt"
	"math/big"

	"github.com/dop251/goja"
)

// Reflector reads sandbox values without running sandbox code through
// getters or overridden methods. It captures the intrinsics it needs when
// constructed, so it must be created before untrusted code runs.
type Reflector struct {
	vm                       *goja.Runtime
	getOwnPropertyDescriptor goja.Callable
	functionToString         goja.Callable
	errorToString            goja.Callable
}

// NewReflector captures Object.getOwnPropertyDescriptor,
// Function.prototype.toString and Error.prototype.toString from vm.
func NewReflector(vm *goja.Runtime) (*Reflector, error) {
	gopd, err := intrinsic(vm, "Object", "getOwnPropertyDescriptor", false)
	if err != nil {
		return nil, err
	}
	fnToString, err := intrinsic(vm, "Function", "toString", true)
	if err != nil {
		return nil, err
	}
	errToString, err := intrinsic(vm, "Error", "toString", true)
	if err != nil {
		return nil, err
	}

	return &Reflector{
		vm:                       vm,
		getOwnPropertyDescriptor: gopd,
		functionToString:         fnToString,
		errorToString:            errToString,
	}, nil
}

func intrinsic(vm *goja.Runtime, ctor, method string, onPrototype bool) (goja.Callable, error) {
	holder := vm.GlobalObject().Get(ctor)
	if holder == nil || goja.IsUndefined(holder) {
		return nil, fmt.Errorf("intrinsic %s is missing", ctor)
	}
	obj := holder.ToObject(vm)
	if onPrototype {
		obj = obj.Get("prototype").ToObject(vm)
	}
	fn, ok := goja.AssertFunction(obj.Get(method))
	if !ok {
		return nil, fmt.Errorf("intrinsic %s.%s is not callable", ctor, method)
	}
	return fn, nil
}

// OwnKeys returns the own enumerable string keys of obj in property order.
func (r *Reflector) OwnKeys(obj *goja.Object) []string {
	if obj == nil {
		return nil
	}
	return obj.Keys()
}

// Property reads an own property. Accessor properties are reported as such
// and their getter is never called.
func (r *Reflector) Property(obj *goja.Object, key string) (value goja.Value, accessor, ok bool) {
	d, err := r.getOwnPropertyDescriptor(goja.Undefined(), obj, r.vm.ToValue(key))
	if err != nil || d == nil || goja.IsUndefined(d) {
		return nil, false, false
	}
	desc := d.ToObject(r.vm)

	// Only own keys of the descriptor are consulted, so a getter planted on
	// Object.prototype cannot observe the lookup.
	hasValue := false
	for _, k := range desc.Keys() {
		switch k {
		case "get", "set":
			return nil, true, true
		case "value":
			hasValue = true
		}
	}
	if !hasValue {
		return goja.Undefined(), false, true
	}
	return desc.Get("value"), false, true
}

// Source returns the source text of a callable using the captured
// Function.prototype.toString.
func (r *Reflector) Source(fn *goja.Object) string {
	v, err := r.functionToString(fn)
	if err != nil || v == nil {
		return ""
	}
	return v.String()
}

// Params returns the declared parameter count of a callable.
func (r *Reflector) Params(fn *goja.Object) int {
	v, accessor, ok := r.Property(fn, "length")
	if !ok || accessor {
		return 0
	}
	if n, isNum := v.Export().(int64); isNum {
		return int(n)
	}
	return 0
}

// FunctionName returns the own name property of a callable, if it is data.
func (r *Reflector) FunctionName(fn *goja.Object) string {
	v, accessor, ok := r.Property(fn, "name")
	if !ok || accessor {
		return ""
	}
	if s, isStr := v.Export().(string); isStr {
		return s
	}
	return ""
}

func (r *Reflector) errorString(obj *goja.Object) string {
	v, err := r.errorToString(obj)
	if err != nil || v == nil {
		return "Error"
	}
	return v.String()
}

// TypeOf returns the JavaScript typeof of v.
func TypeOf(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "object"
	}
	switch val := v.(type) {
	case *goja.Object:
		if _, ok := goja.AssertFunction(val); ok {
			return "function"
		}
		return "object"
	case *goja.Symbol:
		return "symbol"
	}
	switch v.Export().(type) {
	case string:
		return "string"
	case int64, float64:
		return "number"
	case bool:
		return "boolean"
	case *big.Int:
		return "bigint"
	}
	return "undefined"
}
