package inspect

import (
	"fmt"

	"github.com/dop251/goja"
)

// Kind is the closed classification of an exported value.
type Kind string

const (
	KindPrimitive Kind = "primitive"
	KindObject    Kind = "object"
	KindCallable  Kind = "callable"
	KindOther     Kind = "other"
)

// DefaultName names the record produced when module.exports is not a plain
// object.
const DefaultName = "default"

// Record describes one exported value.
type Record struct {
	Name     string    `json:"name"`
	Kind     Kind      `json:"kind"`
	Type     string    `json:"type"`
	Value    any       `json:"value"`
	Callable *Callable `json:"callable,omitempty"`
}

// Callable carries what a callable export declares about itself.
type Callable struct {
	Params int    `json:"params"`
	Source string `json:"source"`
}

// Summary renders r on one line: callables as their arity, primitives with
// their value, everything else by type.
func (r Record) Summary() string {
	switch r.Kind {
	case KindCallable:
		params := 0
		if r.Callable != nil {
			params = r.Callable.Params
		}
		return fmt.Sprintf("%s: function(%d)", r.Name, params)
	case KindPrimitive:
		switch v := r.Value.(type) {
		case nil:
			if r.Type == "undefined" {
				return r.Name + ": undefined"
			}
			return r.Name + ": null"
		case string:
			return fmt.Sprintf("%s: %s %q", r.Name, r.Type, v)
		default:
			return fmt.Sprintf("%s: %s %v", r.Name, r.Type, v)
		}
	default:
		return r.Name + ": " + r.Type
	}
}

// Classify maps a value to its Kind. null and undefined are primitives,
// symbols are other.
func Classify(v goja.Value) Kind {
	switch TypeOf(v) {
	case "function":
		return KindCallable
	case "object":
		if v == nil || goja.IsNull(v) {
			return KindPrimitive
		}
		return KindObject
	case "symbol":
		return KindOther
	default:
		return KindPrimitive
	}
}

// Exports builds one Record per own enumerable key of exports. Exported
// callables are never invoked and accessor properties are classified as
// other without running their getter.
func (r *Reflector) Exports(exports goja.Value, depth int) []Record {
	records := []Record{}

	obj, isObj := exports.(*goja.Object)
	if !isObj {
		return append(records, r.record(DefaultName, exports, depth))
	}
	if _, isFn := goja.AssertFunction(obj); isFn {
		records = append(records, r.record(DefaultName, obj, depth))
	}

	for _, key := range r.OwnKeys(obj) {
		value, accessor, ok := r.Property(obj, key)
		if !ok {
			continue
		}
		if accessor {
			records = append(records, Record{
				Name:  key,
				Kind:  KindOther,
				Type:  "accessor",
				Value: accessorMarker,
			})
			continue
		}
		records = append(records, r.record(key, value, depth))
	}
	return records
}

func (r *Reflector) record(name string, v goja.Value, depth int) Record {
	rec := Record{
		Name: name,
		Kind: Classify(v),
		Type: TypeOf(v),
	}
	if rec.Kind == KindCallable {
		fn := v.(*goja.Object)
		rec.Value = r.Render(fn, depth)
		rec.Callable = &Callable{
			Params: r.Params(fn),
			Source: r.Source(fn),
		}
		return rec
	}
	rec.Value = r.Render(v, depth)
	return rec
}
