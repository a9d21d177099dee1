package inspect

import (
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/dop251/goja"
)

// DefaultDepth matches console.dir's default nesting depth.
const DefaultDepth = 2

// MaxItems bounds how many properties of one object are rendered.
const MaxItems = 100

const (
	circularMarker = "[Circular]"
	accessorMarker = "[Getter/Setter]"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Render converts v into a JSON-safe Go value: objects become maps, arrays
// slices, callables and cycles descriptive strings. Nesting below depth is
// collapsed to "[Object]" or "[Array]".
func (r *Reflector) Render(v goja.Value, depth int) any {
	return r.render(v, depth, map[*goja.Object]bool{})
}

func (r *Reflector) render(v goja.Value, depth int, seen map[*goja.Object]bool) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}

	obj, isObj := v.(*goja.Object)
	if !isObj {
		return primitive(v)
	}

	if _, isFn := goja.AssertFunction(obj); isFn {
		return r.functionLabel(obj)
	}
	if seen[obj] {
		return circularMarker
	}
	if obj.ClassName() == "Error" {
		return r.errorString(obj)
	}

	isArray := obj.ClassName() == "Array"
	if depth < 0 {
		if isArray {
			return "[Array]"
		}
		return "[Object]"
	}

	seen[obj] = true
	defer delete(seen, obj)

	keys := r.OwnKeys(obj)
	if isArray {
		items := make([]any, 0, min(len(keys), MaxItems))
		for i, key := range keys {
			if i == MaxItems {
				items = append(items, fmt.Sprintf("... %d more items", len(keys)-MaxItems))
				break
			}
			items = append(items, r.renderProperty(obj, key, depth, seen))
		}
		return items
	}

	fields := make(map[string]any, min(len(keys), MaxItems))
	for i, key := range keys {
		if i == MaxItems {
			fields["..."] = fmt.Sprintf("%d more items", len(keys)-MaxItems)
			break
		}
		fields[key] = r.renderProperty(obj, key, depth, seen)
	}
	return fields
}

func (r *Reflector) renderProperty(obj *goja.Object, key string, depth int, seen map[*goja.Object]bool) any {
	value, accessor, ok := r.Property(obj, key)
	if !ok {
		return nil
	}
	if accessor {
		return accessorMarker
	}
	return r.render(value, depth-1, seen)
}

func primitive(v goja.Value) any {
	switch val := v.(type) {
	case *goja.Symbol:
		return val.String()
	}
	switch exported := v.Export().(type) {
	case float64:
		if math.IsNaN(exported) || math.IsInf(exported, 0) {
			return v.String()
		}
		return exported
	case *big.Int:
		return exported.String() + "n"
	default:
		return exported
	}
}

func (r *Reflector) functionLabel(fn *goja.Object) string {
	if name := r.FunctionName(fn); name != "" {
		return "[Function: " + name + "]"
	}
	return "[Function (anonymous)]"
}

// Inspect renders v as human-readable text in the style of util.inspect.
// Strings at the top level are quoted.
func (r *Reflector) Inspect(v goja.Value, depth int) string {
	var sb strings.Builder
	r.inspect(&sb, v, depth, map[*goja.Object]bool{})
	return sb.String()
}

func (r *Reflector) inspect(sb *strings.Builder, v goja.Value, depth int, seen map[*goja.Object]bool) {
	if v == nil || goja.IsUndefined(v) {
		sb.WriteString("undefined")
		return
	}
	if goja.IsNull(v) {
		sb.WriteString("null")
		return
	}

	obj, isObj := v.(*goja.Object)
	if !isObj {
		if s, isStr := v.Export().(string); isStr {
			sb.WriteString(quote(s))
			return
		}
		if n, isBig := v.Export().(*big.Int); isBig {
			sb.WriteString(n.String() + "n")
			return
		}
		sb.WriteString(v.String())
		return
	}

	if _, isFn := goja.AssertFunction(obj); isFn {
		sb.WriteString(r.functionLabel(obj))
		return
	}
	if seen[obj] {
		sb.WriteString(circularMarker)
		return
	}
	if obj.ClassName() == "Error" {
		sb.WriteString("[" + r.errorString(obj) + "]")
		return
	}

	isArray := obj.ClassName() == "Array"
	if depth < 0 {
		if isArray {
			sb.WriteString("[Array]")
		} else {
			sb.WriteString("[Object]")
		}
		return
	}

	keys := r.OwnKeys(obj)
	open, closing := "{", "}"
	if isArray {
		open, closing = "[", "]"
	}
	if len(keys) == 0 {
		sb.WriteString(open + closing)
		return
	}

	seen[obj] = true
	defer delete(seen, obj)

	sb.WriteString(open + " ")
	for i, key := range keys {
		if i == MaxItems {
			fmt.Fprintf(sb, "... %d more items", len(keys)-MaxItems)
			break
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		if !isArray {
			sb.WriteString(propertyKey(key) + ": ")
		}
		value, accessor, ok := r.Property(obj, key)
		switch {
		case !ok:
			sb.WriteString("undefined")
		case accessor:
			sb.WriteString(accessorMarker)
		default:
			r.inspect(sb, value, depth-1, seen)
		}
	}
	sb.WriteString(" " + closing)
}

func propertyKey(key string) string {
	if identifierRe.MatchString(key) {
		return key
	}
	if _, err := strconv.Atoi(key); err == nil {
		return key
	}
	return quote(key)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), "'", `\'`) + "'"
}

// Describe renders a thrown value for diagnostics. Errors use the captured
// Error.prototype.toString, anything else is inspected one level deep.
func (r *Reflector) Describe(v goja.Value) string {
	if v == nil {
		return "undefined"
	}
	if obj, isObj := v.(*goja.Object); isObj && obj.ClassName() == "Error" {
		return r.errorString(obj)
	}
	if s, isStr := v.Export().(string); isStr {
		return s
	}
	return r.Inspect(v, 1)
}
