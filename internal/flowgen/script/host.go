// Package script implements the embedded scripting capability: evaluate an
// expression or run a snippet of code against a string->value environment
// and return a value plus the mutated environment. It is backed by goja, a
// pure-Go ECMAScript runtime, the pack's ecosystem analogue of the original
// Rhai engine.
package script

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"github.com/tidwall/gjson"
)

// Host evaluates expressions and scripts against JSON-compatible
// environments. It is stateless; every call builds its own goja.Runtime so
// that globals from one call never leak into another, the same isolation
// the original source gets from constructing a fresh rhai::Engine per call.
type Host struct{}

// NewHost returns a ready Host.
func NewHost() *Host {
	return &Host{}
}

func newRuntime() *goja.Runtime {
	vm := goja.New()
	vm.Set("max", func(a, b int64) int64 {
		if a > b {
			return a
		}
		return b
	})
	vm.Set("min", func(a, b int64) int64 {
		if a < b {
			return a
		}
		return b
	})
	return vm
}

// upgrade implements the transparent JSON-string upgrade rule: a string
// value in env that itself parses as a JSON object or array is treated as
// that structured value, so scripts can use dot/index access on it.
func upgrade(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	trimmed := strings.TrimSpace(s)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return v
	}
	if !gjson.Valid(trimmed) {
		return v
	}
	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return v
	}
	return parsed
}

func setEnv(vm *goja.Runtime, env map[string]any) error {
	for name, value := range env {
		if err := vm.Set(name, upgrade(value)); err != nil {
			return fmt.Errorf("setting variable %q: %w", name, err)
		}
	}
	return nil
}

// readback walks the runtime's globals back into a plain map, dropping any
// name with a "__" prefix and JSON-round-tripping every remaining value so
// the result is safe to pass through the KV store and back into goja later.
func readback(vm *goja.Runtime) (map[string]any, error) {
	global := vm.GlobalObject()
	out := make(map[string]any)

	for _, name := range global.Keys() {
		if strings.HasPrefix(name, "__") {
			continue
		}
		prop := global.Get(name)
		if _, isFunc := goja.AssertFunction(prop); isFunc {
			continue
		}
		exported := prop.Export()

		encoded, err := json.Marshal(exported)
		if err != nil {
			// Values that can't round-trip through JSON (functions, symbols)
			// are simply not part of the data environment.
			continue
		}
		var decoded any
		if err := json.Unmarshal(encoded, &decoded); err != nil {
			continue
		}
		out[name] = decoded
	}

	return out, nil
}

// Eval evaluates a single expression against env and returns its value.
func (h *Host) Eval(expr string, env map[string]any) (any, error) {
	vm := newRuntime()
	if err := setEnv(vm, env); err != nil {
		return nil, err
	}

	value, err := vm.RunString(expr)
	if err != nil {
		return nil, fmt.Errorf("evaluating %q: %w", expr, err)
	}
	return value.Export(), nil
}

// Run executes code against env and returns the full post-execution
// environment (names beginning with "__" are never returned).
func (h *Host) Run(code string, env map[string]any) (map[string]any, error) {
	vm := newRuntime()
	if err := setEnv(vm, env); err != nil {
		return nil, err
	}

	if _, err := vm.RunString(code); err != nil {
		return nil, fmt.Errorf("running script: %w", err)
	}

	return readback(vm)
}

// Stringify renders a value the way interpolation substitutes it into a
// template: numbers as bare literals, strings verbatim (no quotes), anything
// else as its JSON encoding.
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return "null"
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case int64:
		return fmt.Sprintf("%d", t)
	case bool:
		return fmt.Sprintf("%v", t)
	default:
		encoded, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(encoded)
	}
}
