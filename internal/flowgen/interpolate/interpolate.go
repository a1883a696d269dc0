// Package interpolate implements the flow executor's string-level variable
// substitution: every "%|EXPR|%" token inside a serialized step is replaced
// by the script host's stringification of EXPR, evaluated against the
// caller's local variable scope.
package interpolate

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/wesleyorama2/flowgen/internal/flowgen/script"
)

// token matches "%|EXPR|%" non-greedily, same shape as the original
// run.rs interpolate_variables regex.
var token = regexp.MustCompile(`%\|(.+?)\|%`)

// Evaluator evaluates a single expression against an implicit environment.
// *script.Host satisfies this.
type Evaluator interface {
	Eval(expr string, env map[string]any) (any, error)
}

// Step rewrites the serialized JSON form of a step, substituting every
// interpolation token with the stringified result of evaluating its
// expression against env, then re-parses the result into out. Each distinct
// expression is evaluated at most once, regardless of how many times it
// appears in serialized.
func Step(eval Evaluator, serialized []byte, env map[string]any, out any) error {
	cache := make(map[string]string)
	var evalErr error

	rewritten := token.ReplaceAllFunc(serialized, func(match []byte) []byte {
		if evalErr != nil {
			return match
		}

		expr := string(token.FindSubmatch(match)[1])
		if cached, ok := cache[expr]; ok {
			return []byte(cached)
		}

		value, err := eval.Eval(expr, env)
		var substituted string
		if err != nil {
			substituted = fmt.Sprintf("NO_SUCH_VARIABLE:%s", expr)
		} else {
			substituted = script.Stringify(value)
		}

		cache[expr] = substituted
		return []byte(substituted)
	})

	if err := json.Unmarshal(rewritten, out); err != nil {
		return fmt.Errorf("re-parsing interpolated step: %w", err)
	}
	return nil
}
