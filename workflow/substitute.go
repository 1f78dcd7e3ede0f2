package workflow

import (
	"fmt"
	"regexp"

	"github.com/batonhq/baton/action"
)

var placeholderRE = regexp.MustCompile(`\$\{([^}]+)\}`)

// substitute resolves ${key} placeholders in params against the run
// context, walking nested maps and slices so only placeholder leaves are
// touched. A string that is exactly one placeholder takes the context
// value with its type intact; placeholders embedded in a longer string
// interpolate; unknown keys stay verbatim. The input is never mutated —
// the plan graph stays pristine across retries and runs.
func substitute(params action.Params, runCtx map[string]any) action.Params {
	if params == nil {
		return nil
	}
	out := make(action.Params, len(params))
	for k, v := range params {
		out[k] = substituteValue(v, runCtx)
	}
	return out
}

func substituteValue(v any, runCtx map[string]any) any {
	switch t := v.(type) {
	case string:
		return substituteString(t, runCtx)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, nested := range t {
			out[k] = substituteValue(nested, runCtx)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, nested := range t {
			out[i] = substituteValue(nested, runCtx)
		}
		return out
	default:
		return v
	}
}

func substituteString(s string, runCtx map[string]any) any {
	// A leaf that is exactly one placeholder keeps the typed value, so a
	// step can pass a whole result map onward.
	if m := placeholderRE.FindStringSubmatch(s); m != nil && m[0] == s {
		if val, ok := runCtx[m[1]]; ok {
			return val
		}
		return s
	}

	return placeholderRE.ReplaceAllStringFunc(s, func(ph string) string {
		key := ph[2 : len(ph)-1]
		if val, ok := runCtx[key]; ok {
			return fmt.Sprintf("%v", val)
		}
		return ph
	})
}
