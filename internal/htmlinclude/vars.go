package htmlinclude

import (
	"encoding/json"
	"fmt"
	"strings"
)

func mergeVars(parent, params map[string]any) map[string]any {
	merged := make(map[string]any, len(parent)+len(params))
	for k, v := range parent {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

// substitute replaces @@name and @@name.field references found in vars.
// The include keyword itself is never substituted.
func substitute(content string, vars map[string]any) string {
	if len(vars) == 0 {
		return content
	}
	return variableRegex.ReplaceAllStringFunc(content, func(ref string) string {
		name := ref[2:]
		if name == "include" {
			return ref
		}
		v, ok := lookup(vars, name)
		if !ok {
			return ref
		}
		return render(v)
	})
}

func lookup(vars map[string]any, name string) (any, bool) {
	var cur any = vars
	for _, part := range strings.Split(name, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func render(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}
