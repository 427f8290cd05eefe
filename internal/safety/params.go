package safety

import (
	"fmt"
	"regexp"
	"sort"
)

var namedParamPattern = regexp.MustCompile(`:([a-zA-Z_][a-zA-Z0-9_]*)`)

// BindParameters rewrites every ":name" placeholder in sql to a positional
// "$N" placeholder and returns the bound values in the same order, so the
// driver's extended query protocol binds them — values are never
// interpolated into the SQL text itself (§3). Placeholder-to-position
// assignment is alphabetical by name, so the same (sql, params) pair
// always produces the same rewritten SQL and ordering, which lets a
// retried run replay the identical binding from its persisted snapshot.
func BindParameters(sql string, params map[string]string) (string, []string, error) {
	names := make(map[string]struct{})
	for _, m := range namedParamPattern.FindAllStringSubmatch(sql, -1) {
		names[m[1]] = struct{}{}
	}

	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	position := make(map[string]int, len(ordered))
	values := make([]string, len(ordered))
	for i, name := range ordered {
		position[name] = i + 1
		v, ok := params[name]
		if !ok {
			return "", nil, fmt.Errorf("missing value for parameter %q", name)
		}
		values[i] = v
	}

	bound := namedParamPattern.ReplaceAllStringFunc(sql, func(token string) string {
		name := token[1:]
		return fmt.Sprintf("$%d", position[name])
	})

	return bound, values, nil
}

// ParamValuesAsAny converts the string-encoded parameter values back to
// []any for the driver call. Values are bound as strings and rely on
// Postgres's implicit cast from the placeholder's inferred type — the
// same behavior the safety gate already assumes when it refuses to parse
// parameter values as SQL.
func ParamValuesAsAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
