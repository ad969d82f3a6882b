// Package introspect infers callable signatures and documentation from
// JavaScript source text. Inference is purely syntactic and best-effort:
// it never fails, it only degrades to weaker answers.
package introspect

import (
	"regexp"
	"strings"
)

// Parameter describes a single inferred parameter of a callable.
type Parameter struct {
	Name       string
	Type       string
	HasDefault bool
}

var numberLiteral = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// nameHints maps parameter-name fragments to inferred types. Checked in
// order; the first match wins. The "is" hint matches as a prefix only,
// otherwise every name containing "list" would infer boolean.
var nameHints = []struct {
	fragment string
	typ      string
	prefix   bool
}{
	{fragment: "count", typ: "number"},
	{fragment: "num", typ: "number"},
	{fragment: "size", typ: "number"},
	{fragment: "flag", typ: "boolean"},
	{fragment: "enable", typ: "boolean"},
	{fragment: "is", typ: "boolean", prefix: true},
	{fragment: "list", typ: "array"},
	{fragment: "array", typ: "array"},
	{fragment: "config", typ: "object"},
	{fragment: "options", typ: "object"},
}

// ParseParameters extracts the parameter list from the source text of a
// single callable and returns one Parameter per entry. Both the
// function-keyword form and the arrow form are recognized. An empty or
// unparseable list yields an empty slice, never an error; callers treat
// such callables as zero-argument.
func ParseParameters(src string) []Parameter {
	raw, ok := parameterList(src)
	if !ok {
		return []Parameter{}
	}

	tokens := splitTopLevel(raw)
	params := make([]Parameter, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		params = append(params, parseToken(token))
	}
	return params
}

// parameterList returns the substring between the callable's parameter
// parentheses. A bare-identifier arrow form ("x => ...") returns the
// identifier itself.
func parameterList(src string) (string, bool) {
	src = strings.TrimSpace(src)
	if src == "" {
		return "", false
	}

	open := strings.IndexByte(src, '(')
	arrow := strings.Index(src, "=>")

	// Bare-identifier arrow: no parentheses before the arrow.
	if arrow >= 0 && (open < 0 || open > arrow) {
		ident := strings.TrimSpace(src[:arrow])
		ident = strings.TrimPrefix(ident, "async")
		ident = strings.TrimSpace(ident)
		if ident == "" {
			return "", false
		}
		return ident, true
	}

	if open < 0 {
		return "", false
	}

	depth := 0
	for i := open; i < len(src); i++ {
		switch src[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return src[open+1 : i], true
			}
		case '\'', '"', '`':
			j := skipString(src, i)
			if j < 0 {
				return "", false
			}
			i = j
		}
	}
	return "", false
}

// splitTopLevel splits a parameter list on commas that are not nested
// inside brackets or string literals.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '\'', '"', '`':
			j := skipString(s, i)
			if j < 0 {
				return parts
			}
			i = j
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// skipString returns the index of the closing quote matching the opening
// quote at s[i], or -1 if the literal never closes.
func skipString(s string, i int) int {
	quote := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case quote:
			return j
		}
	}
	return -1
}

func parseToken(token string) Parameter {
	name := token
	defaultVal := ""

	if eq := assignmentIndex(token); eq >= 0 {
		name = strings.TrimSpace(token[:eq])
		defaultVal = strings.TrimSpace(token[eq+1:])
	}

	name = cleanName(name)

	return Parameter{
		Name:       name,
		Type:       inferType(name, defaultVal),
		HasDefault: defaultVal != "",
	}
}

// assignmentIndex finds the default-value assignment in a parameter token,
// skipping comparison operators and arrows that may appear inside a
// default expression.
func assignmentIndex(token string) int {
	for i := 0; i < len(token); i++ {
		if token[i] != '=' {
			continue
		}
		if i+1 < len(token) && (token[i+1] == '=' || token[i+1] == '>') {
			i++
			continue
		}
		if i > 0 && (token[i-1] == '!' || token[i-1] == '<' || token[i-1] == '>' || token[i-1] == '=') {
			continue
		}
		return i
	}
	return -1
}

// cleanName strips destructuring punctuation and rest markers. The result
// is best effort, not semantically faithful to destructured sub-bindings.
func cleanName(name string) string {
	name = strings.TrimPrefix(name, "...")
	replacer := strings.NewReplacer("{", "", "}", "", "[", "", "]", "", " ", "", "\t", "", "\n", "")
	return replacer.Replace(name)
}

// inferType guesses a JSON-schema type for a parameter. Priority: the
// literal shape of the default value, then name-substring hints, then
// string.
func inferType(name, defaultVal string) string {
	if defaultVal != "" {
		switch {
		case defaultVal == "true" || defaultVal == "false":
			return "boolean"
		case numberLiteral.MatchString(defaultVal):
			return "number"
		case strings.HasPrefix(defaultVal, "'"), strings.HasPrefix(defaultVal, "\""), strings.HasPrefix(defaultVal, "`"):
			return "string"
		case strings.HasPrefix(defaultVal, "["):
			return "array"
		case strings.HasPrefix(defaultVal, "{"):
			return "object"
		}
	}

	lower := strings.ToLower(name)
	for _, hint := range nameHints {
		if hint.prefix {
			if strings.HasPrefix(lower, hint.fragment) {
				return hint.typ
			}
			continue
		}
		if strings.Contains(lower, hint.fragment) {
			return hint.typ
		}
	}
	return "string"
}
