package engine

import (
	"regexp"
)

var placeholderRe = regexp.MustCompile(`\{([^}]+)\}`)

// Substitute replaces each {key} in tmpl with values[key]. Placeholders whose
// key is absent stay verbatim. Substituted text is never rescanned.
func Substitute(tmpl string, values map[string]string) string {
	return expand(tmpl, func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	})
}

// SubstituteAll applies Substitute to every value of m and returns a new map.
func SubstituteAll(m map[string]string, values map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = Substitute(v, values)
	}
	return out
}

// substituteTree resolves {key} against a decoded JSON object using dot paths,
// with extra taking precedence. Keys that resolve to "" stay verbatim.
func substituteTree(tmpl string, tree map[string]any, extra map[string]string) string {
	return expand(tmpl, func(key string) (string, bool) {
		if v, ok := extra[key]; ok {
			return v, v != ""
		}
		v := Lookup(tree, key)
		return v, v != ""
	})
}

func expand(tmpl string, resolve func(key string) (string, bool)) string {
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		if v, ok := resolve(match[1 : len(match)-1]); ok {
			return v
		}
		return match
	})
}
