// Package review composes human-readable notification texts: template
// substitution for rule based messages and the weekly review report.
package review

import (
	"regexp"
	"unicode/utf8"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z][A-Za-z0-9_]*)\}`)

// Substitute replaces every {name} token whose name is in values. Unknown
// tokens are kept verbatim.
func Substitute(template string, values map[string]string) string {
	if len(values) == 0 {
		return template
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(token string) string {
		name := token[1 : len(token)-1]
		if v, ok := values[name]; ok {
			return v
		}
		return token
	})
}

// Ellipsize shortens s to at most max characters, ending in "…" when cut.
func Ellipsize(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
