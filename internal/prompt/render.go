package prompt

import (
	"regexp"
	"strings"
)

var (
	sectionRe     = regexp.MustCompile(`(?s)\{\{#([A-Z0-9_]+)\}\}(.*?)\{\{/([A-Z0-9_]+)\}\}`)
	placeholderRe = regexp.MustCompile(`\{\{([A-Z0-9_]+)\}\}`)
)

// Render fills a template. {{#KEY}}...{{/KEY}} sections survive only when
// vars[KEY] is non-blank. {{KEY}} is replaced in a single pass, so values
// are never re-expanded; unknown keys render empty.
func Render(tpl string, vars map[string]string) string {
	out := sectionRe.ReplaceAllStringFunc(tpl, func(m string) string {
		sub := sectionRe.FindStringSubmatch(m)
		if sub[1] != sub[3] {
			return m
		}
		if strings.TrimSpace(vars[sub[1]]) == "" {
			return ""
		}
		return sub[2]
	})

	return placeholderRe.ReplaceAllStringFunc(out, func(m string) string {
		return vars[m[2:len(m)-2]]
	})
}
