package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	variablePattern = regexp.MustCompile(`\{\{(\w+)\}\}`)
	sectionPattern  = regexp.MustCompile(`(?s)\{\{#if (\w+)\}\}(.*?)\{\{/if\}\}`)
)

// Template is a parsed prompt template. It supports {{variable}}
// placeholders and {{#if variable}}...{{/if}} sections that are kept only
// when the variable is non-blank. Sections do not nest.
type Template struct {
	name string
	text string
}

// Parse checks that every {{#if}} section is closed.
func Parse(name, text string) (*Template, error) {
	opens := strings.Count(text, "{{#if ")
	closes := strings.Count(text, "{{/if}}")
	if opens != closes {
		return nil, fmt.Errorf("template %s: %d {{#if}} sections but %d {{/if}}", name, opens, closes)
	}
	if opens != len(sectionPattern.FindAllString(text, -1)) {
		return nil, fmt.Errorf("template %s: nested or malformed {{#if}} section", name)
	}
	return &Template{name: name, text: text}, nil
}

// MustParse is Parse for package-level templates.
func MustParse(name, text string) *Template {
	t, err := Parse(name, text)
	if err != nil {
		panic(err)
	}
	return t
}

// Render resolves sections, then replaces placeholders. A placeholder left
// after section resolution must have a value in vars.
func (t *Template) Render(vars map[string]string) (string, error) {
	text := sectionPattern.ReplaceAllStringFunc(t.text, func(section string) string {
		m := sectionPattern.FindStringSubmatch(section)
		if strings.TrimSpace(vars[m[1]]) == "" {
			return ""
		}
		return m[2]
	})

	missing := findMissingVars(text, vars)
	if len(missing) > 0 {
		return "", fmt.Errorf("template %s: missing variables: %s", t.name, strings.Join(missing, ", "))
	}

	result := variablePattern.ReplaceAllStringFunc(text, func(match string) string {
		key := match[2 : len(match)-2] // strip {{ and }}
		return vars[key]
	})
	return result, nil
}

// extractVariables returns the {{variable}} placeholders found in the template.
func extractVariables(template string) []string {
	matches := variablePattern.FindAllStringSubmatch(template, -1)
	seen := make(map[string]bool)
	var vars []string
	for _, m := range matches {
		if len(m) > 1 && !seen[m[1]] {
			vars = append(vars, m[1])
			seen[m[1]] = true
		}
	}
	return vars
}

func findMissingVars(template string, vars map[string]string) []string {
	var missing []string
	for _, v := range extractVariables(template) {
		if _, ok := vars[v]; !ok {
			missing = append(missing, v)
		}
	}
	return missing
}
