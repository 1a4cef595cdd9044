// Package prompt holds the template helpers shared by the generation and
// validation prompts.
//
// Functions in the FuncMap are stateless and never panic, so one parsed
// template can be executed concurrently by every worker.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// FuncMap returns the template functions available to every prompt.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		// add converts 0-based indexes to 1-based numbering.
		// Template usage: {{add $i 1}}
		"add": func(a, b int) int {
			return a + b
		},

		// truncate limits string length in runes, adding "..." if truncated.
		// Template usage: {{truncate .Topic 80}}
		"truncate": Truncate,

		"lower": strings.ToLower,

		"trim": strings.TrimSpace,

		// join concatenates elements with separator between them.
		// Template usage: {{join .Axes ", "}}
		"join": func(elems []string, sep string) string {
			return strings.Join(elems, sep)
		},

		// quote wraps s in double quotes, escaping embedded quotes so
		// candidate text cannot break out of the surrounding prompt.
		"quote": func(s string) string {
			return fmt.Sprintf("%q", s)
		},

		// bullets renders one "- item" line per element.
		"bullets": func(elems []string) string {
			var b strings.Builder
			for i, e := range elems {
				if i > 0 {
					b.WriteByte('\n')
				}
				b.WriteString("- ")
				b.WriteString(e)
			}
			return b.String()
		},
	}
}

// Truncate shortens s to at most length runes.
func Truncate(s string, length int) string {
	if length <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	if length > 3 {
		return string(r[:length-3]) + "..."
	}
	return string(r[:length])
}

// Parse compiles a named template with FuncMap installed. Missing keys are
// errors rather than "<no value>".
func Parse(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(FuncMap()).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse %s template: %w", name, err)
	}
	return tmpl, nil
}

// MustParse is Parse for package-level templates.
func MustParse(name, text string) *template.Template {
	tmpl, err := Parse(name, text)
	if err != nil {
		panic(err)
	}
	return tmpl
}

// Render executes tmpl with data.
func Render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
