// Package template renders Go templates inside block configuration
// against the current accumulated state.
package template

import (
	"fmt"
	"strings"
	"text/template"
	"time"
)

// RenderString renders templateStr with state as the dot value and
// returns the result as a string. Missing keys render as "<no value>";
// blocks that need stricter behavior use RenderStrict.
func RenderString(templateStr string, state map[string]any) (string, error) {
	return render(templateStr, state, "default")
}

// RenderStrict is RenderString with missingkey=error: referencing a state
// key that does not exist fails the render.
func RenderStrict(templateStr string, state map[string]any) (string, error) {
	return render(templateStr, state, "error")
}

func render(templateStr string, state map[string]any, missingKey string) (string, error) {
	tmpl, err := template.
		New("block").
		Option("missingkey=" + missingKey).
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
			"trim":  strings.TrimSpace,
		}).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, state)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return buf.String(), nil
}
