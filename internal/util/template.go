package util

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// RenderTemplate executes a prompt template against state values. Missing
// keys render as empty strings.
func RenderTemplate(text string, values map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := template.New("prompt").Option("missingkey=zero").Funcs(template.FuncMap{
		"default": func(defaultVal any, val any) any {
			if val == nil || val == "" {
				return defaultVal
			}

			return val
		},
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"join": func(sep string, items any) string {
			switch v := items.(type) {
			case []string:
				return strings.Join(v, sep)
			case []any:
				parts := make([]string, len(v))
				for i, item := range v {
					parts[i] = fmt.Sprintf("%v", item)
				}

				return strings.Join(parts, sep)
			default:
				return fmt.Sprintf("%v", items)
			}
		},
	}).Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, values); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}

	// missingkey=zero prints "<no value>" for absent map entries.
	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}
