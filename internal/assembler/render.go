package assembler

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	apperrors "github.com/k8stag/k8stag/pkg/errors"
	"github.com/spf13/cast"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// templateFuncs provides the functions available to manifest templates
var templateFuncs = template.FuncMap{
	// inline renders a value the same way Assemble does
	"inline": func(v interface{}) (string, error) {
		return Stringify(v)
	},
	"toYaml": toYAML,
	"indent": indent,
	"nindent": func(spaces int, s string) string {
		return "\n" + indent(spaces, s)
	},
	// String functions
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
	"title": func(s string) string {
		return cases.Title(language.English).String(s)
	},
	"trim": strings.TrimSpace,
	"join": func(sep string, v interface{}) string {
		return strings.Join(cast.ToStringSlice(v), sep)
	},
	// Default value function
	"default": func(defaultVal, val interface{}) interface{} {
		if val == nil || val == "" {
			return defaultVal
		}
		return val
	},
	"quote": func(v interface{}) string {
		return fmt.Sprintf("%q", cast.ToString(v))
	},
}

// Render executes text as a Go template over data. Missing keys are errors,
// so a template never silently produces a manifest with holes in it.
func Render(name, text string, data interface{}) (string, error) {
	tmpl, err := template.New(name).Funcs(templateFuncs).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", apperrors.InvalidInput("failed to parse template %s: %v", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", apperrors.InvalidInput("failed to execute template %s: %v", name, err)
	}
	return buf.String(), nil
}

func toYAML(v interface{}) (string, error) {
	if m, ok := v.(map[string]interface{}); ok && len(m) == 0 {
		return "{}", nil
	}
	out, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(string(out), "\n"), nil
}

func indent(spaces int, s string) string {
	pad := strings.Repeat(" ", spaces)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = pad + line
		}
	}
	return strings.Join(lines, "\n")
}
