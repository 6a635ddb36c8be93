package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

var variablePattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Template is a named system/user prompt pair with {{variable}} placeholders.
type Template struct {
	Name   string `yaml:"-"`
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// Rendered is a Template after substitution.
type Rendered struct {
	System string
	User   string
}

// Text joins both halves the way they are shown back to the caller.
func (r Rendered) Text() string {
	if r.System == "" {
		return r.User
	}
	return r.System + "\n\n" + r.User
}

// Render fills both halves of the template. Every placeholder must have a value.
func (t Template) Render(vars map[string]string) (Rendered, error) {
	system, err := Render(t.System, vars)
	if err != nil {
		return Rendered{}, fmt.Errorf("prompt %s system: %w", t.Name, err)
	}
	user, err := Render(t.User, vars)
	if err != nil {
		return Rendered{}, fmt.Errorf("prompt %s user: %w", t.Name, err)
	}
	return Rendered{System: strings.TrimSpace(system), User: strings.TrimSpace(user)}, nil
}

// Variables lists the placeholders used anywhere in the template.
func (t Template) Variables() []string {
	return ExtractVariables(t.System + " " + t.User)
}

// Render replaces {{variable}} placeholders in the template with values from vars.
// Substitution is single pass, so values that themselves contain {{...}} are left as is.
func Render(template string, vars map[string]string) (string, error) {
	missing := findMissingVars(template, vars)
	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}

	return variablePattern.ReplaceAllStringFunc(template, func(match string) string {
		return vars[match[2:len(match)-2]]
	}), nil
}

// ExtractVariables returns a list of variable names found in the template.
func ExtractVariables(template string) []string {
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
	for _, v := range ExtractVariables(template) {
		if _, ok := vars[v]; !ok {
			missing = append(missing, v)
		}
	}
	return missing
}
