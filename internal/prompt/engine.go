// Package prompt renders the engine's prompt templates.
//
// Templates are embedded at build time and rendered with text/template.
// The extract-action prompt is pure in its inputs: rendering the same
// variables yields the same prompt.
package prompt

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	voyagererrors "github.com/voyagerhq/voyager/internal/errors"
)

//go:embed templates/*.txt
var templateFS embed.FS

// ExtractAction is the template name for the per-step action prompt.
const ExtractAction = "extract-action"

// Engine renders named prompt templates.
type Engine struct {
	templates *template.Template
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt templates: %w", err)
	}
	return &Engine{templates: templates}, nil
}

// LoadPrompt renders the named template with the given variables.
// Returns ErrPromptNotFound for an unknown name.
func (e *Engine) LoadPrompt(name string, vars map[string]any) (string, error) {
	tmpl := e.templates.Lookup(name + ".txt")
	if tmpl == nil {
		return "", fmt.Errorf("%w: %s", voyagererrors.ErrPromptNotFound, name)
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, vars); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", name, err)
	}
	return out.String(), nil
}
