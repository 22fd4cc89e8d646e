// Package mail renders and dispatches account email. Transports (SMTP,
// Kafka relay, log) share a single injected template renderer.
package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	TemplateVerification    = "verification"
	TemplateRestorePassword = "restore_password"
)

// Subjects per template id.
var subjects = map[string]string{
	TemplateVerification:    "Confirm your email",
	TemplateRestorePassword: "Restore your password",
}

// Renderer maps (template id, data) to a message body.
type Renderer struct {
	templates *template.Template
}

func NewRenderer() (*Renderer, error) {
	t, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &Renderer{templates: t}, nil
}

func (r *Renderer) Render(name string, data map[string]string) (string, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name+".html", data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Subject returns the subject line for a template id.
func Subject(name string) string {
	if s, ok := subjects[name]; ok {
		return s
	}
	return name
}
