// Package templates handles HTML template rendering for Datastar SSE responses.
package templates

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"strings"
)

// funcMap provides common template functions.
var funcMap = template.FuncMap{
	// percent renders a 0-1 fraction as a CSS percentage
	"percent": func(f float64) string {
		return fmt.Sprintf("%.1f%%", f*100)
	},
	"join": strings.Join,
}

// Renderer manages HTML fragment templates.
type Renderer struct {
	templates *template.Template
}

// New creates a renderer from a fragments directory on disk.
// fragmentsDir should be the path to web/templates/fragments/
func New(fragmentsDir string) (*Renderer, error) {
	return NewFS(os.DirFS(fragmentsDir))
}

// NewFS creates a renderer from the *.html files at the root of fsys.
func NewFS(fsys fs.FS) (*Renderer, error) {
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(fsys, "*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{templates: tmpl}, nil
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer renders a named template to a buffer.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	return r.templates.ExecuteTemplate(buf, name, data)
}
