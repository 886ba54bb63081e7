// Package prompt renders the text prompts sent to the report generator.
package prompt

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/oljefondvakt/fundwatch/internal/domain"
)

//go:embed templates/*.tmpl
var builtin embed.FS

// ErrTemplate is returned when a template cannot be loaded or rendered.
var ErrTemplate = errors.New("prompt template error")

// Template is a parsed prompt template. It is safe for concurrent use.
type Template struct {
	tmpl *template.Template
}

// BatchData is the data passed to a shallow batch template.
type BatchData struct {
	// Companies holds one sanitized "<name> from <country>" line per item.
	Companies string
	Items     []*domain.Investment
}

// DeepData is the data passed to a deep report template.
type DeepData struct {
	ID   string
	Name string
}

// LoadShallow reads a shallow batch template from path, or the built-in
// one when path is empty.
func LoadShallow(path string) (*Template, error) {
	return load(path, "shallow.tmpl")
}

// LoadDeep reads a deep report template from path, or the built-in one
// when path is empty.
func LoadDeep(path string) (*Template, error) {
	return load(path, "deep.tmpl")
}

func load(path, builtinName string) (*Template, error) {
	var (
		text []byte
		err  error
	)
	if path == "" {
		text, err = builtin.ReadFile("templates/" + builtinName)
	} else {
		text, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %q: %w", ErrTemplate, path, err)
	}
	return Parse(string(text))
}

// Parse parses template text. Missing keys are errors.
func Parse(text string) (*Template, error) {
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplate, err)
	}
	return &Template{tmpl: tmpl}, nil
}

// RenderBatch renders the prompt for one batch of investments.
func (t *Template) RenderBatch(items []*domain.Investment) (string, error) {
	lines := make([]string, len(items))
	for i, inv := range items {
		lines[i] = CompanyLine(inv)
	}
	return t.execute(BatchData{Companies: strings.Join(lines, "\n"), Items: items})
}

// RenderDeep renders the prompt for a single deep report.
func (t *Template) RenderDeep(inv *domain.Investment) (string, error) {
	return t.execute(DeepData{ID: inv.ID, Name: sanitize(inv.Name)})
}

func (t *Template) execute(data any) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %w", ErrTemplate, err)
	}
	return buf.String(), nil
}

// CompanyLine formats one investment as "<name> from <country>".
func CompanyLine(inv *domain.Investment) string {
	return sanitize(inv.Name) + " from " + sanitize(inv.Country)
}

var quoteStripper = strings.NewReplacer(`"`, "", `\`, "")

// sanitize drops characters that could break out of the quoted list the
// model is asked to echo back.
func sanitize(s string) string {
	return quoteStripper.Replace(s)
}
