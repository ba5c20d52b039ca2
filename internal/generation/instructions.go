package generation

import (
	"fmt"
	"strings"
	"text/template"
)

// DefaultInstructionsTemplate asks for a detailed, professionally structured
// deck in the configured language.
const DefaultInstructionsTemplate = `Create a detailed slide deck titled "{{.Title}}" from the provided sources.
Write every slide in {{.LanguageName}}.
{{- if .Style}}
Style: {{.Style}}.
{{- end}}
Use a clear professional structure: a title slide, an agenda, content slides with rich supporting points, and a closing summary.`

var languageNames = map[string]string{
	"zh_Hans": "Simplified Chinese",
	"zh_Hant": "Traditional Chinese",
	"en":      "English",
	"ja":      "Japanese",
	"ko":      "Korean",
	"de":      "German",
	"fr":      "French",
	"es":      "Spanish",
}

// Instructions describes the artifact the orchestrator asks for.
type Instructions struct {
	Title    string
	Language string
	Style    string
	// Prompt is the rendered free-text instruction sent to the remote service.
	Prompt string
}

// LanguageName returns a human-readable name for the language code, or the
// code itself when it is not known.
func (i Instructions) LanguageName() string {
	if name, ok := languageNames[i.Language]; ok {
		return name
	}
	return i.Language
}

// InstructionBuilder renders Instructions from a fixed template.
type InstructionBuilder struct {
	tmpl     *template.Template
	language string
	style    string
}

// NewInstructionBuilder parses tmpl (DefaultInstructionsTemplate when empty).
func NewInstructionBuilder(tmpl, language, style string) (*InstructionBuilder, error) {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultInstructionsTemplate
	}
	if language == "" {
		return nil, fmt.Errorf("%w: language is required", ErrInvalidConfig)
	}

	parsed, err := template.New("instructions").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("%w: instructions template: %v", ErrInvalidConfig, err)
	}

	return &InstructionBuilder{tmpl: parsed, language: language, style: style}, nil
}

// Build renders the instructions for a deck titled title.
func (b *InstructionBuilder) Build(title string) (Instructions, error) {
	inst := Instructions{Title: title, Language: b.language, Style: b.style}

	var sb strings.Builder
	if err := b.tmpl.Execute(&sb, inst); err != nil {
		return Instructions{}, fmt.Errorf("failed to render instructions: %w", err)
	}
	inst.Prompt = strings.TrimSpace(sb.String())

	return inst, nil
}
