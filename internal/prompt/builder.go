package prompt

import (
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/Masterminds/sprig/v3"

	"ragchat/internal/logger"
)

const (
	sectionSeparator = "\n\n"
	truncatedMarker  = "... [truncated]"
	noContextText    = "No matching policy found"
)

// instructionTemplate follows the Mistral instruction syntax expected by the
// completion server.
const instructionTemplate = `<s>[INST] <<SYS>>You are an HR policy expert. Answer in this exact format:
  1. SUMMARY: 1-sentence answer
  2. POLICY DETAILS:
     - Bullet 1
     - Bullet 2
  3. REFERENCE: [Section X.Y] or [Policy ABC123]
  <</SYS>>

  RELEVANT POLICY EXCERPTS:
  {{ .Context | default "` + noContextText + `" }}

  QUESTION: {{ trim .Query }} [/INST]</s>`

var instructions = template.Must(
	template.New("instructions").Option("missingkey=error").Funcs(sprig.TxtFuncMap()).Parse(instructionTemplate),
)

// Config configures the context truncation policy.
type Config struct {
	MaxSections int
	MaxChars    int
}

// Builder assembles the model prompt from a query and retrieved context.
type Builder struct {
	maxSections int
	maxChars    int
	log         logger.Logger
}

func NewBuilder(cfg Config, log logger.Logger) *Builder {
	if cfg.MaxSections <= 0 {
		cfg.MaxSections = 3
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 3000
	}
	if log == nil {
		log = logger.Default()
	}
	return &Builder{maxSections: cfg.MaxSections, maxChars: cfg.MaxChars, log: log.With("component", "prompt")}
}

// Build returns the full instruction prompt. It never fails.
func (b *Builder) Build(query, context string) string {
	context = b.TrimContext(context)
	var sb strings.Builder
	// Writes to a strings.Builder cannot fail and the template only reads two strings.
	_ = instructions.Execute(&sb, struct{ Context, Query string }{Context: context, Query: query})
	out := sb.String()
	b.log.Debug("Prompt built",
		"chars", utf8.RuneCountInString(out),
		"estimated_tokens", estimateTokens(out),
		"context_preview", preview(context, 100),
	)
	return out
}

// TrimContext keeps the first whole sections of context and then enforces
// the character limit.
func (b *Builder) TrimContext(context string) string {
	if context == "" {
		return ""
	}
	sections := strings.Split(context, sectionSeparator)
	if len(sections) > b.maxSections {
		sections = sections[:b.maxSections]
		b.log.Debug("Context limited", "sections", b.maxSections)
	}
	context = strings.Join(sections, sectionSeparator)
	if utf8.RuneCountInString(context) > b.maxChars {
		context = string([]rune(context)[:b.maxChars]) + truncatedMarker
		b.log.Debug("Context truncated", "chars", b.maxChars)
	}
	return context
}

// estimateTokens approximates llama tokenizer output at 3.5 chars per token.
func estimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n*2 + 6) / 7
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
