package services

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"gtm-agent-api/pkg/logger"
	"gtm-agent-api/pkg/models"
)

// ContentRequest is the structured input for one generated artifact.
type ContentRequest struct {
	Type        models.ArtifactType
	CompanyName string
	Description string
	Features    []string
	ICP         string
	Level       int
	Gaps        []string
}

// ContentGenerator produces the body of a content artifact.
type ContentGenerator interface {
	Generate(ctx context.Context, req ContentRequest) (string, error)
}

// LLMClient is the completion call shared by the Anthropic and Azure clients.
type LLMClient interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error)
}

// LLMContentGenerator renders a per-type prompt template and sends it to an LLM.
type LLMContentGenerator struct {
	client    LLMClient
	system    string
	templates map[models.ArtifactType]*template.Template
	maxTokens int
	log       *logger.Logger
}

var templateFuncs = template.FuncMap{
	"joinOr": func(items []string, fallback string) string {
		if len(items) == 0 {
			return fallback
		}
		return strings.Join(items, ", ")
	},
}

// NewLLMContentGenerator parses prompts keyed by artifact type name.
func NewLLMContentGenerator(client LLMClient, system string, prompts map[string]string, maxTokens int, log *logger.Logger) (*LLMContentGenerator, error) {
	templates := make(map[models.ArtifactType]*template.Template, len(prompts))
	for name, text := range prompts {
		t := models.ArtifactType(name)
		if !t.Valid() {
			return nil, fmt.Errorf("%w: prompt for %q", ErrInvalidType, name)
		}
		tmpl, err := template.New(name).Funcs(templateFuncs).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse %s prompt: %w", name, err)
		}
		templates[t] = tmpl
	}
	return &LLMContentGenerator{
		client:    client,
		system:    system,
		templates: templates,
		maxTokens: maxTokens,
		log:       log.With("service", "content_generator"),
	}, nil
}

// Prompt renders the prompt for req without calling the LLM.
func (g *LLMContentGenerator) Prompt(req ContentRequest) (string, error) {
	tmpl, ok := g.templates[req.Type]
	if !ok {
		return "", fmt.Errorf("no prompt template for %s", req.Type)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, req); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", req.Type, err)
	}
	return sb.String(), nil
}

func (g *LLMContentGenerator) Generate(ctx context.Context, req ContentRequest) (string, error) {
	prompt, err := g.Prompt(req)
	if err != nil {
		return "", err
	}
	text, err := g.client.Complete(ctx, g.system, prompt, g.maxTokens)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty %s generation", req.Type)
	}
	g.log.Debug("content generated", "type", req.Type, "chars", len(text))
	return text, nil
}
