package summarize

import (
	"context"
	"errors"
	"fmt"

	genai "google.golang.org/genai"

	"github.com/swen/dms/pkg/config"
	"github.com/swen/dms/pkg/resilience"
)

// FallbackSummary is stored whenever the summarizer fails. The pipeline
// never leaves summary_text empty because of an API error.
const FallbackSummary = "[Summary unavailable due to API error]"

// Summarizer produces a natural-language summary of extracted text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Gemini summarizes text with a generative model. Calls run through a
// circuit breaker so a failing API is skipped quickly instead of timing out
// on every document.
type Gemini struct {
	client  *genai.Client
	model   string
	breaker *resilience.CircuitBreaker
}

// NewGemini creates a Gemini summarizer from the shared GenAI config.
func NewGemini(ctx context.Context, cfg config.GenAIConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing genai api key")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Gemini{
		client:  client,
		model:   model,
		breaker: resilience.NewCircuitBreaker("summarizer", resilience.CircuitBreakerConfig{}),
	}, nil
}

// Summarize asks the model for a German summary of the document text.
func (g *Gemini) Summarize(ctx context.Context, text string) (string, error) {
	prompt := "Summarize the following document in German:\n\n" + text
	var summary string
	err := g.breaker.Execute(func() error {
		res, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{
			genai.NewContentFromText(prompt, genai.RoleUser),
		}, nil)
		if err != nil {
			return err
		}
		summary = res.Text()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("summarize request: %w", err)
	}
	return summary, nil
}
