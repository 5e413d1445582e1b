package ocr

import (
	"context"
	"errors"
	"fmt"

	genai "google.golang.org/genai"

	"github.com/swen/dms/pkg/config"
)

const recognizePrompt = "Transcribe every piece of text on this document page. " +
	"Return only the text in reading order, with no commentary or formatting markers."

// Gemini recognizes page text with a multimodal generative model. It
// consumes the page PDF directly, so rasterization hints are ignored.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini OCR engine from the shared GenAI config.
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
	return &Gemini{client: client, model: model}, nil
}

// RecognizePage sends the single-page PDF to the model and returns the
// transcribed text.
func (g *Gemini) RecognizePage(ctx context.Context, page []byte, _ Options) (string, error) {
	content := &genai.Content{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: recognizePrompt},
			{InlineData: &genai.Blob{MIMEType: "application/pdf", Data: page}},
		},
	}
	res, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{content}, nil)
	if err != nil {
		return "", fmt.Errorf("recognizing page: %w", err)
	}
	return res.Text(), nil
}
