// Package genai implements ports.Oracle on the Google Gemini API.
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-2.0-flash"

// ErrEmptyResponse is returned when the model answers without text.
var ErrEmptyResponse = errors.New("empty oracle response")

// Config holds the client settings.
type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, for proxies and tests.
	BaseURL string
}

// Oracle answers extraction prompts with a single deterministic completion.
type Oracle struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// New creates an Oracle from cfg.
func New(ctx context.Context, cfg Config) (*Oracle, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return NewFromClient(client, cfg.Model), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *genai.Client, model string) *Oracle {
	if model == "" {
		model = DefaultModel
	}
	return &Oracle{
		client: client,
		model:  model,
		config: &genai.GenerateContentConfig{
			Temperature:     genai.Ptr[float32](0),
			CandidateCount:  1,
			MaxOutputTokens: 256,
		},
	}
}

// Complete sends prompt as a single user turn and returns the text answer.
func (o *Oracle) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Models.GenerateContent(ctx, o.model, genai.Text(prompt), o.config)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
