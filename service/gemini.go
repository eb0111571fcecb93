package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AnTengye/tenderanalyzer/config"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiCompleter calls Google's Gemini models
type GeminiCompleter struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiCompleter(ctx context.Context, cfg *config.AIConfig) (*GeminiCompleter, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(cfg.Temperature)
	model.SetMaxOutputTokens(int32(cfg.MaxTokens))

	return &GeminiCompleter{client: client, model: model}, nil
}

// Complete returns the text parts of the first candidate
func (c *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", errors.New("gemini returned no text")
	}

	return strings.TrimSpace(sb.String()), nil
}

// Close releases the underlying client
func (c *GeminiCompleter) Close() error {
	return c.client.Close()
}
