package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AnTengye/tenderanalyzer/config"
	"github.com/sashabaranov/go-openai"
)

// OpenAICompleter calls the chat completions endpoint
type OpenAICompleter struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

func NewOpenAICompleter(cfg *config.AIConfig) *OpenAICompleter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &OpenAICompleter{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Complete sends the prompt as a single user message
func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
