package service

import (
	"context"
	"fmt"

	"github.com/AnTengye/tenderanalyzer/config"
)

// NewCompleter builds the backend selected by ai.provider
func NewCompleter(ctx context.Context, cfg *config.AIConfig) (Completer, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAICompleter(cfg), nil
	case config.ProviderGemini:
		c, err := NewGeminiCompleter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}
