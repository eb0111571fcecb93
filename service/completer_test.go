package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AnTengye/tenderanalyzer/config"
)

func TestOpenAICompleter(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Unexpected authorization header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4.1-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "  Findings: fine.  "}, "finish_reason": "stop"}]
		}`))
	}))
	defer server.Close()

	c := NewOpenAICompleter(&config.AIConfig{
		APIKey:      "test-key",
		BaseURL:     server.URL + "/v1/",
		Model:       "gpt-4.1-mini",
		Temperature: 0.3,
		MaxTokens:   600,
	})

	text, err := c.Complete(context.Background(), "Review this clause")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != "Findings: fine." {
		t.Errorf("Expected trimmed completion, got %q", text)
	}

	if gotBody["model"] != "gpt-4.1-mini" {
		t.Errorf("Expected model in request, got %v", gotBody["model"])
	}
	messages, _ := gotBody["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("Expected one message, got %v", gotBody["messages"])
	}
	msg := messages[0].(map[string]any)
	if msg["role"] != "user" || msg["content"] != "Review this clause" {
		t.Errorf("Unexpected message %v", msg)
	}
}

func TestOpenAICompleterErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"no choices", http.StatusOK, `{"id":"x","object":"chat.completion","choices":[]}`, "no choices"},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`, "openai chat completion"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewOpenAICompleter(&config.AIConfig{APIKey: "k", BaseURL: server.URL, Model: "m"})
			_, err := c.Complete(context.Background(), "p")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewCompleter(t *testing.T) {
	t.Run("openai", func(t *testing.T) {
		c, err := NewCompleter(context.Background(), &config.AIConfig{Provider: config.ProviderOpenAI, APIKey: "k"})
		if err != nil {
			t.Fatalf("NewCompleter: %v", err)
		}
		if _, ok := c.(*OpenAICompleter); !ok {
			t.Errorf("Expected *OpenAICompleter, got %T", c)
		}
	})

	t.Run("gemini", func(t *testing.T) {
		c, err := NewCompleter(context.Background(), &config.AIConfig{Provider: config.ProviderGemini, APIKey: "k", Model: "gemini-1.5-flash"})
		if err != nil {
			t.Fatalf("NewCompleter: %v", err)
		}
		g, ok := c.(*GeminiCompleter)
		if !ok {
			t.Fatalf("Expected *GeminiCompleter, got %T", c)
		}
		if err := g.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		c, err := NewCompleter(context.Background(), &config.AIConfig{Provider: "llama"})
		if err == nil {
			t.Error("Expected error for unknown provider")
		}
		if c != nil {
			t.Errorf("Expected nil completer, got %T", c)
		}
	})
}
