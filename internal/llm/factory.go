package llm

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/agenthands/depo/internal/config"
)

func NewClient(ctx context.Context, cfg config.LLMConfig) (Oracle, error) {
	provider := strings.ToLower(cfg.Provider)

	var oracle Oracle
	switch provider {
	case "openai":
		oracle = NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.MaxTokens)

	case "gemini":
		c, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		oracle = c

	case "claude":
		oracle = NewClaudeClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.MaxTokens)

	case "ollama":
		// Ollama serves an OpenAI-compatible API under /v1
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL = fmt.Sprintf("%s/v1", strings.TrimRight(baseURL, "/"))
		}

		log.Printf("Initializing Ollama via OpenAI-compatible API at %s", baseURL)

		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "ollama" // ignored by Ollama
		}

		oracle = NewOpenAIClient(apiKey, cfg.Model, baseURL, cfg.MaxTokens)

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}

	if cfg.RequestsPerMinute > 0 {
		oracle = NewRateLimited(oracle, cfg.RequestsPerMinute)
	}
	if d := cfg.CallTimeout(); d > 0 {
		oracle = WithTimeout(oracle, d)
	}
	return oracle, nil
}
