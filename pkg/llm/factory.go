package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-spend/pkg/config"
)

// DefaultOpenAIBaseURL is the config default; it is ignored for the anthropic provider.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// NewClientFromConfig creates the LLM client selected by cfg.Provider.
// Returns LLMClient so callers can substitute a MockLLMClient in tests.
func NewClientFromConfig(cfg config.LLMConfig, logger *zap.Logger) (LLMClient, error) {
	clientCfg := &Config{
		Endpoint:  strings.TrimSpace(cfg.BaseURL),
		Model:     cfg.Model,
		APIKey:    cfg.APIKey,
		MaxTokens: cfg.MaxTokens,
		JSONMode:  cfg.JSONMode,
	}

	switch cfg.Provider {
	case "", "openai":
		client, err := NewClient(clientCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		return client, nil
	case "anthropic":
		if strings.TrimSuffix(clientCfg.Endpoint, "/") == DefaultOpenAIBaseURL {
			clientCfg.Endpoint = ""
		}
		client, err := NewAnthropicClient(clientCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create anthropic client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
