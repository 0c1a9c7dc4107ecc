package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-spend/pkg/logging"
)

// Client talks to OpenAI-compatible chat completion endpoints (OpenAI, vLLM, Ollama).
type Client struct {
	client    *openai.Client
	endpoint  string
	model     string
	maxTokens int
	jsonMode  bool
	logger    *zap.Logger
}

// Config holds configuration for creating an LLM client.
type Config struct {
	Endpoint  string // Base URL, e.g. "https://api.openai.com/v1"
	Model     string
	APIKey    string // Optional for local endpoints
	MaxTokens int    // Completion budget; 0 leaves it to the provider
	// JSONMode requests a JSON-object reply where the endpoint supports it.
	JSONMode bool
}

// NewClient creates an OpenAI-compatible client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")

	return &Client{
		client:    openai.NewClientWithConfig(clientConfig),
		endpoint:  cfg.Endpoint,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		jsonMode:  cfg.JSONMode,
		logger:    logger.Named("llm"),
	}, nil
}

// GenerateResponse sends one system and one user message and returns the
// first choice.
func (c *Client) GenerateResponse(
	ctx context.Context,
	prompt string,
	systemMessage string,
	temperature float64,
) (*GenerateResponseResult, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemMessage},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(temperature),
		MaxTokens:   c.maxTokens,
	}
	if c.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	logRequest(c.logger, c.model, prompt, temperature)
	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, c.classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewErrorWithContext(ErrorTypeResponse, "no choices in response", true, nil, c.model, c.endpoint, 0)
	}

	result := &GenerateResponseResult{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		Truncated:        resp.Choices[0].FinishReason == openai.FinishReasonLength,
		Elapsed:          time.Since(start),
	}
	logCompletion(c.logger, result)
	return result, nil
}

// GetModel returns the configured model name.
func (c *Client) GetModel() string {
	return c.model
}

// GetEndpoint returns the configured endpoint.
func (c *Client) GetEndpoint() string {
	return c.endpoint
}

func (c *Client) classify(err error) error {
	llmErr := ClassifyError(err)
	if llmErr.Model == "" {
		llmErr.Model = c.model
	}
	if llmErr.Endpoint == "" {
		llmErr.Endpoint = c.endpoint
	}
	return llmErr
}

func logRequest(logger *zap.Logger, model, prompt string, temperature float64) {
	logger.Debug("LLM request",
		zap.String("model", model),
		zap.Int("prompt_len", len(prompt)),
		zap.Float64("temperature", temperature))
}

// logCompletion logs usage. A truncated reply usually means the batch is too
// large for the completion budget.
func logCompletion(logger *zap.Logger, r *GenerateResponseResult) {
	fields := []zap.Field{
		zap.Int("prompt_tokens", r.PromptTokens),
		zap.Int("completion_tokens", r.CompletionTokens),
		zap.Duration("elapsed", r.Elapsed),
	}
	if r.Truncated {
		logger.Warn("LLM reply truncated at the token limit", fields...)
		return
	}
	logger.Info("LLM request completed", fields...)
}
