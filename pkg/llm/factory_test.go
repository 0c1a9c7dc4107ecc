package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-spend/pkg/config"
)

func TestNewClientFromConfig_OpenAI(t *testing.T) {
	client, err := NewClientFromConfig(config.LLMConfig{
		Provider: "openai",
		BaseURL:  "http://localhost:8000/v1/",
		Model:    "qwen2.5-7b-instruct",
		JSONMode: true,
	}, zap.NewNop())
	require.NoError(t, err)

	openaiClient, ok := client.(*Client)
	require.True(t, ok)
	assert.True(t, openaiClient.jsonMode)
	assert.Equal(t, "qwen2.5-7b-instruct", client.GetModel())
}

func TestNewClientFromConfig_AnthropicIgnoresOpenAIDefaultURL(t *testing.T) {
	client, err := NewClientFromConfig(config.LLMConfig{
		Provider: "anthropic",
		BaseURL:  DefaultOpenAIBaseURL,
		Model:    "claude-3-5-haiku-latest",
		APIKey:   "sk-ant-test",
	}, zap.NewNop())
	require.NoError(t, err)

	_, ok := client.(*AnthropicClient)
	assert.True(t, ok)
	assert.Equal(t, "https://api.anthropic.com", client.GetEndpoint())
}

func TestNewClientFromConfig_Errors(t *testing.T) {
	_, err := NewClientFromConfig(config.LLMConfig{Provider: "anthropic", Model: "m"}, zap.NewNop())
	assert.ErrorContains(t, err, "api key is required")

	_, err = NewClientFromConfig(config.LLMConfig{Provider: "openai", BaseURL: "", Model: "m"}, zap.NewNop())
	assert.ErrorContains(t, err, "endpoint is required")

	_, err = NewClientFromConfig(config.LLMConfig{Provider: "bard", Model: "m"}, zap.NewNop())
	assert.ErrorContains(t, err, "unknown llm provider")
}
