package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// chatServer answers /chat/completions with content and finishReason and
// records the decoded request body.
func chatServer(t *testing.T, content, finishReason string, got *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":    "cmpl-1",
			"model": "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": finishReason,
			}},
			"usage": map[string]any{"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_GenerateResponse(t *testing.T) {
	var body map[string]any
	srv := chatServer(t, `{"assignments": []}`, "stop", &body)

	client, err := NewClient(&Config{Endpoint: srv.URL + "/v1/", Model: "test-model", JSONMode: true}, zap.NewNop())
	require.NoError(t, err)

	result, err := client.GenerateResponse(context.Background(), "classify", "system", 0.1)
	require.NoError(t, err)

	assert.Equal(t, `{"assignments": []}`, result.Content)
	assert.Equal(t, 120, result.PromptTokens)
	assert.Equal(t, 30, result.CompletionTokens)
	assert.False(t, result.Truncated)

	assert.Equal(t, "test-model", body["model"])
	format, ok := body["response_format"].(map[string]any)
	require.True(t, ok, "json mode should set response_format")
	assert.Equal(t, "json_object", format["type"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestClient_GenerateResponse_TruncatedLogsWarning(t *testing.T) {
	var body map[string]any
	srv := chatServer(t, `{"assignments": [`, "length", &body)

	core, logs := observer.New(zapcore.InfoLevel)
	client, err := NewClient(&Config{Endpoint: srv.URL + "/v1", Model: "test-model"}, zap.New(core))
	require.NoError(t, err)

	result, err := client.GenerateResponse(context.Background(), "classify", "system", 0)
	require.NoError(t, err)

	assert.True(t, result.Truncated)
	_, hasFormat := body["response_format"]
	assert.False(t, hasFormat, "response_format is only sent in json mode")
	assert.Equal(t, 1, logs.FilterMessage("LLM reply truncated at the token limit").Len())
}

func TestClient_GenerateResponse_ClassifiesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit"}}`))
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(&Config{Endpoint: srv.URL + "/v1", Model: "test-model"}, zap.NewNop())
	require.NoError(t, err)

	_, err = client.GenerateResponse(context.Background(), "classify", "system", 0)
	require.Error(t, err)

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrorTypeRateLimited, llmErr.Type)
	assert.True(t, llmErr.Retryable)
	assert.Equal(t, "test-model", llmErr.Model)
}
