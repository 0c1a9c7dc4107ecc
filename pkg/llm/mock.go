package llm

import (
	"context"
	"errors"
	"sync"
)

// ErrScriptExhausted is returned by a scripted mock once every reply is used.
var ErrScriptExhausted = errors.New("mock llm: no scripted reply left")

// MockLLMClient is a deterministic LLMClient for tests. GenerateResponseFunc
// decides each reply; NewScriptedLLMClient fills it with fixed replies.
type MockLLMClient struct {
	// GenerateResponseFunc produces the reply. Nil returns an empty result.
	GenerateResponseFunc func(ctx context.Context, prompt string, systemMessage string, temperature float64) (*GenerateResponseResult, error)

	// Model and Endpoint default to "mock-model" and "http://mock-endpoint".
	Model    string
	Endpoint string

	mu      sync.Mutex
	prompts []string
}

// NewMockLLMClient creates a mock that returns empty replies.
func NewMockLLMClient() *MockLLMClient {
	return &MockLLMClient{
		Model:    "mock-model",
		Endpoint: "http://mock-endpoint",
	}
}

// NewScriptedLLMClient returns the replies in order, one per call, and
// ErrScriptExhausted afterwards. Each classification batch makes one call,
// so replies[i] answers batch i.
func NewScriptedLLMClient(replies ...string) *MockLLMClient {
	m := NewMockLLMClient()
	m.GenerateResponseFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (*GenerateResponseResult, error) {
		n := m.Calls()
		if n > len(replies) {
			return nil, ErrScriptExhausted
		}
		return &GenerateResponseResult{Content: replies[n-1]}, nil
	}
	return m
}

// GenerateResponse implements LLMClient.
func (m *MockLLMClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (*GenerateResponseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateResponseFunc != nil {
		return m.GenerateResponseFunc(ctx, prompt, systemMessage, temperature)
	}
	return &GenerateResponseResult{}, nil
}

// GetModel implements LLMClient.
func (m *MockLLMClient) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// GetEndpoint implements LLMClient.
func (m *MockLLMClient) GetEndpoint() string {
	if m.Endpoint == "" {
		return "http://mock-endpoint"
	}
	return m.Endpoint
}

// Calls returns the number of GenerateResponse invocations so far.
func (m *MockLLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns a copy of every prompt received, in call order.
func (m *MockLLMClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

var _ LLMClient = (*MockLLMClient)(nil)
