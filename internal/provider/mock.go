package provider

import (
	"context"
	"sync"
)

type mockReply struct {
	content string
	err     error
}

// MockProvider is a scripted Protocol for tests. Replies are consumed in
// order; once the script runs out every call fails with ErrNoScriptedResponse.
type MockProvider struct {
	mu       sync.Mutex
	script   []mockReply
	requests []ChatCompletionRequest
}

// NewMockProvider returns a mock that answers with the given contents in order.
func NewMockProvider(replies ...string) *MockProvider {
	m := &MockProvider{}
	for _, r := range replies {
		m.Enqueue(r)
	}
	return m
}

// Enqueue appends a successful reply.
func (m *MockProvider) Enqueue(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, mockReply{content: content})
}

// EnqueueError appends a failing reply.
func (m *MockProvider) EnqueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, mockReply{err: err})
}

// CreateChatCompletion implements Protocol.
func (m *MockProvider) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, *req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(m.script) == 0 {
		return nil, ErrNoScriptedResponse
	}
	next := m.script[0]
	m.script = m.script[1:]
	if next.err != nil {
		return nil, next.err
	}

	resp := &ChatCompletionResponse{ID: "mock", Object: "chat.completion", Model: req.Model}
	resp.Choices = append(resp.Choices, struct {
		Index   int         `json:"index"`
		Message ChatMessage `json:"message"`
		Finish  string      `json:"finish_reason"`
	}{Message: ChatMessage{Role: "assistant", Content: next.content}, Finish: "stop"})
	resp.Usage.TotalTokens = len(next.content) / 4
	return resp, nil
}

// Calls returns how many requests reached the mock.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns copies of every request received, in order.
func (m *MockProvider) Requests() []ChatCompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatCompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent request, if any.
func (m *MockProvider) LastRequest() (ChatCompletionRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return ChatCompletionRequest{}, false
	}
	return m.requests[len(m.requests)-1], true
}
