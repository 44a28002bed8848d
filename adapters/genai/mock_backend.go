package genai

import (
	"context"
	"sync"

	"github.com/Airegasm/SwellDreams-sub006/domain/repositories"
)

// MockBackend is a scripted stand-in for the Gemini backend, used when
// no API key is configured and throughout the tests.
type MockBackend struct {
	mu        sync.Mutex
	responses []string
	next      int
	Requests  []repositories.GenerationRequest
	Err       error
	aborted   int
}

// NewMockBackend creates a mock that cycles through the given responses.
func NewMockBackend(responses ...string) *MockBackend {
	if len(responses) == 0 {
		responses = []string{"The character smiles and waits patiently."}
	}
	return &MockBackend{responses: responses}
}

// Generate implements repositories.Backend.
func (m *MockBackend) Generate(ctx context.Context, req repositories.GenerationRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return "", m.Err
	}
	text := m.responses[m.next%len(m.responses)]
	m.next++
	return text, nil
}

// GenerateStream implements repositories.Backend, emitting the scripted
// response as a single token.
func (m *MockBackend) GenerateStream(ctx context.Context, req repositories.GenerationRequest, onToken func(token string)) (string, error) {
	text, err := m.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if onToken != nil {
		onToken(text)
	}
	return text, nil
}

// AbortAllRequests implements repositories.Backend.
func (m *MockBackend) AbortAllRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aborted++
	return 0
}

// AbortCalls reports how many times AbortAllRequests ran.
func (m *MockBackend) AbortCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aborted
}
