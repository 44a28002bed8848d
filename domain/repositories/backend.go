package repositories

import "context"

// GenerationRequest carries one assembled prompt to the text backend.
type GenerationRequest struct {
	SystemPrompt string
	Prompt       string
	Temperature  float32
	MaxTokens    int
}

// Backend abstracts the generative text provider.
type Backend interface {
	// Generate blocks until the backend returns the full completion.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// GenerateStream invokes onToken for every incremental chunk and
	// returns the accumulated text.
	GenerateStream(ctx context.Context, req GenerationRequest, onToken func(token string)) (string, error)
	// AbortAllRequests cancels every in-flight request and returns how
	// many were cancelled. Safe to call when nothing is in flight.
	AbortAllRequests() int
}
