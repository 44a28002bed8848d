// Package genai adapts Google's Gemini API to the generation backend
// port, with blocking and streaming modes and process-wide abort.
package genai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/Airegasm/SwellDreams-sub006/domain/repositories"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultTimeoutSeconds = 60
)

// Config holds the Gemini connection settings.
type Config struct {
	APIKey         string
	Model          string
	TimeoutSeconds int
}

// Gemini implements repositories.Backend using the Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	nextID   uint64
	inflight map[uint64]context.CancelFunc
}

// NewGemini creates a Gemini backend.
func NewGemini(ctx context.Context, config Config, logger *zap.Logger) (*Gemini, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = defaultTimeoutSeconds
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gemini{
		client:   client,
		model:    config.Model,
		timeout:  time.Duration(config.TimeoutSeconds) * time.Second,
		logger:   logger,
		inflight: make(map[uint64]context.CancelFunc),
	}, nil
}

// Generate blocks until the full completion is available.
func (g *Gemini) Generate(ctx context.Context, req repositories.GenerationRequest) (string, error) {
	ctx, done := g.track(ctx)
	defer done()

	response, err := g.client.Models.GenerateContent(ctx, g.model, contents(req), generationConfig(req))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := responseText(response)
	if text == "" {
		g.logger.Warn("Gemini returned no content")
	}
	return text, nil
}

// GenerateStream delivers the completion incrementally through onToken
// and returns the accumulated text.
func (g *Gemini) GenerateStream(ctx context.Context, req repositories.GenerationRequest, onToken func(token string)) (string, error) {
	ctx, done := g.track(ctx)
	defer done()

	var full string
	for chunk, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents(req), generationConfig(req)) {
		if err != nil {
			return "", fmt.Errorf("gemini stream: %w", err)
		}
		token := responseText(chunk)
		if token == "" {
			continue
		}
		full += token
		if onToken != nil {
			onToken(token)
		}
	}
	return full, nil
}

// AbortAllRequests cancels every in-flight request. Safe when nothing
// is in flight.
func (g *Gemini) AbortAllRequests() int {
	g.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(g.inflight))
	for id, cancel := range g.inflight {
		cancels = append(cancels, cancel)
		delete(g.inflight, id)
	}
	g.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if len(cancels) > 0 {
		g.logger.Info("Aborted in-flight Gemini requests", zap.Int("count", len(cancels)))
	}
	return len(cancels)
}

// track registers a cancellable, timeout-bounded request context.
func (g *Gemini) track(ctx context.Context) (context.Context, func()) {
	ctx, cancelTimeout := context.WithTimeout(ctx, g.timeout)
	ctx, cancel := context.WithCancel(ctx)

	g.mu.Lock()
	g.nextID++
	id := g.nextID
	g.inflight[id] = cancel
	g.mu.Unlock()

	return ctx, func() {
		g.mu.Lock()
		delete(g.inflight, id)
		g.mu.Unlock()
		cancel()
		cancelTimeout()
	}
}

func contents(req repositories.GenerationRequest) []*genai.Content {
	var out []*genai.Content
	if req.SystemPrompt != "" {
		out = append(out, genai.NewContentFromText(req.SystemPrompt, genai.RoleUser))
	}
	out = append(out, genai.NewContentFromText(req.Prompt, genai.RoleUser))
	return out
}

func generationConfig(req repositories.GenerationRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr(req.Temperature)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	return config
}

func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}
	var text string
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}
	return text
}
