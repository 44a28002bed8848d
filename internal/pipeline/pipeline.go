// Package pipeline turns session context into one generated chat
// message: placeholder insertion, prompt assembly, backend invocation
// with bounded retry on invalid output, and id-keyed result commit.
package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Airegasm/SwellDreams-sub006/domain/entities"
	"github.com/Airegasm/SwellDreams-sub006/domain/repositories"
	"github.com/Airegasm/SwellDreams-sub006/internal/bus"
	"github.com/Airegasm/SwellDreams-sub006/internal/substitute"
)

// Kind selects whose voice a generated message speaks in.
type Kind string

const (
	// KindCharacter is a normal character reply.
	KindCharacter Kind = "character"
	// KindPlayer generates in the player's voice (impersonation).
	KindPlayer Kind = "player"
	// KindFlow is a flow-triggered scripted message; its raw instruction
	// doubles as the fallback when the backend fails.
	KindFlow Kind = "flow"
)

// Options configures one pipeline invocation.
type Options struct {
	Kind        Kind
	Instruction string
	Guidance    string
	Streaming   bool
	// ExcludeID hides one message from the conversation prompt, used by
	// swipe regeneration so the turn does not see itself.
	ExcludeID string
	// TargetID regenerates into an existing message instead of
	// appending a new placeholder (swipe).
	TargetID string
}

const (
	historyWindow = 20
	dupWindow     = 5
	maxRetries    = 2
	placeholder   = "…"
)

// Settings are the backend knobs carried on every request.
type Settings struct {
	Temperature float32
	MaxTokens   int
}

// Pipeline produces chat messages from the generation backend.
type Pipeline struct {
	backend   repositories.Backend
	publisher repositories.Publisher
	session   *entities.SessionState
	character *entities.Character
	settings  Settings
	logger    *zap.Logger

	historyWindow int
}

// New creates a generation pipeline.
func New(
	backend repositories.Backend,
	publisher repositories.Publisher,
	session *entities.SessionState,
	character *entities.Character,
	settings Settings,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		backend:       backend,
		publisher:     publisher,
		session:       session,
		character:     character,
		settings:      settings,
		logger:        logger,
		historyWindow: historyWindow,
	}
}

// Generate runs one full pipeline invocation. A nil message with nil
// error means no message was committed (invalid output hard stop).
func (p *Pipeline) Generate(ctx context.Context, opts Options) (*entities.ChatMessage, error) {
	sender := entities.SenderCharacter
	if opts.Kind == KindPlayer {
		sender = entities.SenderPlayer
	}

	// The placeholder goes out synchronously so observers see a typing
	// state before the backend is even contacted.
	var msg *entities.ChatMessage
	if opts.TargetID != "" {
		ok := p.session.UpdateMessage(opts.TargetID, func(m *entities.ChatMessage) {
			m.Content = placeholder
			m.Streaming = opts.Streaming
			m.Swiped = true
		})
		if !ok {
			return nil, nil
		}
		existing, _ := p.session.Message(opts.TargetID)
		msg = &existing
		opts.ExcludeID = opts.TargetID
		p.publisher.Publish(bus.EventMessageUpdated, existing)
	} else {
		msg = entities.NewChatMessage(sender, placeholder)
		msg.Streaming = opts.Streaming
		p.session.Append(msg)
		p.publisher.Publish(bus.EventChatMessage, *msg)
	}
	p.publisher.Publish(bus.EventGeneratingStart, map[string]any{"message_id": msg.ID})

	text, backendErr := p.attempt(ctx, opts, msg.ID)

	if backendErr != nil {
		p.logger.Error("Generation backend failed", zap.Error(backendErr))
		p.publisher.Publish(bus.EventGeneratingStop, map[string]any{
			"message_id": msg.ID,
			"reason":     "backend_error",
		})
		if opts.Kind == KindFlow && p.valid(opts.Instruction, msg.ID) {
			// Scripted messages fall back to their raw instruction text.
			return p.commit(msg.ID, opts.Instruction, opts.Streaming)
		}
		p.discard(msg.ID)
		p.publisher.Publish(bus.EventError, map[string]any{
			"message": "generation failed",
		})
		return nil, backendErr
	}

	if text == "" {
		// Exhausted retries on blank or duplicate output. Discard the
		// placeholder rather than show degraded content; the instruction
		// fallback is for backend failures only, never for output that
		// was produced and rejected.
		p.discard(msg.ID)
		p.publisher.Publish(bus.EventGeneratingStop, map[string]any{
			"message_id": msg.ID,
			"reason":     "invalid_output",
		})
		return nil, nil
	}

	committed, err := p.commit(msg.ID, text, opts.Streaming)
	p.publisher.Publish(bus.EventGeneratingStop, map[string]any{"message_id": msg.ID})
	return committed, err
}

// attempt issues the backend request with up to maxRetries re-issues on
// invalid output. Returns empty text when every attempt was invalid.
func (p *Pipeline) attempt(ctx context.Context, opts Options, messageID string) (string, error) {
	systemPrompt := p.buildSystemPrompt()
	prompt := p.buildConversationPrompt(opts, messageID)

	for try := 0; try <= maxRetries; try++ {
		req := repositories.GenerationRequest{
			SystemPrompt: systemPrompt,
			Prompt:       prompt,
			Temperature:  p.settings.Temperature,
			MaxTokens:    p.settings.MaxTokens,
		}
		if try > 0 {
			req.Prompt = prompt + "\n[" + uniquenessInstruction + "]"
			if opts.Streaming {
				// The rejected attempt's tokens are still in the
				// placeholder; clear them before the retry streams.
				p.resetPlaceholder(messageID)
			}
		}

		var text string
		var err error
		if opts.Streaming {
			text, err = p.backend.GenerateStream(ctx, req, func(token string) {
				p.applyToken(messageID, token)
			})
		} else {
			text, err = p.backend.Generate(ctx, req)
		}
		if err != nil {
			return "", err
		}

		text = strings.TrimSpace(text)
		if p.valid(text, messageID) {
			return text, nil
		}
		p.logger.Warn("Rejected generation attempt",
			zap.String("messageID", messageID),
			zap.Int("attempt", try+1))
	}
	return "", nil
}

// valid gates generated text: non-blank and not a near-duplicate of the
// recent log.
func (p *Pipeline) valid(text, messageID string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	return !p.session.IsRecentDuplicate(text, dupWindow, messageID)
}

// resetPlaceholder puts the placeholder text back after a rejected
// streamed attempt, so observers never see two attempts concatenated.
func (p *Pipeline) resetPlaceholder(messageID string) {
	ok := p.session.UpdateMessage(messageID, func(m *entities.ChatMessage) {
		m.Content = placeholder
	})
	if !ok {
		return
	}
	updated, _ := p.session.Message(messageID)
	p.publisher.Publish(bus.EventMessageUpdated, updated)
}

// applyToken appends one streamed token to the placeholder. Keyed by
// message id; if the turn was deleted mid-stream the token is dropped.
func (p *Pipeline) applyToken(messageID, token string) {
	ok := p.session.UpdateMessage(messageID, func(m *entities.ChatMessage) {
		if m.Content == placeholder {
			m.Content = ""
		}
		m.Content += token
	})
	if !ok {
		return
	}
	p.publisher.Publish(bus.EventStreamToken, map[string]any{
		"message_id": messageID,
		"token":      token,
	})
}

// commit substitutes and writes the final text into the placeholder.
// The lookup is by the id captured at request time: a late result whose
// turn was deleted or superseded is discarded, never applied to "the
// last message".
func (p *Pipeline) commit(messageID, text string, streaming bool) (*entities.ChatMessage, error) {
	final := substitute.Apply(text, p.session, nil)

	ok := p.session.UpdateMessage(messageID, func(m *entities.ChatMessage) {
		m.Content = final
		m.Generated = true
		m.Streaming = false
	})
	if !ok {
		p.logger.Info("Discarded generation result for vanished message",
			zap.String("messageID", messageID))
		return nil, nil
	}

	committed, _ := p.session.Message(messageID)
	p.publisher.Publish(bus.EventMessageUpdated, committed)
	if streaming {
		p.publisher.Publish(bus.EventStreamComplete, map[string]any{"message_id": messageID})
	}
	return &committed, nil
}

// discard removes the placeholder and tells observers it is gone.
func (p *Pipeline) discard(messageID string) {
	if p.session.DeleteMessage(messageID) {
		p.publisher.Publish(bus.EventMessageDeleted, map[string]any{"message_id": messageID})
	}
}
