// Package assistant implements the chat turn pipeline: validate the
// request, gather recent history, call the model, and record both
// sides of the exchange in the session store.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Sidharth6Shah/cf-ai-personal-assistant/internal/llm/provider"
	"github.com/Sidharth6Shah/cf-ai-personal-assistant/pkg/observability"
	"github.com/Sidharth6Shah/cf-ai-personal-assistant/pkg/session"
)

// SystemPrompt is the fixed behavior instruction prepended to every
// inference call. It is never stored in session history.
const SystemPrompt = "You are a helpful personal assistant with memory. " +
	"You remember past conversations with the user and can reference them. " +
	"Be concise, friendly, and helpful. " +
	"When appropriate, reference previous conversations to show continuity."

// FallbackResponse is returned when the model produces empty content.
const FallbackResponse = "I apologize, but I could not generate a response."

// Store is the slice of the session store the assistant needs.
// *session.Store satisfies it.
type Store interface {
	Append(ctx context.Context, sessionID string, msg session.Message) error
	Read(ctx context.Context, sessionID string, limit int) ([]session.Message, error)
	Clear(ctx context.Context, sessionID string) error
}

// Config tunes the turn pipeline.
type Config struct {
	// Model overrides the provider's default model when non-empty.
	Model string

	// MaxTokens caps the model's output length. Zero means provider
	// default.
	MaxTokens int

	// Temperature controls sampling randomness.
	Temperature float64

	// InferenceTimeout bounds the model call. Zero disables the
	// pipeline's own deadline; the caller's context still applies.
	InferenceTimeout time.Duration

	// RecentWindow is how many stored messages feed each inference
	// call. Zero means session.RecentWindow.
	RecentWindow int
}

// Assistant orchestrates chat turns against a session store and an
// LLM provider.
type Assistant struct {
	store    Store
	provider provider.Provider
	cfg      Config
}

// New creates an assistant over the given store and provider.
func New(store Store, p provider.Provider, cfg Config) *Assistant {
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = session.RecentWindow
	}
	return &Assistant{
		store:    store,
		provider: p,
		cfg:      cfg,
	}
}

// HandleTurn runs one chat turn and returns the assistant's reply.
//
// The stages run strictly in order: validate, read recent history,
// persist the user turn, infer, persist the reply. History is read
// before the user turn is appended, so the new message appears only
// once in the prompt. No store lock is held during inference; a
// concurrent turn for the same session may interleave between stores.
//
// If inference fails after the user turn was persisted, the turn
// stays in history unanswered and the error wraps ErrInference.
func (a *Assistant) HandleTurn(ctx context.Context, sessionID, userMessage string) (string, error) {
	start := time.Now()

	userMessage = strings.TrimSpace(userMessage)
	sessionID = strings.TrimSpace(sessionID)
	if userMessage == "" {
		observability.RecordTurn("invalid", time.Since(start))
		return "", fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	if sessionID == "" {
		observability.RecordTurn("invalid", time.Since(start))
		return "", fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}

	ctx, span := observability.StartSpan(ctx, "assistant.turn", map[string]any{
		"session.id": sessionID,
	})
	defer span.End()

	history, err := a.readHistory(ctx, sessionID, a.cfg.RecentWindow)
	if err != nil {
		span.RecordError(err)
		observability.RecordTurn("store_error", time.Since(start))
		return "", fmt.Errorf("%w: read history: %v", ErrStoreUnavailable, err)
	}

	messages := make([]provider.Message, 0, len(history)+2)
	messages = append(messages, provider.Message{Role: "system", Content: SystemPrompt})
	for _, m := range history {
		messages = append(messages, provider.Message{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, provider.Message{Role: "user", Content: userMessage})

	if err := a.append(ctx, sessionID, session.NewMessage(session.RoleUser, userMessage)); err != nil {
		span.RecordError(err)
		observability.RecordTurn("store_error", time.Since(start))
		return "", fmt.Errorf("%w: store user message: %v", ErrStoreUnavailable, err)
	}

	reply, err := a.infer(ctx, messages)
	if err != nil {
		span.RecordError(err)
		observability.RecordTurn("inference_error", time.Since(start))
		return "", fmt.Errorf("%w: %v", ErrInference, err)
	}
	if reply == "" {
		reply = FallbackResponse
	}

	if err := a.append(ctx, sessionID, session.NewMessage(session.RoleAssistant, reply)); err != nil {
		span.RecordError(err)
		observability.RecordTurn("store_error", time.Since(start))
		return "", fmt.Errorf("%w: store assistant message: %v", ErrStoreUnavailable, err)
	}

	observability.RecordTurn("ok", time.Since(start))
	return reply, nil
}

// readHistory and append wrap store calls with operation metrics.
func (a *Assistant) readHistory(ctx context.Context, sessionID string, limit int) ([]session.Message, error) {
	history, err := a.store.Read(ctx, sessionID, limit)
	observability.RecordStoreOperation("read", opStatus(err))
	return history, err
}

func (a *Assistant) append(ctx context.Context, sessionID string, msg session.Message) error {
	err := a.store.Append(ctx, sessionID, msg)
	observability.RecordStoreOperation("append", opStatus(err))
	return err
}

func opStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (a *Assistant) infer(ctx context.Context, messages []provider.Message) (string, error) {
	if a.cfg.InferenceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.InferenceTimeout)
		defer cancel()
	}

	ctx, span := observability.StartSpan(ctx, "assistant.inference", map[string]any{
		"provider": a.provider.Name(),
	})
	defer span.End()

	start := time.Now()
	resp, err := a.provider.CreateCompletion(ctx, provider.CompletionRequest{
		Messages:    messages,
		Model:       a.cfg.Model,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	})
	observability.RecordInference(a.provider.Name(), time.Since(start))
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// History returns up to limit recent messages for transcript display.
// A limit <= 0 or above the retention cap returns the full retained
// history.
func (a *Assistant) History(ctx context.Context, sessionID string, limit int) ([]session.Message, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	if limit <= 0 || limit > session.MaxRetained {
		limit = session.HistoryWindow
	}

	history, err := a.readHistory(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: read history: %v", ErrStoreUnavailable, err)
	}
	return history, nil
}

// Clear empties the session's history. The session stays addressable.
func (a *Assistant) Clear(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	err := a.store.Clear(ctx, sessionID)
	observability.RecordStoreOperation("clear", opStatus(err))
	if err != nil {
		return fmt.Errorf("%w: clear history: %v", ErrStoreUnavailable, err)
	}
	return nil
}
