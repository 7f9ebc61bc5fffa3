package assistant

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sidharth6Shah/cf-ai-personal-assistant/internal/llm/provider"
	"github.com/Sidharth6Shah/cf-ai-personal-assistant/pkg/session"
)

func newTestAssistant(t *testing.T, p provider.Provider) (*Assistant, *session.Store) {
	t.Helper()

	backend, err := session.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	store := session.NewStore(backend)
	t.Cleanup(func() { _ = store.Close() })

	return New(store, p, Config{InferenceTimeout: 5 * time.Second}), store
}

func TestHandleTurnFreshSession(t *testing.T) {
	mock := provider.NewMockProvider("hi, nice to meet you")
	a, store := newTestAssistant(t, mock)
	ctx := context.Background()

	reply, err := a.HandleTurn(ctx, "s1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi, nice to meet you", reply)

	// A fresh session composes exactly system + user.
	req := mock.LastRequest()
	require.NotNil(t, req)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, SystemPrompt, req.Messages[0].Content)
	assert.Equal(t, "user", req.Messages[1].Role)
	assert.Equal(t, "hello", req.Messages[1].Content)

	// Both sides of the turn are persisted in order.
	history, err := store.Read(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, session.RoleUser, history[0].Role)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, session.RoleAssistant, history[1].Role)
	assert.Equal(t, "hi, nice to meet you", history[1].Content)
}

func TestHandleTurnComposesHistoryWindow(t *testing.T) {
	mock := provider.NewMockProvider("ok")
	a, store := newTestAssistant(t, mock)
	ctx := context.Background()

	// Seed more history than the inference window holds.
	for i := 1; i <= 15; i++ {
		require.NoError(t, store.Append(ctx, "s1", session.NewMessage(session.RoleUser, fmt.Sprintf("old %d", i))))
	}

	_, err := a.HandleTurn(ctx, "s1", "latest question")
	require.NoError(t, err)

	req := mock.LastRequest()
	require.NotNil(t, req)
	// system + RecentWindow history + new user message.
	require.Len(t, req.Messages, 1+session.RecentWindow+1)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "old 6", req.Messages[1].Content)
	assert.Equal(t, "old 15", req.Messages[session.RecentWindow].Content)
	assert.Equal(t, "latest question", req.Messages[len(req.Messages)-1].Content)
}

func TestHandleTurnHistoryReadBeforeAppend(t *testing.T) {
	mock := provider.NewMockProvider("ok")
	a, _ := newTestAssistant(t, mock)
	ctx := context.Background()

	_, err := a.HandleTurn(ctx, "s1", "first")
	require.NoError(t, err)
	_, err = a.HandleTurn(ctx, "s1", "second")
	require.NoError(t, err)

	// The second prompt must contain "second" exactly once: in the
	// final user slot, not duplicated from history.
	req := mock.LastRequest()
	require.NotNil(t, req)
	count := 0
	for _, m := range req.Messages {
		if m.Content == "second" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestHandleTurnValidation(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
		message   string
	}{
		{"empty message", "s1", ""},
		{"whitespace message", "s1", "   \n\t "},
		{"empty session id", "", "hello"},
		{"whitespace session id", "  ", "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// A failing store proves validation happens before any
			// store access.
			a := New(failingStore{}, provider.NewMockProvider("ok"), Config{})
			_, err := a.HandleTurn(context.Background(), tt.sessionID, tt.message)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestHandleTurnInferenceFailureKeepsUserTurn(t *testing.T) {
	mock := &provider.MockProvider{Err: errors.New("model exploded")}
	a, store := newTestAssistant(t, mock)
	ctx := context.Background()

	_, err := a.HandleTurn(ctx, "s1", "hello")
	require.ErrorIs(t, err, ErrInference)

	// The user turn is already durable; it stays in history
	// unanswered.
	history, err := store.Read(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, session.RoleUser, history[0].Role)
	assert.Equal(t, "hello", history[0].Content)
}

func TestHandleTurnInferenceTimeout(t *testing.T) {
	mock := &provider.MockProvider{
		Response: "too slow",
		Delay: func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
				return nil
			}
		},
	}
	backend, err := session.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	store := session.NewStore(backend)
	t.Cleanup(func() { _ = store.Close() })

	a := New(store, mock, Config{InferenceTimeout: 20 * time.Millisecond})
	_, err = a.HandleTurn(context.Background(), "s1", "hello")
	require.ErrorIs(t, err, ErrInference)

	history, err := store.Read(context.Background(), "s1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1, "timed-out turn should leave the user message")
}

func TestHandleTurnEmptyModelOutputFallsBack(t *testing.T) {
	mock := provider.NewMockProvider("")
	a, store := newTestAssistant(t, mock)
	ctx := context.Background()

	reply, err := a.HandleTurn(ctx, "s1", "hello")
	require.NoError(t, err)
	assert.Equal(t, FallbackResponse, reply)

	history, err := store.Read(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, FallbackResponse, history[1].Content)
}

func TestHandleTurnStoreFailure(t *testing.T) {
	a := New(failingStore{}, provider.NewMockProvider("ok"), Config{})

	_, err := a.HandleTurn(context.Background(), "s1", "hello")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrInference)
}

func TestHistory(t *testing.T) {
	a, store := newTestAssistant(t, provider.NewMockProvider("ok"))
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, store.Append(ctx, "s1", session.NewMessage(session.RoleUser, fmt.Sprintf("m%d", i))))
	}

	history, err := a.History(ctx, "s1", 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "m3", history[0].Content)

	history, err = a.History(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Len(t, history, 5)

	_, err = a.History(ctx, "", 10)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestClear(t *testing.T) {
	a, store := newTestAssistant(t, provider.NewMockProvider("ok"))
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", session.NewMessage(session.RoleUser, "hi")))
	require.NoError(t, a.Clear(ctx, "s1"))

	history, err := store.Read(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.ErrorIs(t, a.Clear(ctx, ""), ErrInvalidInput)
}

// failingStore fails every operation; it also fails the test if used
// where the store must not be touched.
type failingStore struct{}

func (failingStore) Append(ctx context.Context, sessionID string, msg session.Message) error {
	return errors.New("store down")
}

func (failingStore) Read(ctx context.Context, sessionID string, limit int) ([]session.Message, error) {
	return nil, errors.New("store down")
}

func (failingStore) Clear(ctx context.Context, sessionID string) error {
	return errors.New("store down")
}
