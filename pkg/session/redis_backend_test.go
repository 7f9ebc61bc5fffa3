package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisBackend(t *testing.T, ttl time.Duration) (*RedisBackend, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backend := NewRedisBackendFromClient(client, "", ttl)
	t.Cleanup(func() { _ = backend.Close() })
	return backend, mr
}

func TestRedisBackendRoundTrip(t *testing.T) {
	backend, _ := newTestRedisBackend(t, 0)
	ctx := context.Background()

	history := []Message{
		NewMessage(RoleUser, "hello"),
		NewMessage(RoleAssistant, "hi there"),
		NewMessage(RoleUser, "how are you"),
	}
	if err := backend.SaveHistory(ctx, "s1", history); err != nil {
		t.Fatalf("SaveHistory failed: %v", err)
	}

	loaded, err := backend.LoadHistory(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(loaded))
	}
	for i := range history {
		if loaded[i].Role != history[i].Role || loaded[i].Content != history[i].Content {
			t.Errorf("message %d: expected %+v, got %+v", i, history[i], loaded[i])
		}
	}
}

func TestRedisBackendSaveReplacesHistory(t *testing.T) {
	backend, _ := newTestRedisBackend(t, 0)
	ctx := context.Background()

	first := []Message{NewMessage(RoleUser, "one"), NewMessage(RoleUser, "two")}
	if err := backend.SaveHistory(ctx, "s1", first); err != nil {
		t.Fatalf("SaveHistory failed: %v", err)
	}
	second := []Message{NewMessage(RoleUser, "replacement")}
	if err := backend.SaveHistory(ctx, "s1", second); err != nil {
		t.Fatalf("second SaveHistory failed: %v", err)
	}

	loaded, err := backend.LoadHistory(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Content != "replacement" {
		t.Fatalf("expected replaced history, got %v", loaded)
	}
}

func TestRedisBackendUnknownSessionLoadsEmpty(t *testing.T) {
	backend, _ := newTestRedisBackend(t, 0)

	loaded, err := backend.LoadHistory(context.Background(), "missing")
	if err != nil {
		t.Fatalf("LoadHistory of unknown session failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty history, got %d messages", len(loaded))
	}
}

func TestRedisBackendDelete(t *testing.T) {
	backend, _ := newTestRedisBackend(t, 0)
	ctx := context.Background()

	if err := backend.SaveHistory(ctx, "s1", []Message{NewMessage(RoleUser, "hi")}); err != nil {
		t.Fatalf("SaveHistory failed: %v", err)
	}
	if err := backend.DeleteHistory(ctx, "s1"); err != nil {
		t.Fatalf("DeleteHistory failed: %v", err)
	}

	loaded, err := backend.LoadHistory(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadHistory after delete failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty history after delete, got %d", len(loaded))
	}
}

func TestRedisBackendTTL(t *testing.T) {
	backend, mr := newTestRedisBackend(t, time.Minute)
	ctx := context.Background()

	if err := backend.SaveHistory(ctx, "s1", []Message{NewMessage(RoleUser, "hi")}); err != nil {
		t.Fatalf("SaveHistory failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	loaded, err := backend.LoadHistory(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadHistory after expiry failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected history to expire, got %d messages", len(loaded))
	}
}

func TestRedisBackendPing(t *testing.T) {
	backend, mr := newTestRedisBackend(t, 0)
	ctx := context.Background()

	if err := backend.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	mr.Close()
	if err := backend.Ping(ctx); err == nil {
		t.Error("expected Ping to fail after server shutdown")
	}
}

func TestRedisBackendClosed(t *testing.T) {
	backend, _ := newTestRedisBackend(t, 0)
	if err := backend.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	ctx := context.Background()

	if err := backend.SaveHistory(ctx, "s1", nil); !errors.Is(err, ErrStorageClosed) {
		t.Errorf("expected ErrStorageClosed from SaveHistory, got %v", err)
	}
	if _, err := backend.LoadHistory(ctx, "s1"); !errors.Is(err, ErrStorageClosed) {
		t.Errorf("expected ErrStorageClosed from LoadHistory, got %v", err)
	}
	if err := backend.Ping(ctx); !errors.Is(err, ErrStorageClosed) {
		t.Errorf("expected ErrStorageClosed from Ping, got %v", err)
	}
}
