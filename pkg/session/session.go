package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// errHandleEvicted signals that a handle was removed from the registry
// between lookup and lock acquisition. The store retries with a fresh
// handle; durable state is the source of truth so nothing is lost.
var errHandleEvicted = errors.New("session handle evicted")

// handle serializes all access to one session's history. The mutex is
// held only for the duration of a single store operation, never across
// an inference call. The in-memory history is a lazily-populated
// mirror of the durable record and is written back synchronously
// before any mutating operation returns.
type handle struct {
	id      string
	backend Backend

	mu       sync.Mutex
	loaded   bool
	evicted  bool
	history  []Message
	lastUsed time.Time
}

func newHandle(id string, backend Backend) *handle {
	return &handle{id: id, backend: backend}
}

// ensureLoaded populates the mirror from durable storage on the first
// operation of the handle's lifetime. Caller must hold mu.
func (h *handle) ensureLoaded(ctx context.Context) error {
	if h.loaded {
		return nil
	}
	stored, err := h.backend.LoadHistory(ctx, h.id)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	h.history = stored
	h.loaded = true
	return nil
}

func (h *handle) append(ctx context.Context, msg Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.evicted {
		return errHandleEvicted
	}
	if err := h.ensureLoaded(ctx); err != nil {
		return err
	}

	next := append(h.history, msg)
	if len(next) > MaxRetained {
		// Trim into a fresh slice so the dropped prefix does not pin
		// the old backing array.
		trimmed := make([]Message, MaxRetained)
		copy(trimmed, next[len(next)-MaxRetained:])
		next = trimmed
	}

	if err := h.backend.SaveHistory(ctx, h.id, next); err != nil {
		return fmt.Errorf("save history: %w", err)
	}

	h.history = next
	h.lastUsed = time.Now()
	return nil
}

func (h *handle) read(ctx context.Context, limit int) ([]Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.evicted {
		return nil, errHandleEvicted
	}
	if err := h.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	h.lastUsed = time.Now()

	if limit <= 0 || limit > len(h.history) {
		limit = len(h.history)
	}
	out := make([]Message, limit)
	copy(out, h.history[len(h.history)-limit:])
	return out, nil
}

func (h *handle) clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.evicted {
		return errHandleEvicted
	}
	if err := h.backend.DeleteHistory(ctx, h.id); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}

	// The partition stays addressable; only its content is gone.
	h.history = nil
	h.loaded = true
	h.lastUsed = time.Now()
	return nil
}

// idleSince reports whether the handle has been unused since the
// cutoff and, if so, marks it evicted. Returns false without marking
// when the handle is busy or recently used. Used by Store.EvictIdle
// while holding the registry write lock.
func (h *handle) idleSince(cutoff time.Time) bool {
	if !h.mu.TryLock() {
		return false
	}
	defer h.mu.Unlock()

	if h.lastUsed.After(cutoff) {
		return false
	}
	h.evicted = true
	return true
}
