package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Store is the session-facing API over a durable Backend. It keeps a
// registry of per-session handles so that operations for the same
// session identifier are serialized while different sessions proceed
// fully independently.
// Store is safe for concurrent use.
type Store struct {
	backend Backend

	mu       sync.RWMutex
	sessions map[string]*handle
	closed   bool
}

// NewStore creates a store over the given durable backend.
func NewStore(backend Backend) *Store {
	return &Store{
		backend:  backend,
		sessions: make(map[string]*handle),
	}
}

// handleFor returns the live handle for a session, creating one on
// first touch. Creation is implicit: an unseen session identifier is
// a valid empty session, never a not-found error.
func (s *Store) handleFor(sessionID string) (*handle, error) {
	s.mu.RLock()
	h, ok := s.sessions[sessionID]
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrStorageClosed
	}
	if ok {
		return h, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStorageClosed
	}
	if h, ok := s.sessions[sessionID]; ok {
		return h, nil
	}
	h = newHandle(sessionID, s.backend)
	s.sessions[sessionID] = h
	return h, nil
}

// run executes op against the session's handle, retrying once with a
// fresh handle if an eviction raced the lookup.
func (s *Store) run(sessionID string, op func(*handle) error) error {
	for {
		h, err := s.handleFor(sessionID)
		if err != nil {
			return err
		}
		err = op(h)
		if errors.Is(err, errHandleEvicted) {
			continue
		}
		return err
	}
}

// Append adds one message to the end of the session's history,
// applies the retention cap, and persists the result before
// returning. A persistence failure propagates; it is never reported
// as success.
func (s *Store) Append(ctx context.Context, sessionID string, msg Message) error {
	return s.run(sessionID, func(h *handle) error {
		return h.append(ctx, msg)
	})
}

// Read returns up to limit of the most recent messages for a session,
// oldest first within the returned slice. A limit <= 0 returns the
// full retained history. Read never mutates state.
func (s *Store) Read(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	var out []Message
	err := s.run(sessionID, func(h *handle) error {
		var err error
		out, err = h.read(ctx, limit)
		return err
	})
	return out, err
}

// Clear empties the session's history. The session remains
// addressable; subsequent appends start a fresh history. Other
// sessions are unaffected.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	return s.run(sessionID, func(h *handle) error {
		return h.clear(ctx)
	})
}

// ActiveSessions reports the number of in-memory session handles.
func (s *Store) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// EvictIdle drops in-memory handles that have been unused for at
// least maxIdle and returns how many were removed. Safe because the
// durable record is the source of truth: a later operation on an
// evicted session lazily reloads it. Handles with an operation in
// flight are skipped.
func (s *Store) EvictIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, h := range s.sessions {
		if h.idleSince(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Ping verifies the underlying backend connection when the backend
// supports it.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.backend.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close releases the handle registry and the underlying backend.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.sessions = make(map[string]*handle)
	s.mu.Unlock()

	return s.backend.Close()
}
