package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrInvalidSessionID is returned when a session identifier contains
// unsafe characters for use as a path component.
var ErrInvalidSessionID = errors.New("invalid session id: contains path separator or traversal sequence")

// validateSessionID checks that a string is safe to use as a path component.
// It rejects empty strings, path separators, and traversal sequences.
func validateSessionID(s string) error {
	if s == "" {
		return errors.New("session id cannot be empty")
	}
	if strings.ContainsAny(s, `/\`) || strings.Contains(s, "..") {
		return ErrInvalidSessionID
	}
	return nil
}

// FileBackend implements Backend using one JSON file per session.
// Storage layout:
//
//	~/.assistant/sessions/
//	  └── <session-id>.json    # ordered message history
type FileBackend struct {
	baseDir string
	mu      sync.RWMutex
	closed  bool
}

// NewFileBackend creates a new file-based storage backend.
// If baseDir is empty, uses ~/.assistant/sessions.
func NewFileBackend(baseDir string) (*FileBackend, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".assistant", "sessions")
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	return &FileBackend{
		baseDir: baseDir,
	}, nil
}

func (f *FileBackend) historyPath(sessionID string) string {
	return filepath.Join(f.baseDir, sessionID+".json")
}

// LoadHistory retrieves the stored history for a session.
// A session that was never written loads as an empty history.
func (f *FileBackend) LoadHistory(ctx context.Context, sessionID string) ([]Message, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStorageClosed
	}
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.historyPath(sessionID)) // #nosec G304 - session ID validated to prevent traversal
	if err != nil {
		if os.IsNotExist(err) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("read history file: %w", err)
	}

	var history []Message
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("parse history file: %w", err)
	}
	return history, nil
}

// SaveHistory replaces the stored history for a session.
func (f *FileBackend) SaveHistory(ctx context.Context, sessionID string, history []Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStorageClosed
	}
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	if err := os.WriteFile(f.historyPath(sessionID), data, 0600); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}
	return nil
}

// DeleteHistory removes the session's history file.
func (f *FileBackend) DeleteHistory(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStorageClosed
	}
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	if err := os.Remove(f.historyPath(sessionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove history file: %w", err)
	}
	return nil
}

// Close releases any resources held by the backend.
func (f *FileBackend) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	return nil
}
