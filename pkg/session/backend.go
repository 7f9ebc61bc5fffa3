package session

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	// ErrStorageClosed is returned when operating on a closed storage backend.
	ErrStorageClosed = errors.New("storage backend is closed")
)

// Backend abstracts durable persistence of one history record per
// session identifier. A session that has never been written loads as
// an empty history, not as an error.
// Implementations must be safe for concurrent use.
type Backend interface {
	// LoadHistory retrieves the full stored history for a session, in
	// insertion order. Unknown sessions yield an empty slice.
	LoadHistory(ctx context.Context, sessionID string) ([]Message, error)

	// SaveHistory replaces the stored history for a session with the
	// given ordered messages. Callers apply the retention cap before
	// saving; the backend stores what it is given.
	SaveHistory(ctx context.Context, sessionID string, history []Message) error

	// DeleteHistory removes the stored history for a session. Deleting
	// an unknown session is not an error; the session remains
	// addressable for future writes.
	DeleteHistory(ctx context.Context, sessionID string) error

	// Close releases any resources held by the backend.
	Close() error
}

// Pinger is implemented by backends that can cheaply verify their
// connection to the underlying substrate.
type Pinger interface {
	Ping(ctx context.Context) error
}
