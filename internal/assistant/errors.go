package assistant

import "errors"

// Sentinel errors let callers map failures to distinct responses
// without inspecting message text.
var (
	// ErrInvalidInput marks a rejected request: empty message or
	// session identifier. Nothing is persisted.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable marks a session store failure.
	ErrStoreUnavailable = errors.New("session store unavailable")

	// ErrInference marks a model call failure or timeout. The user
	// turn has already been persisted when this is returned.
	ErrInference = errors.New("inference failed")
)
