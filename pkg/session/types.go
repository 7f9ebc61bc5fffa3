// Package session provides the durable, session-scoped conversation
// store for the assistant. Each session identifier owns an ordered,
// bounded log of chat messages; sessions are created implicitly on
// first use and never observe each other's state.
package session

import (
	"time"
)

// Role identifies the author of a conversational turn.
type Role string

const (
	// RoleUser marks a message written by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks a message produced by the model.
	RoleAssistant Role = "assistant"
	// RoleSystem marks the fixed behavior instruction.
	RoleSystem Role = "system"
)

// Message is a single conversational turn.
// Timestamp is advisory display ordering only; insertion order is the
// source of truth within a session.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	// MaxRetained is the per-session retention cap. Appending beyond it
	// drops the oldest messages so exactly the most recent MaxRetained
	// remain.
	MaxRetained = 50

	// RecentWindow is the default slice of history supplied to an
	// inference call.
	RecentWindow = 10

	// HistoryWindow is the default slice of history returned for
	// user-facing transcript display.
	HistoryWindow = 50
)

// NewMessage builds a message stamped with the current UTC time.
func NewMessage(role Role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}
