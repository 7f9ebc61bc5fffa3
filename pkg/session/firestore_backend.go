package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
)

const defaultFirestoreCollection = "sessions"

// messageDoc is the Firestore representation of a Message.
type messageDoc struct {
	Role      string    `firestore:"role"`
	Content   string    `firestore:"content"`
	Timestamp time.Time `firestore:"timestamp"`
}

// sessionDoc is the Firestore representation of a session's history.
type sessionDoc struct {
	Messages  []messageDoc `firestore:"messages"`
	UpdatedAt time.Time    `firestore:"updatedAt"`
}

// FirestoreBackend implements Backend using one Firestore document per
// session. The whole history is stored as an array field so a save
// replaces it in a single write.
type FirestoreBackend struct {
	client     *firestore.Client
	collection string
	mu         sync.RWMutex
	closed     bool
}

// FirestoreConfig holds connection settings for the Firestore backend.
type FirestoreConfig struct {
	ProjectID  string `yaml:"project_id"`
	Collection string `yaml:"collection"`
}

// NewFirestoreBackend creates a Firestore-backed storage backend.
func NewFirestoreBackend(ctx context.Context, cfg FirestoreConfig, opts ...option.ClientOption) (*FirestoreBackend, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("firestore backend requires a project id")
	}
	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = defaultFirestoreCollection
	}
	return &FirestoreBackend{
		client:     client,
		collection: collection,
	}, nil
}

func (b *FirestoreBackend) doc(sessionID string) *firestore.DocumentRef {
	return b.client.Collection(b.collection).Doc(sessionID)
}

// LoadHistory retrieves the stored history for a session.
func (b *FirestoreBackend) LoadHistory(ctx context.Context, sessionID string) ([]Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrStorageClosed
	}
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	snap, err := b.doc(sessionID).Get(ctx)
	if snap != nil && !snap.Exists() {
		return []Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session document: %w", err)
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode session document: %w", err)
	}

	history := make([]Message, 0, len(doc.Messages))
	for _, m := range doc.Messages {
		history = append(history, Message{
			Role:      Role(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}
	return history, nil
}

// SaveHistory replaces the stored history for a session in one write.
func (b *FirestoreBackend) SaveHistory(ctx context.Context, sessionID string, history []Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrStorageClosed
	}
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	msgs := make([]messageDoc, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, messageDoc{
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp,
		})
	}

	if _, err := b.doc(sessionID).Set(ctx, sessionDoc{
		Messages:  msgs,
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("save session document: %w", err)
	}
	return nil
}

// DeleteHistory removes the session document.
func (b *FirestoreBackend) DeleteHistory(ctx context.Context, sessionID string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrStorageClosed
	}
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	if _, err := b.doc(sessionID).Delete(ctx); err != nil {
		return fmt.Errorf("delete session document: %w", err)
	}
	return nil
}

// Close closes the Firestore client.
func (b *FirestoreBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.client.Close()
}
