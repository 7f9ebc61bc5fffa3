package session

import (
	"context"
	"fmt"
)

// Config selects and configures a storage backend.
type Config struct {
	// Backend is one of "file", "redis", or "firestore".
	Backend string `yaml:"backend"`

	// BaseDir is the storage directory for the file backend.
	// Empty means ~/.assistant/sessions.
	BaseDir string `yaml:"base_dir"`

	Redis     RedisConfig     `yaml:"redis"`
	Firestore FirestoreConfig `yaml:"firestore"`
}

// DefaultConfig returns a file-backed configuration.
func DefaultConfig() Config {
	return Config{
		Backend: "file",
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
	}
}

// NewBackend constructs the storage backend named by the config.
func NewBackend(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileBackend(cfg.BaseDir)
	case "redis":
		return NewRedisBackend(cfg.Redis)
	case "firestore":
		return NewFirestoreBackend(ctx, cfg.Firestore)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
