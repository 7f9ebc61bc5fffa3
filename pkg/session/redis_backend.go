package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "assistant:session:"

// RedisBackend implements Backend using Redis lists.
// Each session's history lives in a single list keyed by session ID,
// one JSON-encoded message per element, in chronological order.
type RedisBackend struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	mu     sync.RWMutex
	closed bool
}

// RedisConfig holds connection settings for the Redis backend.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// NewRedisBackend creates a Redis-backed storage backend and verifies
// connectivity before returning.
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisBackendFromClient(client, cfg.Prefix, cfg.TTL), nil
}

// NewRedisBackendFromClient wraps an existing Redis client. Useful for
// tests that supply a miniredis-backed client.
func NewRedisBackendFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisBackend {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisBackend{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *RedisBackend) historyKey(sessionID string) string {
	return r.prefix + "history:" + sessionID
}

// LoadHistory retrieves the stored history for a session.
func (r *RedisBackend) LoadHistory(ctx context.Context, sessionID string) ([]Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrStorageClosed
	}
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	items, err := r.client.LRange(ctx, r.historyKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load history from redis: %w", err)
	}

	history := make([]Message, 0, len(items))
	for _, item := range items {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("parse stored message: %w", err)
		}
		history = append(history, msg)
	}
	return history, nil
}

// SaveHistory replaces the stored history for a session atomically
// using a pipelined delete-and-push.
func (r *RedisBackend) SaveHistory(ctx context.Context, sessionID string, history []Message) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrStorageClosed
	}
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	key := r.historyKey(sessionID)
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(history) > 0 {
		encoded := make([]interface{}, 0, len(history))
		for _, msg := range history {
			data, err := json.Marshal(msg)
			if err != nil {
				return fmt.Errorf("marshal message: %w", err)
			}
			encoded = append(encoded, data)
		}
		pipe.RPush(ctx, key, encoded...)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save history to redis: %w", err)
	}
	return nil
}

// DeleteHistory removes the session's history list.
func (r *RedisBackend) DeleteHistory(ctx context.Context, sessionID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrStorageClosed
	}
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	if err := r.client.Del(ctx, r.historyKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete history from redis: %w", err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (r *RedisBackend) Ping(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrStorageClosed
	}
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (r *RedisBackend) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}
