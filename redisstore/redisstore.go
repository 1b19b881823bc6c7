// Package redisstore implements beacon.Storage on Redis, for hosts whose
// local state already lives in a Redis instance.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/asungur/beacon"
	"github.com/redis/go-redis/v9"
)

// Store keeps beacon values as plain Redis strings.
type Store struct {
	client  *redis.Client
	timeout time.Duration
	owned   bool
	closed  bool
	mu      sync.RWMutex
}

// New wraps an existing client. Close does not close it.
func New(client *redis.Client) *Store {
	return &Store{client: client, timeout: 5 * time.Second}
}

// Open connects to redisURL and verifies the connection.
func Open(redisURL string) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	s := New(client)
	s.owned = true
	return s, nil
}

func (s *Store) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Get returns the value stored under key, or beacon.ErrNotFound.
func (s *Store) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, beacon.ErrClosed
	}

	ctx, cancel := s.context()
	defer cancel()

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, beacon.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Set writes value under key without an expiry.
func (s *Store) Set(key string, value []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return beacon.ErrClosed
	}

	ctx, cancel := s.context()
	defer cancel()

	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return beacon.ErrClosed
	}

	ctx, cancel := s.context()
	defer cancel()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close marks the store closed and closes the client if Open created it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return beacon.ErrClosed
	}
	s.closed = true
	if s.owned {
		return s.client.Close()
	}
	return nil
}
