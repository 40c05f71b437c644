package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// StateStore is a KeyValueStore backed by Redis.
// Key format: <namespace>:<key>
type StateStore struct {
	client    redis.UniversalClient
	namespace string
}

// NewStateStore wraps client; namespace isolates the state of one agent
// (typically one user) from others sharing the same Redis.
func NewStateStore(client redis.UniversalClient, namespace string) *StateStore {
	return &StateStore{client: client, namespace: namespace}
}

// Get returns ok=false when the key does not exist.
func (s *StateStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("state get %s: %w", key, err)
	}
	return v, true, nil
}

// Set stores the value without expiry.
func (s *StateStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("state set %s: %w", key, err)
	}
	return nil
}

func (s *StateStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("state delete %s: %w", key, err)
	}
	return nil
}

func (s *StateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *StateStore) key(key string) string {
	if s.namespace == "" {
		return key
	}
	return s.namespace + ":" + key
}
