package redis

// Package redis provides Redis-based adapters for the identity gateway.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/brightclass/identity-go/internal/ports"
)

// scanBatchSize bounds each SCAN page during ClearClient.
const scanBatchSize = 100

// StateStore is a Redis-based per-client key-value store. Each client's keys
// live under their own namespace so concurrent clients never collide.
type StateStore struct {
	client redis.UniversalClient
	prefix string
}

var _ ports.StateStore = (*StateStore)(nil)

// NewStateStore creates a new Redis-based state store.
func NewStateStore(client redis.UniversalClient) *StateStore {
	return &StateStore{client: client, prefix: "client:"}
}

// NewStateStoreWithPrefix creates a Redis state store with a custom key prefix.
func NewStateStoreWithPrefix(client redis.UniversalClient, prefix string) *StateStore {
	return &StateStore{client: client, prefix: prefix}
}

func (s *StateStore) key(clientID, key string) string {
	return s.prefix + clientID + ":" + key
}

func (s *StateStore) Get(ctx context.Context, clientID, key string) (string, bool, error) {
	if clientID == "" || key == "" {
		return "", false, errors.New("client id and key cannot be empty")
	}

	val, err := s.client.Get(ctx, s.key(clientID, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

func (s *StateStore) Set(ctx context.Context, clientID, key, value string, ttl time.Duration) error {
	if clientID == "" || key == "" {
		return errors.New("client id and key cannot be empty")
	}
	return s.client.Set(ctx, s.key(clientID, key), value, ttl).Err()
}

// SetIfNotExists atomically writes the key only when absent. Uses Redis SET
// with NX and TTL for guaranteed atomicity; this is the lease primitive behind
// the in-flight fetch marker.
func (s *StateStore) SetIfNotExists(
	ctx context.Context,
	clientID, key, value string,
	ttl time.Duration,
) (bool, error) {
	if clientID == "" || key == "" {
		return false, errors.New("client id and key cannot be empty")
	}

	ok, err := s.client.SetNX(ctx, s.key(clientID, key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (s *StateStore) Delete(ctx context.Context, clientID, key string) error {
	if clientID == "" || key == "" {
		return errors.New("client id and key cannot be empty")
	}
	return s.client.Del(ctx, s.key(clientID, key)).Err()
}

// ClearClient wipes every key in the client's namespace via SCAN so large
// keyspaces never block Redis.
func (s *StateStore) ClearClient(ctx context.Context, clientID string) error {
	if clientID == "" {
		return errors.New("client id cannot be empty")
	}

	pattern := s.prefix + clientID + ":*"
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if delErr := s.client.Del(ctx, keys...).Err(); delErr != nil {
				return fmt.Errorf("redis del: %w", delErr)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
