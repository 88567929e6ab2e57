package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/trackmatch/internal/shared"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements cache.Store on Redis string keys.
//
// Keys are "<prefix>snapshot:<container id>". A positive TTL lets Redis expire stale
// snapshots on its own, in addition to the explicit sweep.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to Redis and checks the connection with PING.
func NewRedisStore(ctx context.Context, addr string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client, "trackmatch:", ttl), nil
}

// NewRedisStoreWithClient wraps an existing client, namespacing keys under prefix.
func NewRedisStoreWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix + snapshotPrefix, ttl: ttl}
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(containerID string) string {
	return s.prefix + containerID
}

func (s *RedisStore) Get(ctx context.Context, containerID string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(containerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: snapshot %s", shared.ErrNotFound, containerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return data, nil
}

func (s *RedisStore) Put(ctx context.Context, containerID string, data []byte) error {
	if err := s.client.Set(ctx, s.key(containerID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to put snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, containerID string) error {
	if err := s.client.Del(ctx, s.key(containerID)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// List scans the key space under the store prefix. Keys that expire mid-scan are skipped.
func (s *RedisStore) List(ctx context.Context) (map[string][]byte, error) {
	records := make(map[string][]byte)

	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get snapshot %s: %w", key, err)
		}
		records[strings.TrimPrefix(key, s.prefix)] = data
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan snapshots: %w", err)
	}
	return records, nil
}
