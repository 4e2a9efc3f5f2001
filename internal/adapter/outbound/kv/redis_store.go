package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
)

// RedisStore implements Store on a Redis server.
// Every key is stored as "<prefix><key>". CompareAndSet uses WATCH/MULTI so a
// concurrent writer aborts the transaction.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisStore connects to addr and verifies the connection with PING.
func NewRedisStore(ctx context.Context, addr, prefix string, logger *slog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	logger.Debug("redis store connected", "addr", addr, "prefix", prefix)
	return &RedisStore{client: client, prefix: prefix, logger: logger}, nil
}

func (s *RedisStore) key(key string) string {
	return s.prefix + key
}

// Get returns the value for key.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ValidateKey(key); err != nil {
		return "", false, err
	}
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key without expiry.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// CompareAndSet writes value if the stored revision equals expected.
func (s *RedisStore) CompareAndSet(ctx context.Context, key string, expected Revision, value string) (Revision, error) {
	if err := ValidateKey(key); err != nil {
		return NoRevision, err
	}
	full := s.key(key)
	current := NoRevision

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		old, err := tx.Get(ctx, full).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			current = RevisionOf(old)
		}
		if current != expected {
			return ErrRevisionMismatch
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, full, value, 0)
			return nil
		})
		return err
	}, full)

	switch {
	case err == nil:
		return RevisionOf(value), nil
	case errors.Is(err, ErrRevisionMismatch):
		return current, ErrRevisionMismatch
	case errors.Is(err, redis.TxFailedErr):
		// Another client wrote between WATCH and EXEC.
		s.logger.Debug("redis compare-and-set aborted by concurrent write", "key", key)
		return NoRevision, ErrRevisionMismatch
	default:
		return NoRevision, fmt.Errorf("redis compare-and-set %s: %w", key, err)
	}
}

// Close closes the client connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Compile-time interface verification.
var _ Store = (*RedisStore)(nil)
