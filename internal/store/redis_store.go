package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultTokenKey = "session:token"

	tokenField  = "token"
	cookieField = "session_cookie"
)

// RedisStore shares the slot between client instances on different processes
// or hosts. The slot is a hash with one field per credential.
type RedisStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewRedisStore creates a store under the default key. ttl of zero keeps the
// slot until it is cleared.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, key: defaultTokenKey, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context) (Slot, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return Slot{}, ErrTokenNotFound
	}
	if err != nil {
		return Slot{}, fmt.Errorf("redis get failed: %w", err)
	}

	slot := Slot{Token: fields[tokenField], SessionCookie: fields[cookieField]}
	if slot.IsZero() {
		return Slot{}, ErrTokenNotFound
	}
	return slot, nil
}

// Save replaces the hash in one transaction so readers never see half a slot.
func (s *RedisStore) Save(ctx context.Context, slot Slot) error {
	values := make(map[string]any, 2)
	if slot.Token != "" {
		values[tokenField] = slot.Token
	}
	if slot.SessionCookie != "" {
		values[cookieField] = slot.SessionCookie
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(values) == 0 {
			return nil
		}
		pipe.HSet(ctx, s.key, values)
		if s.ttl > 0 {
			pipe.Expire(ctx, s.key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}
