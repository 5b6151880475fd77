package redisgeneral

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	valueField   = "value"
	versionField = "vers"
)

// Versioned values carry a number that only grows as the value changes, so an
// older copy never replaces a newer one in the cache.
type Versioned interface {
	GetVersion() int
}

// Storage keeps JSON encoded values of type T in redis hashes holding the
// value and its version side by side.
type Storage[T Versioned] struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewStorage expires written keys after ttl; zero keeps them forever.
func NewStorage[T Versioned](client redis.Cmdable, ttl time.Duration) *Storage[T] {
	return &Storage[T]{client: client, ttl: ttl}
}

// Get reports false without an error when key is not cached.
func (s *Storage[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	raw, err := s.client.HGet(ctx, key, valueField).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return zero, false, nil
	case err != nil:
		return zero, false, fmt.Errorf("redis hget %s: %w", key, err)
	}

	value, err := decode[T](raw)
	if err != nil {
		return zero, false, err
	}
	return value, true, nil
}

func (s *Storage[T]) Delete(ctx context.Context, keys ...string) error {
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

//go:embed set_fresh.lua
var setFreshSource string

var setFresh = redis.NewScript(setFreshSource)

// SetWithFreshness stores value unless a newer version is already cached, and
// returns whichever value ends up stored.
func (s *Storage[T]) SetWithFreshness(ctx context.Context, key string, value T) (T, error) {
	var zero T
	encoded, err := json.Marshal(value)
	if err != nil {
		return zero, fmt.Errorf("encode %T: %w", value, err)
	}

	stored, err := setFresh.Run(ctx, s.client, []string{key}, encoded, value.GetVersion(), s.ttl.Milliseconds()).Text()
	if err != nil {
		return zero, fmt.Errorf("redis set %s: %w", key, err)
	}
	return decode[T]([]byte(stored))
}

func decode[T Versioned](raw []byte) (T, error) {
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, fmt.Errorf("decode cached %T: %w", value, err)
	}
	return value, nil
}
