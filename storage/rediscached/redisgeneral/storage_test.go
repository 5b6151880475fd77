package redisgeneral

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	Name    string
	Version int
}

func (c counter) GetVersion() int {
	return c.Version
}

type hgetOnly struct {
	redis.Cmdable
	value string
	err   error
}

func (h *hgetOnly) HGet(context.Context, string, string) *redis.StringCmd {
	return redis.NewStringResult(h.value, h.err)
}

func TestGetDecodesStoredValue(t *testing.T) {
	s := NewStorage[counter](&hgetOnly{value: `{"Name":"likes","Version":4}`}, time.Minute)

	value, found, err := s.Get(context.Background(), "key")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, counter{Name: "likes", Version: 4}, value)
}

func TestGetMissingKey(t *testing.T) {
	s := NewStorage[counter](&hgetOnly{err: redis.Nil}, time.Minute)

	value, found, err := s.Get(context.Background(), "key")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, value)
}

func TestGetErrors(t *testing.T) {
	broken := errors.New("connection reset")
	_, _, err := NewStorage[counter](&hgetOnly{err: broken}, 0).Get(context.Background(), "key")
	assert.ErrorIs(t, err, broken)

	_, _, err = NewStorage[counter](&hgetOnly{value: "{"}, 0).Get(context.Background(), "key")
	assert.Error(t, err)
}
