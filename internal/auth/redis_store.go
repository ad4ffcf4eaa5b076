package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Sessions tracks issued refresh tokens.
type Sessions interface {
	Store(ctx context.Context, tokenID string, data map[string]string, expiry time.Duration) error
	Get(ctx context.Context, tokenID string) (map[string]string, error)
	Delete(ctx context.Context, tokenID string) error
	Extend(ctx context.Context, tokenID string, expiry time.Duration) error
}

// Throttle counts failed login attempts per key inside a fixed window.
type Throttle interface {
	Attempts(ctx context.Context, key string) (int, error)
	Fail(ctx context.Context, key string, window time.Duration) (int, error)
	Reset(ctx context.Context, key string) error
}

func newTokenID() string {
	return uuid.NewString()
}

// SessionStore manages refresh sessions in Redis hashes.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func sessionKey(tokenID string) string {
	return fmt.Sprintf("session:%s", tokenID)
}

func (s *SessionStore) Store(ctx context.Context, tokenID string, data map[string]string, expiry time.Duration) error {
	args := make([]interface{}, 0, len(data)*2)
	for k, v := range data {
		args = append(args, k, v)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, sessionKey(tokenID), args...)
	pipe.Expire(ctx, sessionKey(tokenID), expiry)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *SessionStore) Get(ctx context.Context, tokenID string) (map[string]string, error) {
	data, err := s.client.HGetAll(ctx, sessionKey(tokenID)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrSessionNotFound
	}
	return data, nil
}

func (s *SessionStore) Delete(ctx context.Context, tokenID string) error {
	return s.client.Del(ctx, sessionKey(tokenID)).Err()
}

func (s *SessionStore) Extend(ctx context.Context, tokenID string, expiry time.Duration) error {
	return s.client.Expire(ctx, sessionKey(tokenID), expiry).Err()
}

// RedisThrottle keeps one counter per key; the window starts with the first
// failure.
type RedisThrottle struct {
	client *redis.Client
}

func NewRedisThrottle(client *redis.Client) *RedisThrottle {
	return &RedisThrottle{client: client}
}

func attemptsKey(key string) string {
	return "login_attempts:" + strings.ToLower(key)
}

func (t *RedisThrottle) Attempts(ctx context.Context, key string) (int, error) {
	n, err := t.client.Get(ctx, attemptsKey(key)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// Fail counts a failed attempt. The counter is created with its expiry in the
// same transaction, so it always lapses after window.
func (t *RedisThrottle) Fail(ctx context.Context, key string, window time.Duration) (int, error) {
	k := attemptsKey(key)

	pipe := t.client.TxPipeline()
	pipe.SetNX(ctx, k, 0, window)
	incr := pipe.Incr(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to record login attempt: %w", err)
	}

	return int(incr.Val()), nil
}

func (t *RedisThrottle) Reset(ctx context.Context, key string) error {
	return t.client.Del(ctx, attemptsKey(key)).Err()
}
