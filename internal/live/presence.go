package live

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const presenceKey = "presence:catalog_viewers"

// Presence counts storefront viewers across every server instance.
type Presence interface {
	Online(ctx context.Context, clientID string) error
	Offline(ctx context.Context, clientID string) error
	Count(ctx context.Context) (int64, error)
}

// RedisPresence keeps viewers in a sorted set scored by last heartbeat.
// Entries older than ttl are treated as gone, so a crashed instance does not
// leave its viewers counted forever.
type RedisPresence struct {
	redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
}

func NewRedisPresence(client *redis.Client, ttl time.Duration) *RedisPresence {
	if ttl <= 0 {
		ttl = 2 * pingInterval
	}
	return &RedisPresence{redis: client, ttl: ttl, now: time.Now}
}

// Online marks the viewer as connected. It doubles as the heartbeat.
func (p *RedisPresence) Online(ctx context.Context, clientID string) error {
	pipe := p.redis.Pipeline()
	pipe.ZAdd(ctx, presenceKey, redis.Z{Score: float64(p.now().Unix()), Member: clientID})
	pipe.Expire(ctx, presenceKey, 24*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *RedisPresence) Offline(ctx context.Context, clientID string) error {
	return p.redis.ZRem(ctx, presenceKey, clientID).Err()
}

// Count drops stale viewers and returns how many remain.
func (p *RedisPresence) Count(ctx context.Context) (int64, error) {
	threshold := p.now().Add(-p.ttl).Unix()

	pipe := p.redis.TxPipeline()
	pipe.ZRemRangeByScore(ctx, presenceKey, "-inf", "("+strconv.FormatInt(threshold, 10))
	count := pipe.ZCard(ctx, presenceKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to count viewers: %w", err)
	}
	return count.Val(), nil
}
