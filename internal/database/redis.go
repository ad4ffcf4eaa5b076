package database

import (
	"context"
	"fmt"
	"net"
	"time"

	"altessa/internal/config"

	"github.com/redis/go-redis/v9"
)

const (
	redisPingAttempts = 5
	redisPingBackoff  = time.Second
)

// RedisOptions sizes the pool for the catalog cache, sessions and throttle.
func RedisOptions(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	}
}

// NewRedisConnection pings with a short linear backoff, since Redis may
// still be starting when the server boots alongside it.
func NewRedisConnection(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(RedisOptions(cfg))

	var err error
	for attempt := 1; attempt <= redisPingAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err = client.Ping(ctx).Err()
		cancel()
		if err == nil {
			return client, nil
		}
		time.Sleep(time.Duration(attempt) * redisPingBackoff)
	}

	client.Close()
	return nil, fmt.Errorf("failed to connect to Redis at %s: %w", client.Options().Addr, err)
}
