package auth

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	addr, err := container.PortEndpoint(ctx, "6379/tcp", "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisThrottleCounterExpires(t *testing.T) {
	client := newRedisClient(t)
	throttle := NewRedisThrottle(client)
	ctx := context.Background()

	n, err := throttle.Fail(ctx, "Admin@Altessa.com", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = throttle.Fail(ctx, "admin@altessa.com", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ttl, err := client.TTL(ctx, attemptsKey("admin@altessa.com")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0), "counter must carry an expiry")
	assert.LessOrEqual(t, ttl, time.Minute, "later failures do not extend the window")

	attempts, err := throttle.Attempts(ctx, "ADMIN@altessa.com")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	require.NoError(t, throttle.Reset(ctx, "admin@altessa.com"))
	attempts, err = throttle.Attempts(ctx, "admin@altessa.com")
	require.NoError(t, err)
	assert.Zero(t, attempts)
}
