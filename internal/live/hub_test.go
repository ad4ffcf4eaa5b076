package live

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"altessa/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
	})
	return hub, cancel
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg, ok := <-c.Send():
		require.True(t, ok, "client channel closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
		return nil
	}
}

func waitClosed(t *testing.T, c *Client) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.Send():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("client channel not closed")
		}
	}
}

func TestPublishReachesEveryClient(t *testing.T) {
	hub, _ := startHub(t)
	a, b := NewClient("a", 4), NewClient("b", 4)
	require.NoError(t, hub.Register(a))
	require.NoError(t, hub.Register(b))

	e := events.New(events.ProductUpdated, "product", "7", nil)
	require.NoError(t, hub.Publish(context.Background(), e))

	for _, c := range []*Client{a, b} {
		var msg ServerMessage
		require.NoError(t, json.Unmarshal(receive(t, c), &msg))
		assert.Equal(t, MessageTypeCatalog, msg.Type)
		require.NotNil(t, msg.Event)
		assert.Equal(t, e.ID, msg.Event.ID)
		assert.Equal(t, events.ProductUpdated, msg.Event.Type)
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	hub, _ := startHub(t)
	slow, fast := NewClient("slow", 1), NewClient("fast", 8)
	require.NoError(t, hub.Register(slow))
	require.NoError(t, hub.Register(fast))

	for i := 0; i < 3; i++ {
		require.NoError(t, hub.Broadcast([]byte(`{"n":1}`)))
		receive(t, fast)
	}

	// slow got the first frame, then was removed and its channel closed.
	waitClosed(t, slow)
	assert.Eventually(t, func() bool { return hub.Stats().DroppedClients == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, hub.Stats().ActiveConnections)
}

func TestUnregisterClosesClient(t *testing.T) {
	hub, _ := startHub(t)
	c := NewClient("c", 1)
	require.NoError(t, hub.Register(c))

	hub.Unregister(c)
	waitClosed(t, c)

	// A second unregister is harmless.
	hub.Unregister(c)
}

func TestHubStopsOnCancel(t *testing.T) {
	hub, cancel := startHub(t)
	c := NewClient("c", 1)
	require.NoError(t, hub.Register(c))

	cancel()
	<-hub.Done()

	waitClosed(t, c)
	assert.ErrorIs(t, hub.Register(NewClient("late", 1)), ErrHubStopped)
	assert.ErrorIs(t, hub.Publish(context.Background(), events.New(events.CacheRevalidated, "cache", "products", nil)), ErrHubStopped)
	hub.Unregister(c)
}

func TestHubClose(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run(context.Background())

	require.NoError(t, hub.Close())
	require.NoError(t, hub.Close())

	select {
	case <-hub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
}

func TestFanoutWithHub(t *testing.T) {
	hub, _ := startHub(t)
	c := NewClient("c", 2)
	require.NoError(t, hub.Register(c))

	pub := events.Fanout{events.NoOpPublisher{}, hub}
	require.NoError(t, pub.Publish(context.Background(), events.New(events.CategoryCreated, "category", "1", nil)))

	var msg ServerMessage
	require.NoError(t, json.Unmarshal(receive(t, c), &msg))
	assert.Equal(t, events.CategoryCreated, msg.Event.Type)
}
