package live

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

type fakePresence struct {
	online map[string]bool
	err    error
}

func (p *fakePresence) Online(_ context.Context, id string) error {
	p.online[id] = true
	return p.err
}

func (p *fakePresence) Offline(_ context.Context, id string) error {
	delete(p.online, id)
	return p.err
}

func (p *fakePresence) Count(context.Context) (int64, error) {
	return int64(len(p.online)), p.err
}

// callStats runs the handler on a bare request context, without a listener.
func callStats(t *testing.T, h *Handler) map[string]interface{} {
	t.Helper()
	app := fiber.New()
	c := app.AcquireCtx(&fasthttp.RequestCtx{})
	defer app.ReleaseCtx(c)

	require.NoError(t, h.Stats(c))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(c.Response().Body(), &body))
	return body
}

func TestStatsWithPresence(t *testing.T) {
	hub, _ := startHub(t)
	presence := &fakePresence{online: map[string]bool{}}
	h := NewHandler(hub, presence, zap.NewNop())

	h.markOnline("a")
	h.markOnline("b")
	h.markOffline("a")

	body := callStats(t, h)
	assert.Equal(t, 1.0, body["viewers"])
	assert.Contains(t, body, "hub")
}

func TestStatsWithoutPresence(t *testing.T) {
	hub, _ := startHub(t)
	h := NewHandler(hub, nil, zap.NewNop())

	h.markOnline("a")

	body := callStats(t, h)
	assert.NotContains(t, body, "viewers")
	assert.Contains(t, body, "hub")
}

func TestStatsPresenceFailure(t *testing.T) {
	hub, _ := startHub(t)
	h := NewHandler(hub, &fakePresence{online: map[string]bool{}, err: errors.New("redis down")}, zap.NewNop())

	body := callStats(t, h)
	assert.NotContains(t, body, "viewers")
}
