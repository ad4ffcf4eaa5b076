package live

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	clientBuffer = 32
)

// Handler serves GET /ws/catalog.
type Handler struct {
	hub      *Hub
	presence Presence
	log      *zap.Logger
}

// NewHandler builds the live handler. presence may be nil.
func NewHandler(hub *Hub, presence Presence, log *zap.Logger) *Handler {
	return &Handler{hub: hub, presence: presence, log: log}
}

// Upgrade only lets websocket handshakes through.
func (h *Handler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Serve is the websocket endpoint. Clients only listen; anything they send
// is read and discarded so pings and close frames are processed.
func (h *Handler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		client := NewClient(uuid.NewString(), clientBuffer)
		if err := h.hub.Register(client); err != nil {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		}
		defer h.hub.Unregister(client)

		h.markOnline(client.ID)
		defer h.markOffline(client.ID)

		if err := conn.WriteMessage(websocket.TextMessage, newWelcomeMessage(client.ID)); err != nil {
			return
		}

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send():
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if !ok {
					_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					h.log.Debug("live write failed", zap.String("client_id", client.ID), zap.Error(err))
					return
				}

			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
				h.markOnline(client.ID)

			case <-closed:
				return
			}
		}
	})
}

func (h *Handler) markOnline(clientID string) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	if err := h.presence.Online(ctx, clientID); err != nil {
		h.log.Warn("failed to record viewer presence", zap.String("client_id", clientID), zap.Error(err))
	}
}

func (h *Handler) markOffline(clientID string) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	if err := h.presence.Offline(ctx, clientID); err != nil {
		h.log.Warn("failed to clear viewer presence", zap.String("client_id", clientID), zap.Error(err))
	}
}

// Stats handles GET /api/v1/live/stats
func (h *Handler) Stats(c *fiber.Ctx) error {
	stats := h.hub.Stats()
	if h.presence == nil {
		return c.JSON(fiber.Map{"hub": stats})
	}

	viewers, err := h.presence.Count(c.UserContext())
	if err != nil {
		h.log.Warn("failed to count viewers", zap.Error(err))
		return c.JSON(fiber.Map{"hub": stats})
	}
	return c.JSON(fiber.Map{"hub": stats, "viewers": viewers})
}
