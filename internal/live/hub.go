// Package live pushes catalog changes to connected storefront clients over
// websockets.
package live

import (
	"context"
	"errors"
	"sync"
	"time"

	"altessa/internal/events"

	"go.uber.org/zap"
)

var (
	ErrHubStopped = errors.New("live hub stopped")
	ErrHubBusy    = errors.New("live hub broadcast buffer full")
)

// Client is one websocket subscriber. The hub owns its send channel and
// closes it when the client is removed.
type Client struct {
	ID   string
	send chan []byte

	closeOnce sync.Once
}

func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 32
	}
	return &Client{ID: id, send: make(chan []byte, buffer)}
}

// Send yields frames to write. It is closed when the client is dropped.
func (c *Client) Send() <-chan []byte {
	return c.send
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

type HubStats struct {
	TotalConnections  int64     `json:"total_connections"`
	ActiveConnections int       `json:"active_connections"`
	MessagesSent      int64     `json:"messages_sent"`
	DroppedClients    int64     `json:"dropped_clients"`
	LastActivity      time.Time `json:"last_activity"`
}

// Hub fans catalog events out to every registered client. A client whose
// buffer is full is dropped instead of blocking the others.
type Hub struct {
	clients map[*Client]struct{}

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}

	log *zap.Logger

	stats   HubStats
	statsMu sync.RWMutex
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run processes registrations and broadcasts until ctx is cancelled or Close
// is called. Remaining clients are closed on exit.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.closeAll()

	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.updateStats(func(s *HubStats) {
				s.TotalConnections++
				s.ActiveConnections = len(h.clients)
				s.LastActivity = time.Now()
			})
			h.log.Debug("live client registered", zap.String("client_id", client.ID))

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			h.deliver(message)

		case <-ctx.Done():
			return

		case <-h.quit:
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	client.close()
	h.updateStats(func(s *HubStats) {
		s.ActiveConnections = len(h.clients)
	})
	h.log.Debug("live client unregistered", zap.String("client_id", client.ID))
}

func (h *Hub) deliver(message []byte) {
	sent := 0
	for client := range h.clients {
		select {
		case client.send <- message:
			sent++
		default:
			h.log.Warn("live client too slow, dropping", zap.String("client_id", client.ID))
			h.remove(client)
			h.updateStats(func(s *HubStats) { s.DroppedClients++ })
		}
	}
	h.updateStats(func(s *HubStats) {
		s.MessagesSent += int64(sent)
		s.LastActivity = time.Now()
	})
}

func (h *Hub) closeAll() {
	for client := range h.clients {
		delete(h.clients, client)
		client.close()
	}
	h.updateStats(func(s *HubStats) { s.ActiveConnections = 0 })
}

// Register adds client. It returns ErrHubStopped once the hub has exited.
func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// Unregister removes client; a no-op after the hub stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues a raw frame for every client.
func (h *Hub) Broadcast(message []byte) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	select {
	case h.broadcast <- message:
		return nil
	default:
		return ErrHubBusy
	}
}

// Publish implements events.Publisher.
func (h *Hub) Publish(_ context.Context, e events.Event) error {
	data, err := NewCatalogMessage(e)
	if err != nil {
		return err
	}
	return h.Broadcast(data)
}

// Close stops Run. It does not wait for it to return; use Done for that.
func (h *Hub) Close() error {
	h.quitOnce.Do(func() { close(h.quit) })
	return nil
}

// Done is closed after Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) Stats() HubStats {
	h.statsMu.RLock()
	defer h.statsMu.RUnlock()
	return h.stats
}

func (h *Hub) updateStats(fn func(*HubStats)) {
	h.statsMu.Lock()
	defer h.statsMu.Unlock()
	fn(&h.stats)
}

var _ events.Publisher = (*Hub)(nil)
