package live

import (
	"encoding/json"
	"time"

	"altessa/internal/events"
)

// MessageType identifies frames sent to storefront clients.
type MessageType string

const (
	MessageTypeCatalog MessageType = "catalog"
	MessageTypeWelcome MessageType = "welcome"
)

// ServerMessage is what the server pushes over the websocket.
type ServerMessage struct {
	Type      MessageType   `json:"type"`
	Event     *events.Event `json:"event,omitempty"`
	ClientID  string        `json:"client_id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewCatalogMessage wraps a catalog event.
func NewCatalogMessage(e events.Event) ([]byte, error) {
	return json.Marshal(ServerMessage{
		Type:      MessageTypeCatalog,
		Event:     &e,
		Timestamp: time.Now().UTC(),
	})
}

func newWelcomeMessage(clientID string) []byte {
	data, _ := json.Marshal(ServerMessage{
		Type:      MessageTypeWelcome,
		ClientID:  clientID,
		Timestamp: time.Now().UTC(),
	})
	return data
}
