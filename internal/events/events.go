// Package events publishes catalog change notifications.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Type names a catalog change.
type Type string

const (
	ProductCreated     Type = "product.created"
	ProductUpdated     Type = "product.updated"
	ProductDeleted     Type = "product.deleted"
	CategoryCreated    Type = "category.created"
	CategoryDeleted    Type = "category.deleted"
	SubcategoryCreated Type = "subcategory.created"
	SubcategoryDeleted Type = "subcategory.deleted"
	CacheRevalidated   Type = "cache.revalidated"
)

// Event is a single catalog change.
type Event struct {
	ID        string      `json:"id"`
	Type      Type        `json:"type"`
	Entity    string      `json:"entity"`
	EntityID  string      `json:"entity_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// New stamps an event with a fresh id and the current time.
func New(t Type, entity, entityID string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Entity:    entity,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Publisher delivers events to interested parties.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NoOpPublisher drops every event.
type NoOpPublisher struct{}

func (NoOpPublisher) Publish(context.Context, Event) error { return nil }
func (NoOpPublisher) Close() error                         { return nil }

// LogPublisher writes events to the logger.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	p.log.Info("catalog event",
		zap.String("event_id", e.ID),
		zap.String("type", string(e.Type)),
		zap.String("entity", e.Entity),
		zap.String("entity_id", e.EntityID),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Fanout publishes every event to all publishers. Every publisher is tried;
// the errors are joined.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
