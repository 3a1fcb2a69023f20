// Package eventbus provides the messaging layer between the activator,
// the workers, and the API.
package eventbus

import (
	"context"

	"github.com/foreman-hq/foreman/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

// StatusEventHandler is called for each domain status change consumed from
// the status topic.
type StatusEventHandler func(ctx context.Context, event *events.StatusChanged) error

// StatusEventBus carries the StatusChanged events published by the CRUD
// layer. The activator is its only subscriber.
type StatusEventBus interface {
	PublishStatusChanged(ctx context.Context, event *events.StatusChanged) error
	HandleStatusChanges(handler StatusEventHandler) error
	SubscribeToStatusChanges(ctx context.Context) error
	Close() error
}
