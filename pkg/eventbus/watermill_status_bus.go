package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/foreman-hq/foreman/pkg/events"
)

// WatermillStatusBus is the watermill-backed StatusEventBus. The status
// topic carries a single payload type, so there is no event-type switch.
type WatermillStatusBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	handler    StatusEventHandler
}

func NewWatermillStatusBus(pub message.Publisher, sub message.Subscriber) StatusEventBus {
	return &WatermillStatusBus{
		publisher:  pub,
		subscriber: sub,
	}
}

func (b *WatermillStatusBus) PublishStatusChanged(ctx context.Context, event *events.StatusChanged) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("refusing to publish invalid status change: %w", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+watermill.NewULID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, string(event.EntityType)+":"+event.EntityID)

	return b.publisher.Publish(events.StatusTopic, msg)
}

func (b *WatermillStatusBus) HandleStatusChanges(handler StatusEventHandler) error {
	b.handler = handler

	return nil
}

func (b *WatermillStatusBus) SubscribeToStatusChanges(ctx context.Context) error {
	messages, err := b.subscriber.Subscribe(ctx, events.StatusTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			if b.handler == nil {
				msg.Ack()

				continue
			}

			event := &events.StatusChanged{}
			if err := json.Unmarshal(msg.Payload, event); err != nil {
				msg.Nack()

				continue
			}

			if err := b.handler(ctx, event); err != nil {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func (b *WatermillStatusBus) Close() error {
	err := b.publisher.Close()
	if err != nil {
		return err
	}

	return b.subscriber.Close()
}
