package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/namthanhstores/storefront-backend/pkg/enums"
)

// StatusChangedEvent is emitted after a transition commits.
type StatusChangedEvent struct {
	OrderID    string            `json:"order_id"`
	UserID     string            `json:"user_id"`
	Action     enums.OrderAction `json:"action"`
	From       enums.OrderStatus `json:"from"`
	To         enums.OrderStatus `json:"to"`
	ActorID    string            `json:"actor_id"`
	ActorRole  enums.Role        `json:"actor_role"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// EventPublisher announces committed order changes.
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, event StatusChangedEvent) error
}

type topicPublisher interface {
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
}

// PubSubPublisher sends status changes to a Pub/Sub topic.
type PubSubPublisher struct {
	client topicPublisher
	topic  string
}

// NewPubSubPublisher builds a publisher for topic.
func NewPubSubPublisher(client topicPublisher, topic string) (*PubSubPublisher, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client required")
	}
	if topic == "" {
		return nil, fmt.Errorf("orders topic required")
	}
	return &PubSubPublisher{client: client, topic: topic}, nil
}

func (p *PubSubPublisher) PublishStatusChanged(ctx context.Context, event StatusChangedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}
	_, err = p.client.Publish(ctx, p.topic, payload, map[string]string{
		"event_type": "order.status_changed",
		"order_id":   event.OrderID,
		"status":     event.To.String(),
	})
	return err
}

type noopPublisher struct{}

func (noopPublisher) PublishStatusChanged(context.Context, StatusChangedEvent) error { return nil }
