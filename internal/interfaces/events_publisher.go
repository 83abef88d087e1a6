package interfaces

import "context"

// EventPublisher emits operator-facing events onto the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event any) error
}
