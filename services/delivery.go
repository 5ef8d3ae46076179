package services

import (
	"context"

	"OrgVerify/models"
	"OrgVerify/realtime"
)

// Deliverer pushes events to live connections. Implemented by realtime.Hub.
type Deliverer interface {
	DeliverToActor(ref models.ActorRef, ev realtime.Event) int
	DeliverToBroadcast(ev realtime.Event) int
}

// EventPublisher emits domain events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, string, interface{}) error { return nil }

// NoopPublisher is used when no broker is configured.
var NoopPublisher EventPublisher = noopPublisher{}

// Domain event keys published to the broker.
const (
	EventMessageSent         = "message.sent"
	EventNotificationCreated = "notification.created"
)

type DomainEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
