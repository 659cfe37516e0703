package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"phone-auth-service/internal/client"
	"phone-auth-service/internal/util"
)

const (
	EventFailureRecorded = "failure_recorded"
	EventBlockApplied    = "block_applied"
	EventUserRegistered  = "user_registered"
	EventLoginSucceeded  = "login_succeeded"
)

// SecurityEvent is the audit record emitted for every notable step of the
// authentication flow.
type SecurityEvent struct {
	EventType       string    `json:"event_type"`
	IdentifierKind  string    `json:"identifier_kind,omitempty"`
	IdentifierValue string    `json:"identifier_value,omitempty"`
	UserID          string    `json:"user_id,omitempty"`
	FailureCount    int       `json:"failure_count,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// EventPublisher delivers security events to an external sink. Publishing is
// best-effort: a sink failure must never fail the request that produced the
// event.
type EventPublisher interface {
	Publish(ctx context.Context, event SecurityEvent)
}

// KafkaEventPublisher writes security events to a Kafka topic.
type KafkaEventPublisher struct {
	producer *client.KafkaProducer
	topic    string
}

func NewKafkaEventPublisher(producer *client.KafkaProducer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		producer: producer,
		topic:    topic,
	}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, event SecurityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		util.Error("Failed to marshal security event",
			zap.String("event_type", event.EventType),
			zap.Error(err))
		return
	}

	key := []byte(event.IdentifierValue)
	if len(key) == 0 {
		key = []byte(event.UserID)
	}

	if err := p.producer.ProduceMessage(ctx, p.topic, key, value, nil); err != nil {
		util.Error("Failed to publish security event",
			zap.String("event_type", event.EventType),
			zap.Error(err))
	}
}

// NoopEventPublisher is used when Kafka is disabled or unavailable.
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(context.Context, SecurityEvent) {}
