// Package events publishes auth audit events to other services through
// Watermill. Production uses Redis Streams; tests use the in-memory channel.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/forkful/marketplace/internal/core/domain"
	"github.com/forkful/marketplace/internal/core/ports"
)

// DefaultTopic is the stream audit events go to unless configured otherwise.
const DefaultTopic = "marketplace.auth"

// AuditMessage is the wire shape of a published audit event.
type AuditMessage struct {
	Kind      string    `json:"kind"`
	AccountID string    `json:"account_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	At        time.Time `json:"at"`
}

// WatermillPublisher implements ports.AuditPublisher.
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

func NewWatermillPublisher(publisher message.Publisher, topic string) ports.AuditPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &WatermillPublisher{publisher: publisher, topic: topic}
}

// NewRedisStreamPublisher builds the Redis Streams publisher used in production.
func NewRedisStreamPublisher(rdb redis.UniversalClient, log zerolog.Logger) (message.Publisher, error) {
	pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: rdb}, NewLoggerAdapter(log))
	if err != nil {
		return nil, fmt.Errorf("create redis stream publisher: %w", err)
	}
	return pub, nil
}

func (p *WatermillPublisher) Publish(ctx context.Context, event domain.AuditEvent) error {
	payload, err := json.Marshal(AuditMessage{
		Kind:      string(event.Kind),
		AccountID: event.AccountID,
		Email:     event.Email,
		ActorID:   event.ActorID,
		IP:        event.IP,
		UserAgent: event.UserAgent,
		At:        event.At.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("kind", string(event.Kind))
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}
