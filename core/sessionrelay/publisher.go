package sessionrelay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrymomot/fleet/core/backplane"
)

// Publisher stamps messages with the instance id and time and publishes them as JSON.
type Publisher struct {
	ps         backplane.PubSub
	instanceID string
	now        func() time.Time
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithPublisherClock overrides the timestamp source.
func WithPublisherClock(now func() time.Time) PublisherOption {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPublisher creates a publisher for instanceID.
func NewPublisher(ps backplane.PubSub, instanceID string, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		ps:         ps,
		instanceID: instanceID,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// InstanceID returns the id stamped on every message.
func (p *Publisher) InstanceID() string { return p.instanceID }

// Publish stamps msg and publishes it on channel.
func (p *Publisher) Publish(ctx context.Context, channel string, msg Message) error {
	msg.InstanceID = p.instanceID
	msg.Timestamp = p.now().UnixMilli()

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", channel, err)
	}
	return p.ps.Publish(ctx, channel, data)
}

// SessionCreated publishes on ChannelSessionCreated.
func (p *Publisher) SessionCreated(ctx context.Context, sessionID, userID string) error {
	return p.Publish(ctx, ChannelSessionCreated, Message{SessionID: sessionID, UserID: userID})
}

// SessionDestroyed publishes on ChannelSessionDestroyed.
func (p *Publisher) SessionDestroyed(ctx context.Context, sessionID, userID string) error {
	return p.Publish(ctx, ChannelSessionDestroyed, Message{SessionID: sessionID, UserID: userID})
}

// SessionInvalidated publishes on ChannelSessionInvalidated.
func (p *Publisher) SessionInvalidated(ctx context.Context, sessionID, userID string) error {
	return p.Publish(ctx, ChannelSessionInvalidated, Message{SessionID: sessionID, UserID: userID})
}

// UserSessionsInvalidated publishes the summary of a bulk invalidation.
func (p *Publisher) UserSessionsInvalidated(ctx context.Context, userID, exceptSessionID string, count int) error {
	return p.Publish(ctx, ChannelUserSessionsInvalidated, Message{
		UserID:          userID,
		ExceptSessionID: exceptSessionID,
		Count:           count,
	})
}

// Broadcast publishes an application-defined message on ChannelBroadcastMessage.
// payload is encoded as JSON.
func (p *Publisher) Broadcast(ctx context.Context, typ string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode broadcast payload: %w", err)
	}
	return p.Publish(ctx, ChannelBroadcastMessage, Message{Type: typ, Payload: raw})
}
