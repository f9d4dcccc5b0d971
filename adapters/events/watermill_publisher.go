package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/payroll-auth/ports"
)

const (
	TypeLogin        = "login"
	TypeLogout       = "logout"
	TypeLogoutAll    = "logout_all"
	TypeRefreshReuse = "refresh_reuse"

	DefaultTopicPrefix = "payroll-auth"
)

// AuthEvent is the payload of every published auth event
type AuthEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Address    string    `json:"address,omitempty"`
	FamilyID   string    `json:"family_id,omitempty"`
	TokenHash  string    `json:"token_hash,omitempty"`
	Revoked    int       `json:"revoked,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher   message.Publisher
	topicPrefix string
	now         func() time.Time
}

// NewWatermillPublisher creates a new Watermill publisher. Events go to
// "<topicPrefix>.<type>".
func NewWatermillPublisher(publisher message.Publisher, topicPrefix string) ports.EventPublisher {
	if topicPrefix == "" {
		topicPrefix = DefaultTopicPrefix
	}
	return &WatermillPublisher{
		publisher:   publisher,
		topicPrefix: topicPrefix,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Topic returns the topic events of type eventType are published to
func Topic(topicPrefix, eventType string) string {
	return topicPrefix + "." + eventType
}

func (p *WatermillPublisher) PublishLogin(ctx context.Context, userID, address, familyID string) error {
	return p.publish(ctx, AuthEvent{Type: TypeLogin, UserID: userID, Address: address, FamilyID: familyID})
}

func (p *WatermillPublisher) PublishLogout(ctx context.Context, userID, familyID string) error {
	return p.publish(ctx, AuthEvent{Type: TypeLogout, UserID: userID, FamilyID: familyID})
}

func (p *WatermillPublisher) PublishLogoutAll(ctx context.Context, userID string, revoked int) error {
	return p.publish(ctx, AuthEvent{Type: TypeLogoutAll, UserID: userID, Revoked: revoked})
}

func (p *WatermillPublisher) PublishRefreshReuse(ctx context.Context, userID, familyID, tokenHash string) error {
	return p.publish(ctx, AuthEvent{Type: TypeRefreshReuse, UserID: userID, FamilyID: familyID, TokenHash: tokenHash})
}

func (p *WatermillPublisher) publish(ctx context.Context, event AuthEvent) error {
	event.OccurredAt = p.now()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(Topic(p.topicPrefix, event.Type), msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

type noopPublisher struct{}

// NewNoopPublisher returns a publisher that drops every event
func NewNoopPublisher() ports.EventPublisher {
	return noopPublisher{}
}

func (noopPublisher) PublishLogin(context.Context, string, string, string) error { return nil }
func (noopPublisher) PublishLogout(context.Context, string, string) error { return nil }
func (noopPublisher) PublishLogoutAll(context.Context, string, int) error { return nil }
func (noopPublisher) PublishRefreshReuse(context.Context, string, string, string) error { return nil }
