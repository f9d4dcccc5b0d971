package ports

import "context"

// EventPublisher publishes auth lifecycle events to other services
type EventPublisher interface {
	PublishLogin(ctx context.Context, userID, address, familyID string) error
	PublishLogout(ctx context.Context, userID, familyID string) error
	PublishLogoutAll(ctx context.Context, userID string, revoked int) error
	PublishRefreshReuse(ctx context.Context, userID, familyID, tokenHash string) error
}
