package ports

import (
	"context"
	"time"
)

// UserDirectory resolves wallet addresses to platform users
type UserDirectory interface {
	FindOrCreateByWallet(ctx context.Context, address string) (string, error)
}

// Clock is the time source for every expiry decision
type Clock interface {
	Now() time.Time
}
