package users

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/layer-3/payroll-auth/ports"
)

// MemoryDirectory assigns a fresh UUID to each wallet the first time it logs in
type MemoryDirectory struct {
	users sync.Map // wallet address -> user ID
}

// NewMemoryDirectory creates an empty in-memory user directory
func NewMemoryDirectory() ports.UserDirectory {
	return &MemoryDirectory{}
}

func (d *MemoryDirectory) FindOrCreateByWallet(ctx context.Context, address string) (string, error) {
	if id, ok := d.users.Load(address); ok {
		return id.(string), nil
	}
	id, _ := d.users.LoadOrStore(address, uuid.NewString())
	return id.(string), nil
}
