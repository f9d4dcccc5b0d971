package users

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/layer-3/payroll-auth/ports"
)

// PostgresDirectory maps wallets to users in the wallet_users table
type PostgresDirectory struct {
	db *sqlx.DB
}

// NewPostgresDirectory creates a user directory on an open database
func NewPostgresDirectory(db *sqlx.DB) ports.UserDirectory {
	return &PostgresDirectory{db: db}
}

// FindOrCreateByWallet upserts the wallet row and returns its ID. The no-op
// update makes RETURNING yield the existing row on conflict.
func (d *PostgresDirectory) FindOrCreateByWallet(ctx context.Context, address string) (string, error) {
	const query = `INSERT INTO wallet_users (id, wallet_address) VALUES ($1, $2) ON CONFLICT (wallet_address) DO UPDATE SET wallet_address = EXCLUDED.wallet_address RETURNING id`
	var id string
	if err := d.db.GetContext(ctx, &id, query, uuid.NewString(), address); err != nil {
		return "", fmt.Errorf("find or create wallet user: %w", err)
	}
	return id, nil
}
