package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Migrations create the tables behind the Postgres session store and user directory.
// Each statement is idempotent.
var Migrations = []string{
	`CREATE TABLE IF NOT EXISTS wallet_users (
		id UUID PRIMARY KEY,
		wallet_address TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_sessions (
		id UUID PRIMARY KEY,
		token_hash CHAR(64) NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		wallet_address TEXT NOT NULL,
		family_id UUID NOT NULL,
		issued_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		revoked BOOLEAN NOT NULL DEFAULT FALSE,
		revoked_at TIMESTAMPTZ,
		revoke_reason TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS refresh_sessions_user_active_idx ON refresh_sessions (user_id) WHERE revoked = FALSE`,
	`CREATE INDEX IF NOT EXISTS refresh_sessions_family_idx ON refresh_sessions (family_id)`,
	`CREATE INDEX IF NOT EXISTS refresh_sessions_expires_idx ON refresh_sessions (expires_at)`,
}

// NewPostgres opens and pings a PostgreSQL connection pool
func NewPostgres(ctx context.Context, dsn string, maxOpenConns int) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns / 2)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate applies Migrations in order
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range Migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
