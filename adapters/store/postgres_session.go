package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/layer-3/payroll-auth/core"
	"github.com/layer-3/payroll-auth/ports"
)

const sessionColumns = `id, token_hash, user_id, wallet_address, family_id, issued_at, expires_at, revoked, revoked_at, revoke_reason`

// PostgresSessionStore persists refresh sessions in the refresh_sessions table
type PostgresSessionStore struct {
	db *sqlx.DB
}

// NewPostgresSessionStore creates a session store on an open database
func NewPostgresSessionStore(db *sqlx.DB) ports.SessionStore {
	return &PostgresSessionStore{db: db}
}

func (s *PostgresSessionStore) Save(ctx context.Context, session core.RefreshSession) error {
	const query = `INSERT INTO refresh_sessions (` + sessionColumns + `) VALUES (:id, :token_hash, :user_id, :wallet_address, :family_id, :issued_at, :expires_at, :revoked, :revoked_at, :revoke_reason)`
	if _, err := s.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresSessionStore) FindByHash(ctx context.Context, hash string) (core.RefreshSession, error) {
	const query = `SELECT ` + sessionColumns + ` FROM refresh_sessions WHERE token_hash = $1 LIMIT 1`
	var session core.RefreshSession
	if err := s.db.GetContext(ctx, &session, query, hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.RefreshSession{}, core.ErrSessionNotFound
		}
		return core.RefreshSession{}, fmt.Errorf("find refresh session: %w", err)
	}
	return session, nil
}

// MarkRevoked relies on the revoked = FALSE guard: of two concurrent updates
// only one affects the row.
func (s *PostgresSessionStore) MarkRevoked(ctx context.Context, hash string, reason core.RevokeReason, at time.Time) (bool, error) {
	const query = `UPDATE refresh_sessions SET revoked = TRUE, revoked_at = $2, revoke_reason = $3 WHERE token_hash = $1 AND revoked = FALSE`
	n, err := s.exec(ctx, query, hash, at, string(reason))
	if err != nil {
		return false, fmt.Errorf("revoke refresh session: %w", err)
	}
	return n == 1, nil
}

func (s *PostgresSessionStore) MarkAllRevokedForUser(ctx context.Context, userID string, reason core.RevokeReason, at time.Time) (int, error) {
	const query = `UPDATE refresh_sessions SET revoked = TRUE, revoked_at = $2, revoke_reason = $3 WHERE user_id = $1 AND revoked = FALSE`
	n, err := s.exec(ctx, query, userID, at, string(reason))
	if err != nil {
		return 0, fmt.Errorf("revoke user refresh sessions: %w", err)
	}
	return int(n), nil
}

func (s *PostgresSessionStore) MarkFamilyRevoked(ctx context.Context, familyID string, reason core.RevokeReason, at time.Time) (int, error) {
	const query = `UPDATE refresh_sessions SET revoked = TRUE, revoked_at = $2, revoke_reason = $3 WHERE family_id = $1 AND revoked = FALSE`
	n, err := s.exec(ctx, query, familyID, at, string(reason))
	if err != nil {
		return 0, fmt.Errorf("revoke refresh session family: %w", err)
	}
	return int(n), nil
}

// Sweep deletes rows more than sessionRetention past their expiry
func (s *PostgresSessionStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	const query = `DELETE FROM refresh_sessions WHERE expires_at < $1`
	n, err := s.exec(ctx, query, now.Add(-sessionRetention))
	if err != nil {
		return 0, fmt.Errorf("sweep refresh sessions: %w", err)
	}
	return int(n), nil
}

func (s *PostgresSessionStore) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
