package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/payroll-auth/core"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestPostgresSessionStoreSave(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresSessionStore(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_sessions (id, token_hash")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Save(context.Background(), testSession("h1", "u1", "f1")))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_sessions")).
		WillReturnError(errors.New("duplicate key"))
	err := s.Save(context.Background(), testSession("h1", "u1", "f1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate key")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSessionStoreFindByHash(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresSessionStore(db)
	ctx := context.Background()
	want := testSession("h1", "u1", "f1")
	revokedAt := storeStart.Add(time.Minute)

	columns := []string{"id", "token_hash", "user_id", "wallet_address", "family_id", "issued_at", "expires_at", "revoked", "revoked_at", "revoke_reason"}
	query := regexp.QuoteMeta("FROM refresh_sessions WHERE token_hash = $1")

	mock.ExpectQuery(query).WithArgs("h1").WillReturnRows(
		sqlmock.NewRows(columns).AddRow(want.ID, want.TokenHash, want.UserID, want.Address, want.FamilyID,
			want.IssuedAt, want.ExpiresAt, true, revokedAt, "rotated"),
	)
	got, err := s.FindByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.FamilyID, got.FamilyID)
	assert.Equal(t, want.ExpiresAt, got.ExpiresAt)
	assert.True(t, got.Rotated())
	require.NotNil(t, got.RevokedAt)
	assert.Equal(t, revokedAt, *got.RevokedAt)

	mock.ExpectQuery(query).WithArgs("missing").WillReturnRows(sqlmock.NewRows(columns))
	_, err = s.FindByHash(ctx, "missing")
	require.ErrorIs(t, err, core.ErrSessionNotFound)

	mock.ExpectQuery(query).WithArgs("h2").WillReturnError(errors.New("connection reset"))
	_, err = s.FindByHash(ctx, "h2")
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrSessionNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSessionStoreMarkRevoked(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresSessionStore(db)
	ctx := context.Background()
	query := regexp.QuoteMeta("UPDATE refresh_sessions SET revoked = TRUE, revoked_at = $2, revoke_reason = $3 WHERE token_hash = $1 AND revoked = FALSE")

	mock.ExpectExec(query).WithArgs("h1", storeStart, "rotated").WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := s.MarkRevoked(ctx, "h1", core.RevokeReasonRotated, storeStart)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(query).WithArgs("h1", storeStart, "rotated").WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = s.MarkRevoked(ctx, "h1", core.RevokeReasonRotated, storeStart)
	require.NoError(t, err)
	assert.False(t, ok, "the row was already revoked")

	mock.ExpectExec(query).WillReturnError(errors.New("connection reset"))
	_, err = s.MarkRevoked(ctx, "h1", core.RevokeReasonLogout, storeStart)
	require.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSessionStoreBulkRevoke(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresSessionStore(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("WHERE user_id = $1 AND revoked = FALSE")).
		WithArgs("u1", storeStart, "logout_all").
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := s.MarkAllRevokedForUser(ctx, "u1", core.RevokeReasonLogoutAll, storeStart)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	mock.ExpectExec(regexp.QuoteMeta("WHERE family_id = $1 AND revoked = FALSE")).
		WithArgs("f1", storeStart, "reuse").
		WillReturnResult(sqlmock.NewResult(0, 2))
	n, err = s.MarkFamilyRevoked(ctx, "f1", core.RevokeReasonReuse, storeStart)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	mock.ExpectExec(regexp.QuoteMeta("WHERE family_id = $1")).WillReturnError(errors.New("timeout"))
	_, err = s.MarkFamilyRevoked(ctx, "f1", core.RevokeReasonReuse, storeStart)
	require.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSessionStoreSweep(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewPostgresSessionStore(db)
	now := storeStart.Add(30 * 24 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_sessions WHERE expires_at < $1")).
		WithArgs(now.Add(-sessionRetention)).
		WillReturnResult(sqlmock.NewResult(0, 5))
	n, err := s.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_sessions")).WillReturnError(errors.New("timeout"))
	_, err = s.Sweep(context.Background(), now)
	require.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}
