package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var migrationMarkers = []string{
	"CREATE TABLE IF NOT EXISTS wallet_users",
	"CREATE TABLE IF NOT EXISTS refresh_sessions",
	"CREATE INDEX IF NOT EXISTS refresh_sessions_user_active_idx",
	"CREATE INDEX IF NOT EXISTS refresh_sessions_family_idx",
	"CREATE INDEX IF NOT EXISTS refresh_sessions_expires_idx",
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	require.Len(t, Migrations, len(migrationMarkers))
	for _, marker := range migrationMarkers {
		mock.ExpectExec(regexp.QuoteMeta(marker)).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, Migrate(context.Background(), sqlx.NewDb(db, "postgres")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateStopsOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(migrationMarkers[0])).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(migrationMarkers[1])).WillReturnError(errors.New("permission denied"))

	err = Migrate(context.Background(), sqlx.NewDb(db, "postgres"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration 1")
	assert.Contains(t, err.Error(), "permission denied")
	require.NoError(t, mock.ExpectationsWereMet())
}
