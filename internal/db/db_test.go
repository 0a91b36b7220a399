package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/flightpath/pkg/config"
)

// openTestDB creates a migrated SQLite database in a temp directory.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := Connect(config.DatabaseConfig{
		Driver: DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "flightpath.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, database.Migrate())
	return database
}

func TestConnect_SQLite(t *testing.T) {
	database := openTestDB(t)

	assert.Equal(t, DriverSQLite, database.Driver())
	assert.True(t, HealthCheck(database))
}

func TestConnect_DefaultsToSQLite(t *testing.T) {
	database, err := Connect(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "default.db")})
	require.NoError(t, err)
	defer database.Close()

	assert.Equal(t, DriverSQLite, database.Driver())
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "mysql"})
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestMigrate_Idempotent(t *testing.T) {
	database := openTestDB(t)

	require.NoError(t, database.Migrate())

	version, dirty, err := database.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestRebind(t *testing.T) {
	sqlite := &DB{config: config.DatabaseConfig{Driver: DriverSQLite}}
	pg := &DB{config: config.DatabaseConfig{Driver: DriverPostgres}}

	q := `SELECT * FROM runs WHERE id = ? AND created_at < ?`
	assert.Equal(t, q, sqlite.rebind(q))
	assert.Equal(t, `SELECT * FROM runs WHERE id = $1 AND created_at < $2`, pg.rebind(q))
}

func TestGetStats_Empty(t *testing.T) {
	database := openTestDB(t)

	stats, err := database.GetStats(context.Background())
	require.NoError(t, err)

	for _, key := range []string{"runs", "comparisons", "failed_comparisons", "deviation_records"} {
		assert.Equal(t, int64(0), stats[key], key)
	}
	assert.NotContains(t, stats, "latest_run")
	assert.Equal(t, DriverSQLite, stats["driver"])
}

func TestHealthCheck_Nil(t *testing.T) {
	assert.False(t, HealthCheck(nil))
}

func TestWithRetry(t *testing.T) {
	retryDelay = time.Millisecond
	t.Cleanup(func() { retryDelay = time.Second })

	t.Run("retries connection errors", func(t *testing.T) {
		calls := 0
		err := WithRetry(func() error {
			calls++
			if calls < 3 {
				return errors.New("dial tcp: connection refused")
			}
			return nil
		}, 3)
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := WithRetry(func() error {
			calls++
			return errors.New("read: connection reset by peer")
		}, 2)
		assert.ErrorContains(t, err, "connection reset")
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry other errors", func(t *testing.T) {
		calls := 0
		err := WithRetry(func() error {
			calls++
			return errors.New("UNIQUE constraint failed: runs.id")
		}, 5)
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestReconnectWithRetry_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReconnectWithRetry(ctx, config.DatabaseConfig{Driver: "mysql"}, 0, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
}
