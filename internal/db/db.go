package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/unklstewy/flightpath/pkg/config"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB wraps a database connection with helper methods.
type DB struct {
	*sql.DB
	config config.DatabaseConfig
}

// Connect opens the configured database and verifies it with a ping.
// SQLite (the default) stores everything in a single file; PostgreSQL is
// used for shared deployments of the report server.
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	var (
		sqlDB *sql.DB
		err   error
	)

	switch cfg.Driver {
	case "", DriverSQLite:
		cfg.Driver = DriverSQLite
		sqlDB, err = sql.Open("sqlite", sqliteDSN(cfg.Path))
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		// A single connection serializes writers; busy_timeout covers other
		// processes holding the file.
		sqlDB.SetMaxOpenConns(1)

	case DriverPostgres:
		connStr := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host,
			cfg.Port,
			cfg.Username,
			cfg.Password,
			cfg.Database,
			cfg.SSLMode,
		)
		sqlDB, err = sql.Open("postgres", connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Hour)

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: sqlDB, config: cfg}, nil
}

func sqliteDSN(path string) string {
	if path == "" {
		path = "flightpath.db"
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

// Driver returns the normalized driver name.
func (db *DB) Driver() string {
	return db.config.Driver
}

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL. Queries in
// this package never contain a literal question mark.
func (db *DB) rebind(query string) string {
	if db.config.Driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// GetStats returns database statistics.
func (db *DB) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	counts := []struct {
		key   string
		query string
	}{
		{"runs", `SELECT COUNT(*) FROM runs`},
		{"comparisons", `SELECT COUNT(*) FROM comparisons`},
		{"failed_comparisons", `SELECT COUNT(*) FROM comparisons WHERE error <> ''`},
		{"deviation_records", `SELECT COUNT(*) FROM deviations`},
	}
	for _, c := range counts {
		var n int64
		if err := db.QueryRowContext(ctx, c.query).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.key, err)
		}
		stats[c.key] = n
	}

	var latest sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(created_at) FROM runs`).Scan(&latest); err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}
	if latest.Valid {
		stats["latest_run"] = time.Unix(latest.Int64, 0).UTC().Format(time.RFC3339)
	}

	stats["driver"] = db.config.Driver
	return stats, nil
}
