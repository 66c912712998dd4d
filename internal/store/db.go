// Package store opens the read-only wiki replica that category queries run against.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cattools/cattools/internal/store/query"
)

// Supported database/sql driver names
const (
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config holds replica connection and pool configuration
type Config struct {
	Driver string
	DSN    string
	Prefix string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// DefaultConfig returns pool settings suited to a shared replica
func DefaultConfig() Config {
	return Config{
		Driver:          DriverPgx,
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// DB is a replica handle together with the schema it serves
type DB struct {
	*sql.DB
	Schema Schema
}

// DialectFor maps a driver name to its placeholder dialect
func DialectFor(driverName string) (query.Dialect, error) {
	switch driverName {
	case DriverPgx, DriverPostgres:
		return query.DialectPostgres, nil
	case DriverSQLite:
		return query.DialectSQLite, nil
	default:
		return 0, fmt.Errorf("unsupported database driver %q", driverName)
	}
}

// Open connects to the replica, configures the pool and pings it
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	schema := Schema{Prefix: cfg.Prefix, Dialect: dialect}
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := configurePool(ctx, db, cfg); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{DB: db, Schema: schema}, nil
}

// Wrap adopts an already opened *sql.DB
func Wrap(db *sql.DB, schema Schema) *DB {
	return &DB{DB: db, Schema: schema}
}

// configurePool configures the database connection pool
func configurePool(ctx context.Context, db *sql.DB, cfg Config) error {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to ping database: %w", ConvertDBError(err))
	}

	return nil
}
