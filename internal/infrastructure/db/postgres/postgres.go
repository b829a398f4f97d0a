package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const defaultTimeout = 10 * time.Second

// Config captures the settings for establishing a PostgreSQL connection.
type Config struct {
	DSN     string
	Timeout time.Duration
}

// Connect opens a connection pool and validates it with a ping.
func Connect(ctx context.Context, cfg Config) (*sql.DB, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         VARCHAR(255) NOT NULL UNIQUE,
	first_name    VARCHAR(30)  NOT NULL DEFAULT '',
	last_name     VARCHAR(30)  NOT NULL DEFAULT '',
	password_hash TEXT         NOT NULL,
	is_staff      BOOLEAN      NOT NULL DEFAULT FALSE,
	is_active     BOOLEAN      NOT NULL DEFAULT TRUE,
	is_superuser  BOOLEAN      NOT NULL DEFAULT FALSE,
	group_names   TEXT[]       NOT NULL DEFAULT '{}',
	permissions   TEXT[]       NOT NULL DEFAULT '{}',
	last_login    TIMESTAMPTZ,
	date_joined   TIMESTAMPTZ  NOT NULL,
	version       BIGINT       NOT NULL DEFAULT 0
);

ALTER TABLE users ADD COLUMN IF NOT EXISTS version BIGINT NOT NULL DEFAULT 0;

CREATE TABLE IF NOT EXISTS auth_groups (
	name        VARCHAR(150) PRIMARY KEY,
	permissions TEXT[] NOT NULL DEFAULT '{}'
);
`

// EnsureSchema creates the account tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
