package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLBackend stores tokens in the client_tokens table of a SQLite or
// Postgres database. The schema comes from MigrateSQLite or MigratePostgres.
type SQLBackend struct {
	db     *sql.DB
	name   string
	getSQL string
	setSQL string
	delSQL string
}

func NewSQLiteBackend(db *sql.DB) *SQLBackend {
	return &SQLBackend{
		db:     db,
		name:   "sqlite",
		getSQL: `SELECT value FROM client_tokens WHERE client_id = ? AND token_key = ?`,
		setSQL: `INSERT INTO client_tokens (client_id, token_key, value, updated_at)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT (client_id, token_key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		delSQL: `DELETE FROM client_tokens WHERE client_id = ? AND token_key = ?`,
	}
}

func NewPostgresBackend(db *sql.DB) *SQLBackend {
	return &SQLBackend{
		db:     db,
		name:   "postgres",
		getSQL: `SELECT value FROM client_tokens WHERE client_id = $1 AND token_key = $2`,
		setSQL: `INSERT INTO client_tokens (client_id, token_key, value, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (client_id, token_key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		delSQL: `DELETE FROM client_tokens WHERE client_id = $1 AND token_key = $2`,
	}
}

func (b *SQLBackend) Name() string { return b.name }

func (b *SQLBackend) Get(ctx context.Context, clientID string, key Key) (string, error) {
	var value string
	err := b.db.QueryRowContext(ctx, b.getSQL, clientID, string(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%s: get %s: %w", b.name, key, err)
	}
	return value, nil
}

func (b *SQLBackend) Set(ctx context.Context, clientID string, key Key, value string) error {
	if _, err := b.db.ExecContext(ctx, b.setSQL, clientID, string(key), value); err != nil {
		return fmt.Errorf("%s: set %s: %w", b.name, key, err)
	}
	return nil
}

func (b *SQLBackend) Delete(ctx context.Context, clientID string, key Key) error {
	if _, err := b.db.ExecContext(ctx, b.delSQL, clientID, string(key)); err != nil {
		return fmt.Errorf("%s: delete %s: %w", b.name, key, err)
	}
	return nil
}

func (b *SQLBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}
