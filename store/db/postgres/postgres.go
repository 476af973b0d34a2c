package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/murmurchat/murmur/internal/profile"
	"github.com/murmurchat/murmur/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	// Open the PostgreSQL connection
	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		slog.Error("failed to open database", slog.String("error", err.Error()))
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	var driver store.Driver = &DB{
		db:      db,
		profile: profile,
	}

	// Return the DB struct
	return driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id             SERIAL PRIMARY KEY,
			username       TEXT    UNIQUE,
			email          TEXT    NOT NULL UNIQUE,
			password_hash  TEXT    NOT NULL DEFAULT '',
			needs_username BOOLEAN NOT NULL DEFAULT FALSE,
			created_ts     BIGINT  NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW()),
			updated_ts     BIGINT  NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())
		)`,
		`CREATE TABLE IF NOT EXISTS chats (
			id         SERIAL PRIMARY KEY,
			user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			thread_id  TEXT    NOT NULL,
			message    TEXT    NOT NULL,
			response   TEXT    NOT NULL,
			created_ts BIGINT  NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chats_thread_id ON chats(thread_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chats_created_ts ON chats(created_ts)`,
	}
	for _, s := range stmts {
		if _, err := d.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func placeholder(n int) string {
	return "$" + fmt.Sprint(n)
}

// convertError maps unique violations to store.ErrConflict.
func convertError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return errors.Wrap(store.ErrConflict, pqErr.Constraint)
	}
	return err
}
