package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/murmurchat/murmur/internal/profile"
	"github.com/murmurchat/murmur/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a database specified by its database driver name and a
// driver-specific data source name, usually consisting of at least a
// database name and connection information.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	// Ensure a DSN is set before attempting to open the database.
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// Connect to the database with some sane settings:
	// - No shared-cache: it's obsolete; WAL journal mode is a better solution.
	// - Foreign key constraints enforced so deleting a user cascades to its chats.
	// - Busy timeout set so that concurrent writers wait instead of failing.
	sqliteDB, err := sql.Open("sqlite", profile.DSN+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	driver := DB{db: sqliteDB, profile: profile}

	return &driver, nil
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
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			username       TEXT    UNIQUE,
			email          TEXT    NOT NULL UNIQUE,
			password_hash  TEXT    NOT NULL DEFAULT '',
			needs_username INTEGER NOT NULL DEFAULT 0,
			created_ts     BIGINT  NOT NULL DEFAULT (strftime('%s', 'now')),
			updated_ts     BIGINT  NOT NULL DEFAULT (strftime('%s', 'now'))
		)`,
		`CREATE TABLE IF NOT EXISTS chats (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
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

// convertError maps unique constraint failures to store.ErrConflict.
func convertError(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return errors.Wrap(store.ErrConflict, err.Error())
	}
	return err
}
