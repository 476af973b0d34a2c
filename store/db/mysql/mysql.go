package mysql

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"github.com/murmurchat/murmur/internal/profile"
	"github.com/murmurchat/murmur/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	// Open MySQL connection with parameter.
	// multiStatements=true is required for migration.
	// See more in: https://github.com/go-sql-driver/mysql#multistatements
	dsn, err := mergeDSN(profile.DSN)
	if err != nil {
		return nil, err
	}

	driver := DB{profile: profile}
	driver.db, err = sql.Open("mysql", dsn)
	if err != nil {
		slog.Error("failed to open database", slog.String("error", err.Error()))
		return nil, errors.Wrapf(err, "failed to open db: %s", profile.DSN)
	}
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
		"CREATE TABLE IF NOT EXISTS `users` (" +
			"`id` INT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
			"`username` VARCHAR(64) NULL UNIQUE," +
			"`email` VARCHAR(256) NOT NULL UNIQUE," +
			"`password_hash` VARCHAR(256) NOT NULL DEFAULT ''," +
			"`needs_username` BOOLEAN NOT NULL DEFAULT FALSE," +
			"`created_ts` BIGINT NOT NULL," +
			"`updated_ts` BIGINT NOT NULL" +
			")",
		"CREATE TABLE IF NOT EXISTS `chats` (" +
			"`id` INT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
			"`user_id` INT NOT NULL," +
			"`thread_id` VARCHAR(64) NOT NULL," +
			"`message` TEXT NOT NULL," +
			"`response` TEXT NOT NULL," +
			"`created_ts` BIGINT NOT NULL," +
			"INDEX `idx_chats_thread_id` (`thread_id`)," +
			"INDEX `idx_chats_created_ts` (`created_ts`)," +
			"CONSTRAINT `fk_chats_user` FOREIGN KEY (`user_id`) REFERENCES `users`(`id`) ON DELETE CASCADE" +
			")",
	}
	for _, s := range stmts {
		if _, err := d.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func mergeDSN(baseDSN string) (string, error) {
	config, err := mysql.ParseDSN(baseDSN)
	if err != nil {
		return "", errors.Wrapf(err, "failed to parse DSN: %s", baseDSN)
	}

	config.MultiStatements = true
	return config.FormatDSN(), nil
}

// convertError maps duplicate key errors to store.ErrConflict.
func convertError(err error) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return errors.Wrap(store.ErrConflict, mysqlErr.Message)
	}
	return err
}
