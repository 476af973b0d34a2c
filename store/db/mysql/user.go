package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/murmurchat/murmur/store"
)

func (d *DB) CreateUser(ctx context.Context, create *store.User) (*store.User, error) {
	now := time.Now().Unix()
	stmt := "INSERT INTO `users` (`username`, `email`, `password_hash`, `needs_username`, `created_ts`, `updated_ts`) VALUES (?, ?, ?, ?, ?, ?)"
	result, err := d.db.ExecContext(ctx, stmt,
		nullableString(create.Username), create.Email, create.PasswordHash, create.NeedsUsername, now, now,
	)
	if err != nil {
		return nil, convertError(err)
	}
	rawID, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	create.ID = int32(rawID)
	create.CreatedTs, create.UpdatedTs = now, now
	return create, nil
}

func (d *DB) ListUsers(ctx context.Context, find *store.FindUser) ([]*store.User, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "`id` = ?"), append(args, *v)
	}
	if v := find.Username; v != nil {
		where, args = append(where, "`username` = ?"), append(args, *v)
	}
	if v := find.Email; v != nil {
		where, args = append(where, "`email` = ?"), append(args, *v)
	}
	query := fmt.Sprintf(
		"SELECT `id`, `username`, `email`, `password_hash`, `needs_username`, `created_ts`, `updated_ts` FROM `users` WHERE %s ORDER BY `id` ASC",
		strings.Join(where, " AND "),
	)
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*store.User
	for rows.Next() {
		u := &store.User{}
		var username sql.NullString
		if err := rows.Scan(&u.ID, &username, &u.Email, &u.PasswordHash, &u.NeedsUsername, &u.CreatedTs, &u.UpdatedTs); err != nil {
			return nil, err
		}
		u.Username = username.String
		list = append(list, u)
	}
	return list, rows.Err()
}

func (d *DB) UpdateUser(ctx context.Context, update *store.UpdateUser) (*store.User, error) {
	set, args := []string{"`updated_ts` = ?"}, []any{time.Now().Unix()}
	if v := update.Username; v != nil {
		set, args = append(set, "`username` = ?"), append(args, nullableString(*v))
	}
	if v := update.PasswordHash; v != nil {
		set, args = append(set, "`password_hash` = ?"), append(args, *v)
	}
	if v := update.NeedsUsername; v != nil {
		set, args = append(set, "`needs_username` = ?"), append(args, *v)
	}
	args = append(args, update.ID)
	stmt := "UPDATE `users` SET " + strings.Join(set, ", ") + " WHERE `id` = ?"
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, convertError(err)
	}

	list, err := d.ListUsers(ctx, &store.FindUser{ID: &update.ID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, sql.ErrNoRows
	}
	return list[0], nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
