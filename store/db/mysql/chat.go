package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/murmurchat/murmur/store"
)

func (d *DB) CreateChatEntry(ctx context.Context, create *store.ChatEntry) (*store.ChatEntry, error) {
	stmt := "INSERT INTO `chats` (`user_id`, `thread_id`, `message`, `response`, `created_ts`) VALUES (?, ?, ?, ?, ?)"
	result, err := d.db.ExecContext(ctx, stmt,
		create.UserID, create.ThreadID, create.Message, create.Response, create.CreatedTs,
	)
	if err != nil {
		return nil, err
	}
	rawID, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &store.ChatEntry{
		ID:        int32(rawID),
		UserID:    create.UserID,
		ThreadID:  create.ThreadID,
		Message:   create.Message,
		Response:  create.Response,
		CreatedTs: create.CreatedTs,
	}, nil
}

func (d *DB) ListChatEntries(ctx context.Context, find *store.FindChatEntry) ([]*store.ChatEntry, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "c.`id` = ?"), append(args, *v)
	}
	if v := find.UserID; v != nil {
		where, args = append(where, "c.`user_id` = ?"), append(args, *v)
	}
	if v := find.ThreadID; v != nil {
		where, args = append(where, "c.`thread_id` = ?"), append(args, *v)
	}
	order := "c.`created_ts` ASC, c.`id` ASC"
	if find.OrderByCreatedTsDesc {
		order = "c.`created_ts` DESC, c.`id` DESC"
	}
	query := fmt.Sprintf(
		"SELECT c.`id`, c.`user_id`, c.`thread_id`, c.`message`, c.`response`, c.`created_ts`, u.`username` "+
			"FROM `chats` c LEFT JOIN `users` u ON u.`id` = c.`user_id` WHERE %s ORDER BY %s",
		strings.Join(where, " AND "), order,
	)
	if find.Limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, find.Limit)
		if find.Offset > 0 {
			query = fmt.Sprintf("%s OFFSET %d", query, find.Offset)
		}
	}
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*store.ChatEntry
	for rows.Next() {
		e := &store.ChatEntry{}
		var username sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.ThreadID, &e.Message, &e.Response, &e.CreatedTs, &username); err != nil {
			return nil, err
		}
		e.Username = username.String
		list = append(list, e)
	}
	return list, rows.Err()
}

func (d *DB) DeleteChatEntry(ctx context.Context, delete *store.DeleteChatEntry) error {
	_, err := d.db.ExecContext(ctx, "DELETE FROM `chats` WHERE `id` = ?", delete.ID)
	return err
}
