package store

import (
	"context"
	"log/slog"
	"time"
)

// ChatEntry is one user turn: the user's message and the assistant's reply.
type ChatEntry struct {
	ID        int32
	UserID    int32
	ThreadID  string
	Message   string
	Response  string
	CreatedTs int64

	// Username is resolved from the users table at read time. Empty when unknown.
	Username string
}

// FindChatEntry filters for ListChatEntries.
type FindChatEntry struct {
	ID       *int32
	UserID   *int32
	ThreadID *string

	// Limit caps the number of rows returned. Zero means no limit.
	Limit int
	// Offset skips rows; it only applies together with Limit.
	Offset int
	// OrderByCreatedTsDesc returns the newest entries first.
	OrderByCreatedTsDesc bool
}

// DeleteChatEntry identifies the entry to delete.
type DeleteChatEntry struct {
	ID int32
}

// CreateChatEntry persists a new chat entry and announces it on the change stream.
// CreatedTs is stamped with the server clock when unset.
func (s *Store) CreateChatEntry(ctx context.Context, create *ChatEntry) (*ChatEntry, error) {
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	entry, err := s.driver.CreateChatEntry(ctx, create)
	if err != nil {
		return nil, err
	}
	s.broker.publish(ChatEvent{Type: ChatEventInsert, Entry: entry})
	return entry, nil
}

// ListChatEntries lists chat entries matching the filter, oldest first unless
// OrderByCreatedTsDesc is set.
func (s *Store) ListChatEntries(ctx context.Context, find *FindChatEntry) ([]*ChatEntry, error) {
	return s.driver.ListChatEntries(ctx, find)
}

// GetChatEntry returns the first entry matching the filter, or nil.
func (s *Store) GetChatEntry(ctx context.Context, find *FindChatEntry) (*ChatEntry, error) {
	find.Limit = 1
	list, err := s.ListChatEntries(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// DeleteChatEntry removes an entry and announces the deletion on the change stream.
func (s *Store) DeleteChatEntry(ctx context.Context, delete *DeleteChatEntry) error {
	if err := s.driver.DeleteChatEntry(ctx, delete); err != nil {
		return err
	}
	slog.Debug("chat entry deleted", slog.Int("id", int(delete.ID)))
	s.broker.publish(ChatEvent{Type: ChatEventDelete, Entry: &ChatEntry{ID: delete.ID}})
	return nil
}
