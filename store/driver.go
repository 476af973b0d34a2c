package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	Migrate(ctx context.Context) error

	// User model related methods.
	CreateUser(ctx context.Context, create *User) (*User, error)
	ListUsers(ctx context.Context, find *FindUser) ([]*User, error)
	UpdateUser(ctx context.Context, update *UpdateUser) (*User, error)

	// ChatEntry model related methods.
	CreateChatEntry(ctx context.Context, create *ChatEntry) (*ChatEntry, error)
	ListChatEntries(ctx context.Context, find *FindChatEntry) ([]*ChatEntry, error)
	DeleteChatEntry(ctx context.Context, delete *DeleteChatEntry) error
}
