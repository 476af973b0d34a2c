package feed

import (
	"context"
	"log/slog"

	"github.com/murmurchat/murmur/store"
)

// UnknownUsername is shown when no source knows the author of an entry.
const UnknownUsername = "Unknown"

// UserLookup is the part of *store.Store used to resolve usernames.
type UserLookup interface {
	CachedUsername(ctx context.Context, userID int32) (string, bool)
	GetUser(ctx context.Context, find *store.FindUser) (*store.User, error)
}

// Resolver finds the username of an entry's author.
type Resolver struct {
	users UserLookup
}

func NewResolver(users UserLookup) *Resolver {
	return &Resolver{users: users}
}

// Resolve tries, in order, the username joined into the entry, the user
// cache and a store lookup. It returns UnknownUsername when all of them miss.
func (r *Resolver) Resolve(ctx context.Context, entry *store.ChatEntry) string {
	if entry.Username != "" {
		return entry.Username
	}
	if username, ok := r.users.CachedUsername(ctx, entry.UserID); ok {
		return username
	}
	user, err := r.users.GetUser(ctx, &store.FindUser{ID: &entry.UserID})
	if err != nil {
		slog.Warn("failed to look up chat entry author", slog.Int("user", int(entry.UserID)), slog.Any("err", err))
		return UnknownUsername
	}
	if user == nil || user.Username == "" {
		return UnknownUsername
	}
	return user.Username
}
