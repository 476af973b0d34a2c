package store

import (
	"context"
	"fmt"
)

// User is an account that can sign in and own chat entries.
type User struct {
	ID           int32
	Username     string
	Email        string
	PasswordHash string
	// NeedsUsername is set for accounts created through OAuth until a username is chosen.
	NeedsUsername bool
	CreatedTs     int64
	UpdatedTs     int64
}

// FindUser filters for ListUsers.
type FindUser struct {
	ID       *int32
	Username *string
	Email    *string
}

// UpdateUser carries fields accepted by UpdateUser.
type UpdateUser struct {
	ID            int32
	Username      *string
	PasswordHash  *string
	NeedsUsername *bool
}

// CreateUser creates a user. It returns ErrConflict when the email or username is taken.
func (s *Store) CreateUser(ctx context.Context, create *User) (*User, error) {
	user, err := s.driver.CreateUser(ctx, create)
	if err != nil {
		return nil, err
	}
	s.userCache.Set(ctx, userCacheKey(user.ID), user)
	return user, nil
}

// ListUsers lists users matching the filter.
func (s *Store) ListUsers(ctx context.Context, find *FindUser) ([]*User, error) {
	list, err := s.driver.ListUsers(ctx, find)
	if err != nil {
		return nil, err
	}
	for _, user := range list {
		s.userCache.Set(ctx, userCacheKey(user.ID), user)
	}
	return list, nil
}

// GetUser returns the first user matching the filter, or nil. Lookups by ID
// alone are served from the user cache when possible.
func (s *Store) GetUser(ctx context.Context, find *FindUser) (*User, error) {
	if find.ID != nil && find.Username == nil && find.Email == nil {
		if cached, ok := s.userCache.Get(ctx, userCacheKey(*find.ID)); ok {
			return cached.(*User), nil
		}
	}
	list, err := s.ListUsers(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// UpdateUser updates a user. It returns ErrConflict when the new username is taken.
func (s *Store) UpdateUser(ctx context.Context, update *UpdateUser) (*User, error) {
	user, err := s.driver.UpdateUser(ctx, update)
	if err != nil {
		return nil, err
	}
	s.userCache.Set(ctx, userCacheKey(user.ID), user)
	return user, nil
}

// CachedUsername returns the username of a cached user without touching the database.
func (s *Store) CachedUsername(ctx context.Context, userID int32) (string, bool) {
	cached, ok := s.userCache.Get(ctx, userCacheKey(userID))
	if !ok {
		return "", false
	}
	username := cached.(*User).Username
	return username, username != ""
}

func userCacheKey(id int32) string {
	return fmt.Sprintf("%d", id)
}
