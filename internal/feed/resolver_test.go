package feed

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/murmurchat/murmur/store"
)

type fakeUsers struct {
	cached  map[int32]string
	stored  map[int32]*store.User
	err     error
	lookups int
}

func (f *fakeUsers) CachedUsername(_ context.Context, userID int32) (string, bool) {
	name, ok := f.cached[userID]
	return name, ok
}

func (f *fakeUsers) GetUser(_ context.Context, find *store.FindUser) (*store.User, error) {
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	return f.stored[*find.ID], nil
}

func TestResolverOrder(t *testing.T) {
	ctx := context.Background()
	users := &fakeUsers{
		cached: map[int32]string{1: "cached"},
		stored: map[int32]*store.User{1: {ID: 1, Username: "stored"}, 2: {ID: 2, Username: "bob"}, 3: {ID: 3}},
	}
	resolver := NewResolver(users)

	assert.Equal(t, "joined", resolver.Resolve(ctx, &store.ChatEntry{UserID: 1, Username: "joined"}))
	assert.Equal(t, "cached", resolver.Resolve(ctx, &store.ChatEntry{UserID: 1}))
	assert.Zero(t, users.lookups)

	assert.Equal(t, "bob", resolver.Resolve(ctx, &store.ChatEntry{UserID: 2}))
	assert.Equal(t, 1, users.lookups)

	// A user without a username yet and a missing user both resolve to the sentinel.
	assert.Equal(t, UnknownUsername, resolver.Resolve(ctx, &store.ChatEntry{UserID: 3}))
	assert.Equal(t, UnknownUsername, resolver.Resolve(ctx, &store.ChatEntry{UserID: 4}))
}

func TestResolverLookupFailure(t *testing.T) {
	resolver := NewResolver(&fakeUsers{err: errors.New("connection refused")})
	assert.Equal(t, UnknownUsername, resolver.Resolve(context.Background(), &store.ChatEntry{UserID: 1}))
}
