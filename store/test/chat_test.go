package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/murmurchat/murmur/store"
)

func TestChatEntryStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	defer ts.Close()

	user, err := createTestingUser(ctx, ts, "alice")
	require.NoError(t, err)

	first, err := ts.CreateChatEntry(ctx, &store.ChatEntry{
		UserID:    user.ID,
		ThreadID:  "thread-a",
		Message:   "Hello",
		Response:  "Hi there",
		CreatedTs: 100,
	})
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	_, err = ts.CreateChatEntry(ctx, &store.ChatEntry{UserID: user.ID, ThreadID: "thread-b", Message: "Second", Response: "ok", CreatedTs: 200})
	require.NoError(t, err)
	_, err = ts.CreateChatEntry(ctx, &store.ChatEntry{UserID: user.ID, ThreadID: "thread-a", Message: "Third", Response: "ok", CreatedTs: 300})
	require.NoError(t, err)

	// Newest first with a limit, usernames joined in.
	recent, err := ts.ListChatEntries(ctx, &store.FindChatEntry{Limit: 2, OrderByCreatedTsDesc: true})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "Third", recent[0].Message)
	require.Equal(t, "Second", recent[1].Message)
	require.Equal(t, "alice", recent[0].Username)

	older, err := ts.ListChatEntries(ctx, &store.FindChatEntry{Limit: 2, Offset: 2, OrderByCreatedTsDesc: true})
	require.NoError(t, err)
	require.Len(t, older, 1)
	require.Equal(t, "Hello", older[0].Message)

	threadID := "thread-a"
	thread, err := ts.ListChatEntries(ctx, &store.FindChatEntry{ThreadID: &threadID})
	require.NoError(t, err)
	require.Len(t, thread, 2)
	require.Equal(t, "Hello", thread[0].Message)
	require.Equal(t, "Third", thread[1].Message)

	require.NoError(t, ts.DeleteChatEntry(ctx, &store.DeleteChatEntry{ID: first.ID}))
	found, err := ts.GetChatEntry(ctx, &store.FindChatEntry{ID: &first.ID})
	require.NoError(t, err)
	require.Nil(t, found)
}

func TestChatEntryStoreStampsCreatedTs(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	defer ts.Close()

	user, err := createTestingUser(ctx, ts, "bob")
	require.NoError(t, err)

	entry, err := ts.CreateChatEntry(ctx, &store.ChatEntry{UserID: user.ID, ThreadID: "t", Message: "m", Response: "r"})
	require.NoError(t, err)
	require.NotZero(t, entry.CreatedTs)
}

func TestChatEntryStoreChangeStream(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	defer ts.Close()

	user, err := createTestingUser(ctx, ts, "carol")
	require.NoError(t, err)

	sub := ts.SubscribeChatEvents()
	defer sub.Close()
	require.Equal(t, 1, ts.SubscriberCount())

	entry, err := ts.CreateChatEntry(ctx, &store.ChatEntry{UserID: user.ID, ThreadID: "t", Message: "m", Response: "r"})
	require.NoError(t, err)
	event := <-sub.C
	require.Equal(t, store.ChatEventInsert, event.Type)
	require.Equal(t, entry.ID, event.Entry.ID)
	// Inserted payloads come straight from the driver and carry no username.
	require.Empty(t, event.Entry.Username)

	require.NoError(t, ts.DeleteChatEntry(ctx, &store.DeleteChatEntry{ID: entry.ID}))
	event = <-sub.C
	require.Equal(t, store.ChatEventDelete, event.Type)
	require.Equal(t, entry.ID, event.Entry.ID)

	sub.Close()
	require.Equal(t, 0, ts.SubscriberCount())
}
