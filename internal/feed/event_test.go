package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murmurchat/murmur/store"
)

func entryIDs(entries []*store.ChatEntry) []int32 {
	out := []int32{}
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestApplyInsertPrepends(t *testing.T) {
	entries := []*store.ChatEntry{{ID: 2, CreatedTs: 20}, {ID: 1, CreatedTs: 10}}
	out := Apply(entries, Event{Type: Insert, Entry: &store.ChatEntry{ID: 3, CreatedTs: 30}})
	assert.Equal(t, []int32{3, 2, 1}, entryIDs(out))
	assert.Equal(t, []int32{2, 1}, entryIDs(entries))
}

// The source appended every insert, so a redelivered insert produced a
// duplicate row. Inserts are upserts by ID here.
func TestApplyDuplicateInsertUpserts(t *testing.T) {
	entries := []*store.ChatEntry{{ID: 1, Message: "old", Username: "alice"}}
	out := Apply(entries, Event{Type: Insert, Entry: &store.ChatEntry{ID: 1, Message: "new"}})
	require.Len(t, out, 1)
	assert.Equal(t, "new", out[0].Message)
	assert.Equal(t, "alice", out[0].Username)
	assert.Equal(t, "old", entries[0].Message)
}

func TestApplyUpdateKeepsCachedUsername(t *testing.T) {
	entries := []*store.ChatEntry{{ID: 1, Response: "draft", Username: "alice"}, {ID: 2}}
	out := Apply(entries, Event{Type: Update, Entry: &store.ChatEntry{ID: 1, Response: "final"}})
	assert.Equal(t, "final", out[0].Response)
	assert.Equal(t, "alice", out[0].Username)

	out = Apply(out, Event{Type: Update, Entry: &store.ChatEntry{ID: 1, Username: "renamed"}})
	assert.Equal(t, "renamed", out[0].Username)

	// Updates for entries outside the view are ignored.
	out = Apply(out, Event{Type: Update, Entry: &store.ChatEntry{ID: 99}})
	assert.Equal(t, []int32{1, 2}, entryIDs(out))
}

func TestApplyDelete(t *testing.T) {
	entries := []*store.ChatEntry{{ID: 3}, {ID: 2}, {ID: 1}}
	out := Apply(entries, Event{Type: Delete, Entry: &store.ChatEntry{ID: 2}})
	assert.Equal(t, []int32{3, 1}, entryIDs(out))
	assert.Equal(t, []int32{3, 2, 1}, entryIDs(entries))

	out = Apply(out, Event{Type: Delete, Entry: &store.ChatEntry{ID: 42}})
	assert.Equal(t, []int32{3, 1}, entryIDs(out))
}

func TestApplyCopiesPayload(t *testing.T) {
	payload := &store.ChatEntry{ID: 1}
	out := Apply(nil, Event{Type: Insert, Entry: payload})
	out[0].Username = "changed"
	assert.Empty(t, payload.Username)
}

func TestFromStore(t *testing.T) {
	entry := &store.ChatEntry{ID: 1}
	for storeType, want := range map[store.ChatEventType]EventType{
		store.ChatEventInsert: Insert,
		store.ChatEventUpdate: Update,
		store.ChatEventDelete: Delete,
	} {
		event, ok := FromStore(store.ChatEvent{Type: storeType, Entry: entry})
		require.True(t, ok)
		assert.Equal(t, want, event.Type)
	}

	_, ok := FromStore(store.ChatEvent{Type: "TRUNCATE", Entry: entry})
	assert.False(t, ok)
	_, ok = FromStore(store.ChatEvent{Type: store.ChatEventInsert})
	assert.False(t, ok)
}

func TestTrimOldest(t *testing.T) {
	entries := []*store.ChatEntry{{ID: 4, CreatedTs: 40}, {ID: 1, CreatedTs: 10}, {ID: 3, CreatedTs: 30}, {ID: 2, CreatedTs: 20}}
	assert.Equal(t, []int32{4, 3}, entryIDs(trimOldest(entries, 2)))
	assert.Len(t, trimOldest(entries, 10), 4)
}
