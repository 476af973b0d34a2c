package thread

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murmurchat/murmur/store"
)

func entry(id int32, threadID string, createdTs int64) *store.ChatEntry {
	return &store.ChatEntry{ID: id, ThreadID: threadID, Message: "m", Response: "r", CreatedTs: createdTs}
}

func ids(entries []*store.ChatEntry) []int32 {
	out := []int32{}
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func threadIDs(threads []*Thread) []string {
	out := []string{}
	for _, t := range threads {
		out = append(out, t.ID)
	}
	return out
}

func TestGroupOrdersEntriesWithinThread(t *testing.T) {
	permutations := [][]*store.ChatEntry{
		{entry(1, "a", 10), entry(2, "a", 20), entry(3, "a", 30)},
		{entry(3, "a", 30), entry(1, "a", 10), entry(2, "a", 20)},
		{entry(2, "a", 20), entry(3, "a", 30), entry(1, "a", 10)},
	}
	for _, input := range permutations {
		threads := Group(input)
		require.Len(t, threads, 1)
		assert.Equal(t, []int32{1, 2, 3}, ids(threads[0].Entries))
	}
}

func TestGroupKeepsInputOrderOnTimestampTies(t *testing.T) {
	threads := Group([]*store.ChatEntry{entry(7, "a", 10), entry(3, "a", 10), entry(5, "a", 5)})
	require.Len(t, threads, 1)
	assert.Equal(t, []int32{5, 7, 3}, ids(threads[0].Entries))
}

func TestGroupOrdersThreadsByLastActivity(t *testing.T) {
	entries := []*store.ChatEntry{
		entry(1, "old", 10),
		entry(2, "mid", 20),
		entry(3, "new", 30),
		entry(4, "old", 15),
	}
	threads := Group(entries)
	assert.Equal(t, []string{"new", "mid", "old"}, threadIDs(threads))

	// A new entry in the oldest thread moves it to the front.
	threads = Group(append(entries, entry(5, "old", 40)))
	assert.Equal(t, []string{"old", "new", "mid"}, threadIDs(threads))
	assert.Equal(t, int64(40), threads[0].LastActivity())
	assert.Equal(t, int32(1), threads[0].First().ID)
}

func TestGroupTiedThreadsKeepFirstOccurrenceOrder(t *testing.T) {
	threads := Group([]*store.ChatEntry{entry(1, "b", 10), entry(2, "a", 10), entry(3, "c", 10)})
	assert.Equal(t, []string{"b", "a", "c"}, threadIDs(threads))
}

func TestGroupEmpty(t *testing.T) {
	assert.Empty(t, Group(nil))
}

func TestFind(t *testing.T) {
	threads := Group([]*store.ChatEntry{entry(1, "a", 1), entry(2, "b", 2)})
	require.NotNil(t, Find(threads, "a"))
	assert.Nil(t, Find(threads, "zzz"))
}

func TestExpansionIsSingleSelect(t *testing.T) {
	e := NewExpansion("")
	assert.False(t, e.Expanded("a"))

	e.Toggle("a")
	assert.True(t, e.Expanded("a"))

	e.Toggle("b")
	assert.True(t, e.Expanded("b"))
	assert.False(t, e.Expanded("a"))
	assert.Equal(t, "b", e.Current())

	e.Toggle("b")
	assert.False(t, e.Expanded("b"))
	assert.Equal(t, "", e.Current())
	assert.False(t, e.Expanded(""))
}

func TestTruncate(t *testing.T) {
	exact := strings.Repeat("x", PreviewLength)
	got, cut := Truncate(exact, PreviewLength)
	assert.False(t, cut)
	assert.Equal(t, exact, got)

	short := "short"
	got, cut = Truncate(short, PreviewLength)
	assert.False(t, cut)
	assert.Equal(t, short, got)

	long := strings.Repeat("y", PreviewLength) + " and more words"
	got, cut = Truncate(long, PreviewLength)
	assert.True(t, cut)
	assert.Equal(t, strings.Repeat("y", PreviewLength)+"…", got)

	// Characters, not bytes, are counted.
	wide := strings.Repeat("é", PreviewLength+1)
	got, cut = Truncate(wide, PreviewLength)
	assert.True(t, cut)
	assert.Equal(t, PreviewLength+1, utf8.RuneCountInString(got))
}

func TestRenderCollapsedAndExpanded(t *testing.T) {
	long := strings.Repeat("z", PreviewLength+20)
	entries := []*store.ChatEntry{
		{ID: 1, ThreadID: "a", Message: long, Response: "short", CreatedTs: 10, Username: "alice"},
		{ID: 2, ThreadID: "a", Message: "follow up", Response: "reply", CreatedTs: 20, Username: "alice"},
		{ID: 3, ThreadID: "b", Message: "hello", Response: "hi", CreatedTs: 5, Username: "bob"},
	}
	threads := Group(entries)
	expansion := NewExpansion("")

	views := Render(threads, expansion)
	require.Len(t, views, 2)
	assert.Equal(t, "a", views[0].ID)
	assert.False(t, views[0].Expanded)
	require.Len(t, views[0].Entries, 1)
	assert.Equal(t, strings.Repeat("z", PreviewLength)+"…", views[0].Entries[0].Message)
	assert.True(t, views[0].Entries[0].Truncated)
	assert.True(t, views[0].HasMore)
	assert.Equal(t, 2, views[0].EntryCount)

	// Single short entry: nothing hidden.
	assert.False(t, views[1].HasMore)
	assert.Equal(t, "hello", views[1].Entries[0].Message)

	expansion.Toggle("a")
	views = Render(threads, expansion)
	assert.True(t, views[0].Expanded)
	require.Len(t, views[0].Entries, 2)
	assert.Equal(t, long, views[0].Entries[0].Message)
	assert.False(t, views[0].Entries[0].Truncated)

	// Expanding b collapses a back to its truncated preview.
	expansion.Toggle("b")
	views = Render(threads, expansion)
	assert.False(t, views[0].Expanded)
	assert.True(t, views[0].Entries[0].Truncated)
	assert.True(t, views[1].Expanded)
}
