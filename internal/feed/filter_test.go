package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murmurchat/murmur/store"
)

func TestCompileFilter(t *testing.T) {
	_, err := CompileFilter(`username == "alice"`)
	require.NoError(t, err)

	_, err = CompileFilter(`username ==`)
	require.Error(t, err)

	_, err = CompileFilter(`created_ts + 1`)
	require.Error(t, err)

	_, err = CompileFilter(`unknown_field == "x"`)
	require.Error(t, err)
}

func TestFilterSelect(t *testing.T) {
	entries := []*store.ChatEntry{
		{ID: 1, Username: "alice", ThreadID: "a", Message: "hello world", CreatedTs: 100},
		{ID: 2, Username: "bob", ThreadID: "b", Message: "golang channels", CreatedTs: 200},
		{ID: 3, Username: "alice", ThreadID: "c", Message: "more golang", CreatedTs: 300},
	}

	filter, err := CompileFilter(`username == "alice" && created_ts > 150`)
	require.NoError(t, err)
	assert.Equal(t, []int32{3}, entryIDs(filter.Select(entries)))

	filter, err = CompileFilter(`message.contains("golang")`)
	require.NoError(t, err)
	assert.Equal(t, []int32{2, 3}, entryIDs(filter.Select(entries)))

	var none *Filter
	assert.Len(t, none.Select(entries), 3)
}
