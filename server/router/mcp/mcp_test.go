package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murmurchat/murmur/store"
	teststore "github.com/murmurchat/murmur/store/test"
)

type staticEntries []*store.ChatEntry

func (s staticEntries) Entries() []*store.ChatEntry { return s }

func callTool(t *testing.T, handler func(context.Context, mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	request := mcpgo.CallToolRequest{}
	request.Params.Arguments = args
	result, err := handler(context.Background(), request)
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcpgo.TextContent)
	require.True(t, ok)
	return text.Text, result.IsError
}

func TestListThreadsTool(t *testing.T) {
	entries := staticEntries{
		{ID: 1, ThreadID: "t1", Username: "alice", Message: "first", Response: "ok", CreatedTs: 100},
		{ID: 2, ThreadID: "t2", Username: "bob", Message: "second", Response: "ok", CreatedTs: 200},
		{ID: 3, ThreadID: "t1", Username: "alice", Message: "third", Response: "ok", CreatedTs: 300},
	}
	handler := toolHandler(newListThreadsTool(entries))

	text, isError := callTool(t, handler, map[string]any{})
	require.False(t, isError)
	assert.Contains(t, text, "Thread t1 (2 entries, by alice)")
	assert.Less(t, strings.Index(text, "Thread t1"), strings.Index(text, "Thread t2"))

	text, isError = callTool(t, handler, map[string]any{"limit": 1})
	require.False(t, isError)
	assert.NotContains(t, text, "Thread t2")

	text, isError = callTool(t, handler, map[string]any{"filter": `username == "bob"`})
	require.False(t, isError)
	assert.Contains(t, text, "Thread t2")
	assert.NotContains(t, text, "Thread t1")

	_, isError = callTool(t, handler, map[string]any{"filter": "username"})
	assert.True(t, isError)

	text, _ = callTool(t, toolHandler(newListThreadsTool(staticEntries{})), map[string]any{})
	assert.Equal(t, "No threads found.", text)
}

func TestGetThreadTool(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	defer ts.Close()

	alice, err := ts.CreateUser(ctx, &store.User{Username: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	for i, text := range []string{"one", "two"} {
		_, err := ts.CreateChatEntry(ctx, &store.ChatEntry{UserID: alice.ID, ThreadID: "t1", Message: text, Response: "re " + text, CreatedTs: int64(100 + i)})
		require.NoError(t, err)
	}
	handler := toolHandler(newGetThreadTool(ts))

	text, isError := callTool(t, handler, map[string]any{"thread_id": "t1"})
	require.False(t, isError)
	assert.Equal(t, "alice: one\nassistant: re one\n\nalice: two\nassistant: re two\n\n", text)

	text, isError = callTool(t, handler, map[string]any{"thread_id": "missing"})
	assert.True(t, isError)
	assert.Equal(t, "thread not found.", text)

	_, isError = callTool(t, handler, map[string]any{})
	assert.True(t, isError)
}

func TestNewMCPServiceRegistersTools(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	defer ts.Close()

	service := NewMCPService("test", ts, staticEntries{}, nil)
	response := service.server.HandleMessage(ctx, json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(response)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"list_threads"`)
	assert.Contains(t, string(raw), `"get_thread"`)
	assert.NotContains(t, string(raw), `"search_entries"`)
}
