package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/tools"

	"github.com/murmurchat/murmur/internal/feed"
	"github.com/murmurchat/murmur/internal/thread"
	"github.com/murmurchat/murmur/plugin/vectorstore"
	"github.com/murmurchat/murmur/store"
)

const (
	defaultThreadCount = 10
	defaultSearchCount = 5
)

// EntrySource lists recent chat entries.
type EntrySource interface {
	Entries() []*store.ChatEntry
}

// ─────────────────────────────────────────────────────────────────────────────
// list_threads
// ─────────────────────────────────────────────────────────────────────────────

type listThreadsTool struct {
	source EntrySource
}

func newListThreadsTool(source EntrySource) tools.Tool {
	return &listThreadsTool{source: source}
}

func (t *listThreadsTool) Name() string { return "list_threads" }
func (t *listThreadsTool) Description() string {
	return "List the most recently active conversation threads of the public feed. Input is JSON with optional `limit` (number) and `filter` (CEL expression over username, thread_id, message, response, created_ts)."
}
func (t *listThreadsTool) Call(_ context.Context, input string) (string, error) {
	var payload struct {
		Limit  int    `json:"limit"`
		Filter string `json:"filter"`
	}
	if strings.TrimSpace(input) != "" {
		if err := json.Unmarshal([]byte(input), &payload); err != nil {
			return "Error: failed to parse input JSON.", nil
		}
	}
	if payload.Limit <= 0 {
		payload.Limit = defaultThreadCount
	}
	var filter *feed.Filter
	if payload.Filter != "" {
		var err error
		filter, err = feed.CompileFilter(payload.Filter)
		if err != nil {
			return "Error: " + err.Error(), nil
		}
	}

	threads := thread.Group(filter.Select(t.source.Entries()))
	if len(threads) == 0 {
		return "No threads found.", nil
	}
	if len(threads) > payload.Limit {
		threads = threads[:payload.Limit]
	}
	var sb strings.Builder
	for _, view := range thread.Render(threads, thread.NewExpansion("")) {
		preview := view.Entries[0]
		fmt.Fprintf(&sb, "Thread %s (%d entries, by %s):\n%s\n\n", view.ID, view.EntryCount, preview.Username, preview.Message)
	}
	return sb.String(), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// get_thread
// ─────────────────────────────────────────────────────────────────────────────

type getThreadTool struct {
	store *store.Store
}

func newGetThreadTool(store *store.Store) tools.Tool {
	return &getThreadTool{store: store}
}

func (t *getThreadTool) Name() string { return "get_thread" }
func (t *getThreadTool) Description() string {
	return "Read every exchange of one conversation thread in order. Input is JSON with key `thread_id` (string)."
}
func (t *getThreadTool) Call(ctx context.Context, input string) (string, error) {
	var payload struct {
		ThreadID string `json:"thread_id"`
	}
	if err := json.Unmarshal([]byte(input), &payload); err != nil || payload.ThreadID == "" {
		return "Error: `thread_id` is required.", nil
	}
	entries, err := t.store.ListChatEntries(ctx, &store.FindChatEntry{ThreadID: &payload.ThreadID})
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "Error: thread not found.", nil
	}
	resolver := feed.NewResolver(t.store)
	var sb strings.Builder
	for _, entry := range thread.Group(entries)[0].Entries {
		fmt.Fprintf(&sb, "%s: %s\nassistant: %s\n\n", resolver.Resolve(ctx, entry), entry.Message, entry.Response)
	}
	return sb.String(), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// search_entries
// ─────────────────────────────────────────────────────────────────────────────

type searchEntriesTool struct {
	vs *vectorstore.Store
}

func newSearchEntriesTool(vs *vectorstore.Store) tools.Tool {
	return &searchEntriesTool{vs: vs}
}

func (t *searchEntriesTool) Name() string { return "search_entries" }
func (t *searchEntriesTool) Description() string {
	return "Search past exchanges semantically. Input is JSON with key `query` (string) and optional `limit` (number)."
}
func (t *searchEntriesTool) Call(ctx context.Context, input string) (string, error) {
	var payload struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal([]byte(input), &payload); err != nil || strings.TrimSpace(payload.Query) == "" {
		return "Error: `query` is required.", nil
	}
	if payload.Limit <= 0 {
		payload.Limit = defaultSearchCount
	}
	results, err := t.vs.Search(ctx, payload.Query, payload.Limit)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No matching exchanges found.", nil
	}
	slog.Debug("searched entries", slog.String("query", payload.Query), slog.Int("results", len(results)))
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "[%d] Entry %d in thread %s (score %.2f):\n%s\n\n", i+1, r.EntryID, r.ThreadID, r.Score, r.Content)
	}
	return sb.String(), nil
}
