// Package indexer keeps the semantic search index in step with chat entries.
package indexer

import (
	"context"
	"log/slog"

	"github.com/murmurchat/murmur/plugin/vectorstore"
	"github.com/murmurchat/murmur/store"
)

// backfillBatchSize bounds how many entries are read per query during backfill.
const backfillBatchSize = 200

type Runner struct {
	Store       *store.Store
	VectorStore *vectorstore.Store
}

func NewRunner(store *store.Store, vs *vectorstore.Store) *Runner {
	return &Runner{Store: store, VectorStore: vs}
}

// Run indexes every entry created and unindexes every entry deleted until ctx
// is done. An empty index is backfilled from the store first, and the index is
// rebuilt whenever the change stream lags.
func (r *Runner) Run(ctx context.Context) {
	sub := r.Store.SubscribeChatEvents()
	defer func() { sub.Close() }()

	if r.VectorStore.Count() == 0 {
		r.backfill(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.C:
			if !ok {
				if !sub.Lagged() {
					return
				}
				slog.Warn("chat event stream lagged, rebuilding search index")
				sub = r.Store.SubscribeChatEvents()
				r.rebuild(ctx)
				continue
			}
			r.handle(ctx, event)
		}
	}
}

// rebuild replaces the index with the entries currently in the store. Events
// queued on the new subscription meanwhile are applied afterwards.
func (r *Runner) rebuild(ctx context.Context) {
	if err := r.VectorStore.Reset(); err != nil {
		slog.Error("failed to reset search index", slog.Any("err", err))
		return
	}
	r.backfill(ctx)
}

func (r *Runner) handle(ctx context.Context, event store.ChatEvent) {
	entry := event.Entry
	switch event.Type {
	case store.ChatEventInsert, store.ChatEventUpdate:
		if err := r.VectorStore.IndexEntry(ctx, entry.ID, entry.ThreadID, entry.Message, entry.Response); err != nil {
			slog.Warn("failed to index chat entry", slog.Int("id", int(entry.ID)), slog.Any("err", err))
		}
	case store.ChatEventDelete:
		if err := r.VectorStore.RemoveEntry(ctx, entry.ID); err != nil {
			slog.Warn("failed to unindex chat entry", slog.Int("id", int(entry.ID)), slog.Any("err", err))
		}
	}
}

func (r *Runner) backfill(ctx context.Context) {
	var indexed int
	for offset := 0; ; offset += backfillBatchSize {
		entries, err := r.Store.ListChatEntries(ctx, &store.FindChatEntry{
			Limit:  backfillBatchSize,
			Offset: offset,
		})
		if err != nil {
			slog.Error("failed to list chat entries for indexing", slog.Any("err", err))
			return
		}
		for _, entry := range entries {
			if err := r.VectorStore.IndexEntry(ctx, entry.ID, entry.ThreadID, entry.Message, entry.Response); err != nil {
				slog.Warn("failed to index chat entry", slog.Int("id", int(entry.ID)), slog.Any("err", err))
				continue
			}
			indexed++
		}
		if len(entries) < backfillBatchSize {
			break
		}
	}
	slog.Info("backfilled search index", slog.Int("entries", indexed))
}
