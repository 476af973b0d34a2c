package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/murmurchat/murmur/internal/thread"
	"github.com/murmurchat/murmur/store"
)

// DefaultLimit is the number of recent entries loaded on start.
const DefaultLimit = 50

// resolveConcurrency bounds the username lookups run during a load.
const resolveConcurrency = 8

// reloadBackoff is the pause between failed reloads after the change stream lagged.
const reloadBackoff = time.Second

var errClosed = errors.New("aggregator is closed")

// Source is the part of *store.Store the aggregator reads from.
type Source interface {
	UserLookup
	ListChatEntries(ctx context.Context, find *store.FindChatEntry) ([]*store.ChatEntry, error)
	SubscribeChatEvents() *store.Subscription
}

// Aggregator keeps the most recent chat entries up to date with the change stream.
// Deletes shrink the window; it is only refilled to the limit when the stream
// lags and the entries are reloaded.
type Aggregator struct {
	source   Source
	resolver *Resolver
	limit    int

	mu      sync.RWMutex
	entries []*store.ChatEntry

	subMu   sync.Mutex
	sub     *store.Subscription
	closed  bool
	changes chan struct{}
}

func NewAggregator(source Source, limit int) *Aggregator {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Aggregator{
		source:   source,
		resolver: NewResolver(source),
		limit:    limit,
		entries:  []*store.ChatEntry{},
		changes:  make(chan struct{}, 1),
	}
}

// Start subscribes to the change stream, then loads the most recent entries.
// Events published while loading are queued on the subscription and applied
// by Run; upserts make them converge with the loaded entries.
func (a *Aggregator) Start(ctx context.Context) error {
	return a.load(ctx)
}

// load opens a new subscription and replaces the entries with the most recent page.
func (a *Aggregator) load(ctx context.Context) error {
	sub := a.source.SubscribeChatEvents()

	list, err := a.source.ListChatEntries(ctx, &store.FindChatEntry{
		Limit:                a.limit,
		OrderByCreatedTsDesc: true,
	})
	if err != nil {
		sub.Close()
		return errors.Wrap(err, "failed to load recent chat entries")
	}

	resolved := make([]*store.ChatEntry, len(list))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i, entry := range list {
		g.Go(func() error {
			copied := *entry
			copied.Username = a.resolver.Resolve(gctx, &copied)
			resolved[i] = &copied
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		sub.Close()
		return err
	}

	a.subMu.Lock()
	if a.closed {
		a.subMu.Unlock()
		sub.Close()
		return errClosed
	}
	a.sub = sub
	a.subMu.Unlock()

	a.mu.Lock()
	a.entries = resolved
	a.mu.Unlock()
	a.signal()
	return nil
}

// reload retries load until it succeeds. It returns false when ctx is done or
// the aggregator is closed.
func (a *Aggregator) reload(ctx context.Context) bool {
	for {
		err := a.load(ctx)
		if err == nil {
			return true
		}
		if errors.Is(err, errClosed) || ctx.Err() != nil {
			return false
		}
		slog.Error("failed to reload feed", slog.Any("err", err))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(reloadBackoff):
		}
	}
}

func (a *Aggregator) subscription() *store.Subscription {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	return a.sub
}

// Run applies change stream events until ctx is done or the stream closes,
// then releases the subscription. When the stream lags, the entries are
// reloaded on a fresh subscription.
func (a *Aggregator) Run(ctx context.Context) error {
	sub := a.subscription()
	if sub == nil {
		return errors.New("aggregator is not started")
	}
	defer a.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-sub.C:
			if !ok {
				if !sub.Lagged() {
					return nil
				}
				slog.Warn("chat event stream lagged, reloading feed")
				if !a.reload(ctx) {
					return nil
				}
				sub = a.subscription()
				continue
			}
			event, ok := FromStore(raw)
			if !ok {
				slog.Warn("ignoring unknown chat event", slog.String("type", string(raw.Type)))
				continue
			}
			a.apply(ctx, event)
		}
	}
}

// Close releases the subscription. Run returns once it notices.
func (a *Aggregator) Close() {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	a.closed = true
	if a.sub != nil {
		a.sub.Close()
	}
}

func (a *Aggregator) apply(ctx context.Context, event Event) {
	if event.Type != Delete && event.Entry.Username == "" {
		a.mu.RLock()
		index := indexOf(a.entries, event.Entry.ID)
		known := index >= 0 && a.entries[index].Username != ""
		a.mu.RUnlock()
		if !known {
			copied := *event.Entry
			copied.Username = a.resolver.Resolve(ctx, &copied)
			event.Entry = &copied
		}
	}

	a.mu.Lock()
	a.entries = trimOldest(Apply(a.entries, event), a.limit)
	a.mu.Unlock()
	slog.Debug("applied chat event", slog.String("type", event.Type.String()), slog.Int("id", int(event.Entry.ID)))
	a.signal()
}

func (a *Aggregator) signal() {
	select {
	case a.changes <- struct{}{}:
	default:
	}
}

// Changes receives a value after the entries change. Bursts of changes are coalesced.
func (a *Aggregator) Changes() <-chan struct{} {
	return a.changes
}

// Entries returns a snapshot of the current entries.
func (a *Aggregator) Entries() []*store.ChatEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*store.ChatEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Threads groups the current entries into threads.
func (a *Aggregator) Threads() []*thread.Thread {
	return thread.Group(a.Entries())
}

// trimOldest drops the oldest entries beyond limit.
func trimOldest(entries []*store.ChatEntry, limit int) []*store.ChatEntry {
	for len(entries) > limit {
		oldest := 0
		for i, entry := range entries {
			if entry.CreatedTs < entries[oldest].CreatedTs {
				oldest = i
			}
		}
		out := make([]*store.ChatEntry, 0, len(entries)-1)
		out = append(out, entries[:oldest]...)
		entries = append(out, entries[oldest+1:]...)
	}
	return entries
}
