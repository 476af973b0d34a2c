package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/murmurchat/murmur/internal/feed"
	"github.com/murmurchat/murmur/internal/thread"
	"github.com/murmurchat/murmur/store"
)

const (
	// feedHeartbeatInterval keeps idle SSE connections open through proxies.
	feedHeartbeatInterval = 25 * time.Second

	defaultSearchResults = 5
	maxSearchResults     = 20
)

type feedResponse struct {
	Threads []thread.View `json:"threads"`
}

type searchResultResponse struct {
	EntryID  int32   `json:"entryId"`
	ThreadID string  `json:"threadId"`
	Content  string  `json:"content"`
	Score    float32 `json:"score"`
}

func (s *APIV1Service) registerFeedRoutes(g *echo.Group) {
	g.GET("/feed", s.getFeed)
	g.GET("/feed/stream", s.streamFeed)
	g.GET("/feed/threads/:id", s.getFeedThread)
	g.GET("/feed/search", s.searchFeed)
}

// feedFilter compiles the filter query parameter; an empty filter selects everything.
func feedFilter(c *echo.Context) (*feed.Filter, error) {
	expr := strings.TrimSpace(c.QueryParam("filter"))
	if expr == "" {
		return nil, nil
	}
	return feed.CompileFilter(expr)
}

func renderFeed(entries []*store.ChatEntry, filter *feed.Filter, expansion *thread.Expansion) feedResponse {
	return feedResponse{Threads: thread.Render(thread.Group(filter.Select(entries)), expansion)}
}

// ─────────────────────────────────────────────────────────────────────────────
// Snapshot
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) getFeed(c *echo.Context) error {
	filter, err := feedFilter(c)
	if err != nil {
		return invalid(c, "filter", err.Error())
	}
	expansion := thread.NewExpansion(c.QueryParam("expanded"))
	return c.JSON(http.StatusOK, renderFeed(s.Feed.Entries(), filter, expansion))
}

func (s *APIV1Service) getFeedThread(c *echo.Context) error {
	threadID := c.Param("id")
	ctx := c.Request().Context()
	entries, err := s.Store.ListChatEntries(ctx, &store.FindChatEntry{ThreadID: &threadID})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if len(entries) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "thread not found")
	}
	resolver := feed.NewResolver(s.Store)
	for _, entry := range entries {
		entry.Username = resolver.Resolve(ctx, entry)
	}
	views := thread.Render(thread.Group(entries), thread.NewExpansion(threadID))
	return c.JSON(http.StatusOK, views[0])
}

// ─────────────────────────────────────────────────────────────────────────────
// Live stream (SSE)
// ─────────────────────────────────────────────────────────────────────────────

// streamFeed pushes the rendered feed on connect and after every change. Each
// connection owns its aggregator, so closing the connection unsubscribes it.
func (s *APIV1Service) streamFeed(c *echo.Context) error {
	filter, err := feedFilter(c)
	if err != nil {
		return invalid(c, "filter", err.Error())
	}
	expansion := thread.NewExpansion(c.QueryParam("expanded"))

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	aggregator := feed.NewAggregator(s.Store, s.Profile.FeedLimit)
	if err := aggregator.Start(ctx); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	go func() {
		if err := aggregator.Run(ctx); err != nil {
			slog.Warn("feed stream stopped", slog.Any("err", err))
		}
	}()
	defer aggregator.Close()

	rw := c.Response()
	rw.Header().Set("Content-Type", "text/event-stream")
	rw.Header().Set("Cache-Control", "no-cache")
	rw.Header().Set("Connection", "keep-alive")
	rw.Header().Set("X-Accel-Buffering", "no")
	rw.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(rw)

	heartbeat := time.NewTicker(feedHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-aggregator.Changes():
			data, err := json.Marshal(renderFeed(aggregator.Entries(), filter, expansion))
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(rw, "event: feed\ndata: %s\n\n", data); err != nil {
				return nil
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(rw, ": heartbeat\n\n"); err != nil {
				return nil
			}
		}
		if err := rc.Flush(); err != nil {
			return nil
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Semantic search
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) searchFeed(c *echo.Context) error {
	if s.VectorStore == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search is not configured")
	}
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return invalid(c, "q", "query is required")
	}
	limit := defaultSearchResults
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return invalid(c, "limit", "limit must be a positive number")
		}
		limit = min(n, maxSearchResults)
	}

	results, err := s.VectorStore.Search(c.Request().Context(), query, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := make([]searchResultResponse, 0, len(results))
	for _, r := range results {
		resp = append(resp, searchResultResponse{
			EntryID:  r.EntryID,
			ThreadID: r.ThreadID,
			Content:  r.Content,
			Score:    r.Score,
		})
	}
	return c.JSON(http.StatusOK, resp)
}
