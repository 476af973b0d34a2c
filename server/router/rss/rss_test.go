package rss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murmurchat/murmur/internal/profile"
	"github.com/murmurchat/murmur/store"
	teststore "github.com/murmurchat/murmur/store/test"
)

type staticEntries []*store.ChatEntry

func (s staticEntries) Entries() []*store.ChatEntry { return s }

func TestFeedRSS(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	defer ts.Close()

	entries := staticEntries{
		{ID: 1, ThreadID: "t1", Username: "alice", Message: "What is Go?", Response: "A *language*.", CreatedTs: 100},
		{ID: 2, ThreadID: "t1", Username: "alice", Message: "Who made it?", Response: "Google.", CreatedTs: 200},
		{ID: 3, ThreadID: "t2", Message: "Orphan", Response: "entry", CreatedTs: 150},
	}
	service := NewRSSService(&profile.Profile{InstanceURL: "https://murmur.example.com/"}, ts, entries)
	e := echo.New()
	service.RegisterRoutes(e.Group(""))

	req := httptest.NewRequest(http.MethodGet, "/feed/rss.xml", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "application/rss+xml")
	body := rec.Body.String()
	assert.Contains(t, body, "<title>What is Go?</title>")
	assert.Contains(t, body, "https://murmur.example.com/feed?expanded=t1")
	assert.Contains(t, body, "&lt;em&gt;language&lt;/em&gt;")
	assert.Contains(t, body, "Unknown")
	assert.Less(t, strings.Index(body, "What is Go?"), strings.Index(body, "Orphan"))
}

func TestUserRSS(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	defer ts.Close()

	alice, err := ts.CreateUser(ctx, &store.User{Username: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	_, err = ts.CreateChatEntry(ctx, &store.ChatEntry{UserID: alice.ID, ThreadID: "t1", Message: "hi", Response: "hello"})
	require.NoError(t, err)

	service := NewRSSService(&profile.Profile{}, ts, staticEntries{})
	e := echo.New()
	service.RegisterRoutes(e.Group(""))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/u/alice/rss.xml", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>hi</title>")

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/u/nobody/rss.xml", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
