package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murmurchat/murmur/internal/profile"
	teststore "github.com/murmurchat/murmur/store/test"
)

func TestServerRoutes(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)

	s, err := NewServer(ctx, &profile.Profile{Mode: "dev", Data: t.TempDir(), Secret: "test-secret", Version: "0.1.0"}, ts)
	require.NoError(t, err)
	require.NoError(t, s.feed.Start(ctx))
	s.StartBackgroundRunners(ctx)
	defer s.Shutdown(ctx)

	tests := []struct {
		path     string
		status   int
		contains string
	}{
		{path: "/healthz", status: http.StatusOK, contains: "Service ready."},
		{path: "/metrics", status: http.StatusOK, contains: "murmur_chat_event_subscribers 1"},
		{path: "/feed/rss.xml", status: http.StatusOK, contains: "<rss"},
		{path: "/api/v1/auth/session", status: http.StatusOK, contains: `"authenticated":false`},
		{path: "/api/v1/feed", status: http.StatusOK, contains: `"threads":[]`},
	}
	for _, test := range tests {
		rec := httptest.NewRecorder()
		s.GetEcho().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, test.path, nil))
		assert.Equal(t, test.status, rec.Code, test.path)
		assert.Contains(t, rec.Body.String(), test.contains, test.path)
	}

	// Without an AI provider the chat is unavailable rather than broken.
	rec := httptest.NewRecorder()
	s.GetEcho().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chat/messages", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
