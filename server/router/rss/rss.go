package rss

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/labstack/echo/v5"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/murmurchat/murmur/internal/feed"
	"github.com/murmurchat/murmur/internal/profile"
	"github.com/murmurchat/murmur/internal/thread"
	"github.com/murmurchat/murmur/store"
)

const (
	maxRSSItemCount = 100
	titleLength     = 64
)

// EntrySource lists recent chat entries.
type EntrySource interface {
	Entries() []*store.ChatEntry
}

type RSSService struct {
	Profile  *profile.Profile
	Store    *store.Store
	Feed     EntrySource
	markdown goldmark.Markdown
}

func NewRSSService(profile *profile.Profile, store *store.Store, source EntrySource) *RSSService {
	return &RSSService{
		Profile:  profile,
		Store:    store,
		Feed:     source,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (s *RSSService) RegisterRoutes(g *echo.Group) {
	g.GET("/feed/rss.xml", s.GetFeedRSS)
	g.GET("/u/:username/rss.xml", s.GetUserRSS)
}

// GetFeedRSS serves the public feed.
func (s *RSSService) GetFeedRSS(c *echo.Context) error {
	rss, err := s.generateRSS(c.Request().Context(), "Murmur", "/", s.Feed.Entries())
	if err != nil {
		slog.Error("failed to generate rss", slog.Any("err", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate rss")
	}
	return s.writeRSS(c, rss)
}

// GetUserRSS serves the entries of one user.
func (s *RSSService) GetUserRSS(c *echo.Context) error {
	ctx := c.Request().Context()
	username := c.Param("username")
	user, err := s.Store.GetUser(ctx, &store.FindUser{Username: &username})
	if err != nil {
		slog.Error("failed to find user", slog.Any("err", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to find user")
	}
	if user == nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	entries, err := s.Store.ListChatEntries(ctx, &store.FindChatEntry{
		UserID:               &user.ID,
		Limit:                maxRSSItemCount,
		OrderByCreatedTsDesc: true,
	})
	if err != nil {
		slog.Error("failed to list chat entries", slog.Any("err", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list chat entries")
	}
	for _, entry := range entries {
		entry.Username = user.Username
	}
	rss, err := s.generateRSS(ctx, "Murmur - "+user.Username, "/u/"+user.Username, entries)
	if err != nil {
		slog.Error("failed to generate rss", slog.Any("err", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate rss")
	}
	return s.writeRSS(c, rss)
}

func (s *RSSService) writeRSS(c *echo.Context, rss string) error {
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	return c.String(http.StatusOK, rss)
}

// generateRSS renders one item per thread, newest activity first, linking to
// the thread and carrying its latest exchange.
func (s *RSSService) generateRSS(_ context.Context, title, path string, entries []*store.ChatEntry) (string, error) {
	baseURL := strings.TrimRight(s.Profile.InstanceURL, "/")
	rssFeed := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: baseURL + path},
		Description: "Recent conversations",
		Created:     time.Now(),
	}

	threads := thread.Group(entries)
	if len(threads) > maxRSSItemCount {
		threads = threads[:maxRSSItemCount]
	}
	rssFeed.Items = make([]*feeds.Item, 0, len(threads))
	for _, t := range threads {
		first, last := t.First(), t.Last()
		content, err := s.renderExchange(last)
		if err != nil {
			return "", err
		}
		itemTitle, _ := thread.Truncate(first.Message, titleLength)
		username := last.Username
		if username == "" {
			username = feed.UnknownUsername
		}
		rssFeed.Items = append(rssFeed.Items, &feeds.Item{
			Id:          fmt.Sprintf("%s/feed/threads/%s", baseURL, t.ID),
			Title:       itemTitle,
			Link:        &feeds.Link{Href: fmt.Sprintf("%s/feed?expanded=%s", baseURL, t.ID)},
			Author:      &feeds.Author{Name: username},
			Description: content,
			Created:     time.Unix(first.CreatedTs, 0),
			Updated:     time.Unix(last.CreatedTs, 0),
		})
	}
	rss, err := rssFeed.ToRss()
	if err != nil {
		return "", errors.Wrap(err, "failed to encode rss")
	}
	return rss, nil
}

func (s *RSSService) renderExchange(entry *store.ChatEntry) (string, error) {
	var buf bytes.Buffer
	source := "**" + entry.Message + "**\n\n" + entry.Response
	if err := s.markdown.Convert([]byte(source), &buf); err != nil {
		return "", errors.Wrapf(err, "failed to render chat entry %d", entry.ID)
	}
	return buf.String(), nil
}
