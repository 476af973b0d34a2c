package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"
	"github.com/pkg/errors"

	"github.com/murmurchat/murmur/internal/chat"
	"github.com/murmurchat/murmur/store"
)

// ─────────────────────────────────────────────────────────────────────────────
// Constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	// chatSessionCookieName keys the in-memory chat session of a browser.
	chatSessionCookieName = "murmur_chat"

	signInPath = "/"
)

// ─────────────────────────────────────────────────────────────────────────────
// Request / Response types
// ─────────────────────────────────────────────────────────────────────────────

type chatRequest struct {
	Content string `json:"content"`
}

type chatStateResponse struct {
	chat.Snapshot
	Authenticated bool `json:"authenticated"`
	NeedsUsername bool `json:"needsUsername"`
	// SignInRequired is set for guests whose one-time chat is spent; the
	// client shows a call to action instead of the composer.
	SignInRequired bool   `json:"signInRequired"`
	Redirect       string `json:"redirect,omitempty"`
}

type exchangeResponse struct {
	Reply              *chat.Message   `json:"reply,omitempty"`
	Entry              *entryResponse  `json:"entry,omitempty"`
	Transcript         []chat.Message  `json:"transcript"`
	ClearInput         bool            `json:"clearInput"`
	HasUsedOneTimeChat bool            `json:"hasUsedOneTimeChat"`
	Error              *exchangeFailed `json:"error,omitempty"`
}

type exchangeFailed struct {
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

type entryResponse struct {
	ID        int32  `json:"id"`
	UserID    int32  `json:"userId"`
	ThreadID  string `json:"threadId"`
	Username  string `json:"username,omitempty"`
	Message   string `json:"message"`
	Response  string `json:"response"`
	CreatedTs int64  `json:"createdTs"`
}

func convertEntry(entry *store.ChatEntry) *entryResponse {
	if entry == nil {
		return nil
	}
	return &entryResponse{
		ID:        entry.ID,
		UserID:    entry.UserID,
		ThreadID:  entry.ThreadID,
		Username:  entry.Username,
		Message:   entry.Message,
		Response:  entry.Response,
		CreatedTs: entry.CreatedTs,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Route registration (called from v1.go)
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) registerChatRoutes(g *echo.Group) {
	g.GET("/chat", s.getChat)
	g.POST("/chat/messages", s.sendChatMessage)
	g.POST("/chat/messages/:index/retry", s.retryChatMessage)
	g.POST("/chat/threads", s.startChatThread)
	g.DELETE("/chats/:id", s.deleteChatEntry)
}

// chatSession returns the session of the browser, creating one and setting
// its cookie when needed.
func (s *APIV1Service) chatSession(c *echo.Context) *chat.Session {
	var id string
	if cookie, err := c.Cookie(chatSessionCookieName); err == nil {
		id = cookie.Value
	}
	sess := s.Sessions.GetOrCreate(c.Request().Context(), id)
	if sess.ID != id {
		c.SetCookie(&http.Cookie{
			Name:     chatSessionCookieName,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   !s.Profile.IsDev(),
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

// ─────────────────────────────────────────────────────────────────────────────
// Chat state
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) getChat(c *echo.Context) error {
	gate := s.Authenticator.Gate(c)
	sess := s.chatSession(c)
	resp := chatStateResponse{
		Snapshot:      sess.Snapshot(),
		Authenticated: gate.Authenticated,
		NeedsUsername: gate.NeedsUsername,
	}
	if !gate.Authenticated && resp.HasUsedOneTimeChat {
		resp.SignInRequired = true
		resp.Redirect = signInPath
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *APIV1Service) startChatThread(c *echo.Context) error {
	sess := s.chatSession(c)
	sess.Reset()
	return c.JSON(http.StatusOK, sess.Snapshot())
}

// ─────────────────────────────────────────────────────────────────────────────
// Message exchange
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) sendChatMessage(c *echo.Context) error {
	if err := s.admitExchange(c); err != nil {
		return err
	}
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}
	gate := s.Authenticator.Gate(c)
	sess := s.chatSession(c)
	result, err := s.Exchanger.Send(c.Request().Context(), sess, gate.User, req.Content)
	return s.exchangeResponse(c, sess, result, err)
}

func (s *APIV1Service) retryChatMessage(c *echo.Context) error {
	if err := s.admitExchange(c); err != nil {
		return err
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return invalid(c, "index", "index must be a number")
	}
	gate := s.Authenticator.Gate(c)
	sess := s.chatSession(c)
	result, err := s.Exchanger.Retry(c.Request().Context(), sess, gate.User, index)
	return s.exchangeResponse(c, sess, result, err)
}

func (s *APIV1Service) admitExchange(c *echo.Context) error {
	if s.Exchanger == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "AI chat is not configured")
	}
	if !s.limiter.Allow(c.RealIP()) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many messages, slow down")
	}
	return nil
}

// exchangeResponse reports the outcome of an exchange together with the
// transcript, so the client can render partial progress after a failure.
func (s *APIV1Service) exchangeResponse(c *echo.Context, sess *chat.Session, result *chat.Result, err error) error {
	snapshot := sess.Snapshot()
	resp := exchangeResponse{
		Transcript:         snapshot.Transcript,
		ClearInput:         s.Exchanger.ClearInput(err),
		HasUsedOneTimeChat: snapshot.HasUsedOneTimeChat,
	}
	if result != nil {
		resp.Reply = &result.Reply
		resp.Entry = convertEntry(result.Entry)
	}
	if err == nil {
		return c.JSON(http.StatusOK, resp)
	}

	status := http.StatusInternalServerError
	resp.Error = &exchangeFailed{Message: err.Error()}
	var serviceErr *chat.ServiceError
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		status = http.StatusBadRequest
		resp.Error.Field = "content"
	case errors.Is(err, chat.ErrInvalidIndex):
		status = http.StatusBadRequest
		resp.Error.Field = "index"
	case errors.Is(err, chat.ErrAuthRequired):
		status = http.StatusUnauthorized
		resp.Error.Redirect = signInPath
	case errors.Is(err, chat.ErrBusy):
		status = http.StatusConflict
	case errors.As(err, &serviceErr):
		if serviceErr.Op == chat.OpGenerate {
			status = http.StatusBadGateway
			resp.Error.Message = "the AI service failed to answer, please try again"
		} else {
			resp.Error.Message = "the reply could not be saved"
		}
	}
	return c.JSON(status, resp)
}

// ─────────────────────────────────────────────────────────────────────────────
// Entry deletion
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) deleteChatEntry(c *echo.Context) error {
	user, err := s.Authenticator.RequireUser(c)
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "chat entry not found")
	}
	entryID := int32(id)

	ctx := c.Request().Context()
	entry, err := s.Store.GetChatEntry(ctx, &store.FindChatEntry{ID: &entryID})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	// Entries of other users are reported as missing.
	if entry == nil || entry.UserID != user.ID {
		return echo.NewHTTPError(http.StatusNotFound, "chat entry not found")
	}
	if err := s.Store.DeleteChatEntry(ctx, &store.DeleteChatEntry{ID: entryID}); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
