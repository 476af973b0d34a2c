package v1

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/pkg/errors"

	"github.com/murmurchat/murmur/internal/util"
	"github.com/murmurchat/murmur/server/auth"
	"github.com/murmurchat/murmur/store"
)

const (
	oauthStateCookieName = "murmur_oauth_state"
	oauthStateLifetime   = 5 * time.Minute

	chooseUsernamePath = "/choose-username"
	chatPath           = "/chat"
)

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type signInRequest struct {
	// Identifier is an email or a username.
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type usernameRequest struct {
	Username string `json:"username"`
}

type authResponse struct {
	User        *userResponse `json:"user"`
	AccessToken string        `json:"accessToken"`
}

type sessionStateResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *userResponse `json:"user,omitempty"`
	NeedsUsername bool          `json:"needsUsername"`
}

func (s *APIV1Service) registerAuthRoutes(g *echo.Group) {
	g.POST("/auth/signup", s.signUp)
	g.POST("/auth/signin", s.signIn)
	g.POST("/auth/signout", s.signOut)
	g.GET("/auth/session", s.getSession)
	g.GET("/auth/oauth/:provider", s.startOAuth)
	g.GET("/auth/oauth/:provider/callback", s.finishOAuth)
	g.GET("/users/me", s.getCurrentUser)
	g.PUT("/users/me/username", s.updateUsername)
}

// ─────────────────────────────────────────────────────────────────────────────
// Password sign up / sign in
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) signUp(c *echo.Context) error {
	var req signUpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if !util.ValidateEmail(req.Email) {
		return invalid(c, "email", "invalid email address")
	}
	if !util.ValidatePassword(req.Password) {
		return invalid(c, "password", "password must be at least 6 characters")
	}
	if req.Username != "" && !util.ValidateUsername(req.Username) {
		return invalid(c, "username", "username must be 3-32 letters, digits, '_' or '-'")
	}

	ctx := c.Request().Context()
	// Best-effort pre-checks for friendlier messages; the unique constraints decide.
	if req.Username != "" {
		existing, err := s.Store.GetUser(ctx, &store.FindUser{Username: &req.Username})
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if existing != nil {
			return echo.NewHTTPError(http.StatusConflict, "username is already taken")
		}
	}
	existing, err := s.Store.GetUser(ctx, &store.FindUser{Email: &req.Email})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if existing != nil {
		return echo.NewHTTPError(http.StatusConflict, "email is already registered")
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	user, err := s.Store.CreateUser(ctx, &store.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: passwordHash,
	})
	if errors.Is(err, store.ErrConflict) {
		return echo.NewHTTPError(http.StatusConflict, "username or email is already taken")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	slog.Info("user signed up", slog.Int("user", int(user.ID)))
	return s.issueAccessToken(c, http.StatusCreated, user)
}

func (s *APIV1Service) signIn(c *echo.Context) error {
	var req signInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		return invalid(c, "identifier", "email or username is required")
	}
	if req.Password == "" {
		return invalid(c, "password", "password is required")
	}

	find := &store.FindUser{}
	if util.LooksLikeEmail(identifier) {
		find.Email = &identifier
	} else {
		find.Username = &identifier
	}
	user, err := s.Store.GetUser(c.Request().Context(), find)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	return s.issueAccessToken(c, http.StatusOK, user)
}

func (s *APIV1Service) signOut(c *echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     auth.AccessTokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, map[string]string{"redirect": "/"})
}

func (s *APIV1Service) getSession(c *echo.Context) error {
	gate := s.Authenticator.Gate(c)
	return c.JSON(http.StatusOK, sessionStateResponse{
		Authenticated: gate.Authenticated,
		User:          convertUser(gate.User),
		NeedsUsername: gate.NeedsUsername,
	})
}

func (s *APIV1Service) issueAccessToken(c *echo.Context, status int, user *store.User) error {
	expiresAt := time.Now().Add(auth.AccessTokenDuration)
	token, err := auth.GenerateAccessToken(user.Username, user.ID, expiresAt, []byte(s.Secret))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	s.setAccessTokenCookie(c, token, expiresAt)
	return c.JSON(status, authResponse{User: convertUser(user), AccessToken: token})
}

func (s *APIV1Service) setAccessTokenCookie(c *echo.Context, token string, expiresAt time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     auth.AccessTokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   !s.Profile.IsDev(),
		SameSite: http.SameSiteLaxMode,
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// OAuth sign in
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) oauthRedirectURL(provider string) string {
	return strings.TrimRight(s.Profile.InstanceURL, "/") + "/api/v1/auth/oauth/" + provider + "/callback"
}

func (s *APIV1Service) startOAuth(c *echo.Context) error {
	name := c.Param("provider")
	provider, ok := s.IdentityProviders[name]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown identity provider")
	}
	state := uuid.NewString()
	c.SetCookie(&http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     "/api/v1/auth/oauth",
		MaxAge:   int(oauthStateLifetime.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusFound, provider.AuthCodeURL(state, s.oauthRedirectURL(name)))
}

func (s *APIV1Service) finishOAuth(c *echo.Context) error {
	name := c.Param("provider")
	provider, ok := s.IdentityProviders[name]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown identity provider")
	}
	stateCookie, err := c.Cookie(oauthStateCookieName)
	if err != nil || stateCookie.Value == "" || c.QueryParam("state") != stateCookie.Value {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid oauth state")
	}
	code := c.QueryParam("code")
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing authorization code")
	}

	ctx := c.Request().Context()
	token, err := provider.ExchangeToken(ctx, s.oauthRedirectURL(name), code)
	if err != nil {
		slog.Error("oauth token exchange failed", slog.String("provider", name), slog.Any("err", err))
		return echo.NewHTTPError(http.StatusBadGateway, "failed to sign in with "+name)
	}
	info, err := provider.UserInfo(ctx, token)
	if err != nil {
		slog.Error("oauth user info failed", slog.String("provider", name), slog.Any("err", err))
		return echo.NewHTTPError(http.StatusBadGateway, "failed to sign in with "+name)
	}

	user, err := s.findOrCreateOAuthUser(ctx, info.Email)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	expiresAt := time.Now().Add(auth.AccessTokenDuration)
	accessToken, err := auth.GenerateAccessToken(user.Username, user.ID, expiresAt, []byte(s.Secret))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	s.setAccessTokenCookie(c, accessToken, expiresAt)
	if user.NeedsUsername {
		return c.Redirect(http.StatusFound, chooseUsernamePath)
	}
	return c.Redirect(http.StatusFound, chatPath)
}

// findOrCreateOAuthUser returns the user with email, creating one that still
// needs a username on first sign in.
func (s *APIV1Service) findOrCreateOAuthUser(ctx context.Context, email string) (*store.User, error) {
	user, err := s.Store.GetUser(ctx, &store.FindUser{Email: &email})
	if err != nil || user != nil {
		return user, err
	}
	user, err = s.Store.CreateUser(ctx, &store.User{Email: email, NeedsUsername: true})
	if errors.Is(err, store.ErrConflict) {
		// Created concurrently by another callback.
		return s.Store.GetUser(ctx, &store.FindUser{Email: &email})
	}
	return user, err
}

// ─────────────────────────────────────────────────────────────────────────────
// Current user
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) getCurrentUser(c *echo.Context) error {
	user, err := s.Authenticator.RequireUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, convertUser(user))
}

func (s *APIV1Service) updateUsername(c *echo.Context) error {
	user, err := s.Authenticator.RequireUser(c)
	if err != nil {
		return err
	}
	var req usernameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}
	username := strings.TrimSpace(req.Username)
	if !util.ValidateUsername(username) {
		return invalid(c, "username", "username must be 3-32 letters, digits, '_' or '-'")
	}

	ctx := c.Request().Context()
	existing, err := s.Store.GetUser(ctx, &store.FindUser{Username: &username})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if existing != nil && existing.ID != user.ID {
		return echo.NewHTTPError(http.StatusConflict, "username is already taken")
	}

	needsUsername := false
	updated, err := s.Store.UpdateUser(ctx, &store.UpdateUser{
		ID:            user.ID,
		Username:      &username,
		NeedsUsername: &needsUsername,
	})
	if errors.Is(err, store.ErrConflict) {
		return echo.NewHTTPError(http.StatusConflict, "username is already taken")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, convertUser(updated))
}
