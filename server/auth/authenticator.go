package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"
	"github.com/pkg/errors"

	"github.com/murmurchat/murmur/store"
)

// ErrNoCredentials is returned when a request carries no access token.
var ErrNoCredentials = errors.New("no access token")

const gateContextKey = "murmur.gate"

// Gate is the session state of one request.
type Gate struct {
	Authenticated bool
	User          *store.User
	// NeedsUsername is set until a user created through OAuth picks a username.
	NeedsUsername bool
}

// Authenticator resolves the user behind a request.
type Authenticator struct {
	store  *store.Store
	secret string
}

func NewAuthenticator(store *store.Store, secret string) *Authenticator {
	return &Authenticator{store: store, secret: secret}
}

// Authenticate validates the bearer token, or the access token cookie when
// there is no Authorization header, and loads its user.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*store.User, error) {
	token := extractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		if cookie, err := r.Cookie(AccessTokenCookieName); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		return nil, ErrNoCredentials
	}

	userID, err := ParseAccessToken(token, []byte(a.secret))
	if err != nil {
		return nil, err
	}
	user, err := a.store.GetUser(ctx, &store.FindUser{ID: &userID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user")
	}
	if user == nil {
		return nil, errors.Errorf("user %d not found", userID)
	}
	return user, nil
}

// Gate returns the session state of the request, computing it on first use.
func (a *Authenticator) Gate(c *echo.Context) *Gate {
	if gate, ok := c.Get(gateContextKey).(*Gate); ok {
		return gate
	}
	gate := &Gate{}
	user, err := a.Authenticate(c.Request().Context(), c.Request())
	if err == nil {
		gate.Authenticated = true
		gate.User = user
		gate.NeedsUsername = user.NeedsUsername
	} else if !errors.Is(err, ErrNoCredentials) {
		slog.Debug("rejected access token", slog.Any("err", err))
	}
	c.Set(gateContextKey, gate)
	return gate
}

// Middleware computes the gate once for every request.
func (a *Authenticator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			a.Gate(c)
			return next(c)
		}
	}
}

// RequireUser returns the signed-in user or a 401 error.
func (a *Authenticator) RequireUser(c *echo.Context) (*store.User, error) {
	gate := a.Gate(c)
	if !gate.Authenticated {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return gate.User, nil
}

func extractBearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
