package v1

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/murmurchat/murmur/internal/chat"
	"github.com/murmurchat/murmur/internal/feed"
	"github.com/murmurchat/murmur/internal/profile"
	"github.com/murmurchat/murmur/plugin/ai"
	"github.com/murmurchat/murmur/plugin/idp/oauth2"
	"github.com/murmurchat/murmur/plugin/storage/s3"
	"github.com/murmurchat/murmur/plugin/vectorstore"
	"github.com/murmurchat/murmur/server/auth"
	"github.com/murmurchat/murmur/store"
)

// APIV1Service serves the JSON API under /api/v1.
type APIV1Service struct {
	Secret  string
	Profile *profile.Profile
	Store   *store.Store

	Authenticator *auth.Authenticator
	// Generator is nil when no AI provider is configured.
	Generator ai.Generator
	Exchanger *chat.Exchanger
	Sessions  *chat.Registry
	// Feed is the shared live view of recent entries.
	Feed *feed.Aggregator
	// VectorStore is nil unless semantic search is configured.
	VectorStore *vectorstore.Store
	// Archive is nil unless an S3 bucket is configured.
	Archive           *s3.Client
	IdentityProviders map[string]*oauth2.IdentityProvider

	limiter *limiterPool
}

// Plugins are the optional collaborators of the API service.
type Plugins struct {
	Generator   ai.Generator
	VectorStore *vectorstore.Store
	Archive     *s3.Client
}

func NewAPIV1Service(secret string, profile *profile.Profile, store *store.Store, feedAggregator *feed.Aggregator, plugins Plugins) *APIV1Service {
	service := &APIV1Service{
		Secret:            secret,
		Profile:           profile,
		Store:             store,
		Authenticator:     auth.NewAuthenticator(store, secret),
		Generator:         plugins.Generator,
		Sessions:          chat.NewRegistry(chat.DefaultIdleTTL),
		Feed:              feedAggregator,
		VectorStore:       plugins.VectorStore,
		Archive:           plugins.Archive,
		IdentityProviders: map[string]*oauth2.IdentityProvider{},
		limiter:           newLimiterPool(profile.MessagesPerMinute),
	}
	if plugins.Generator != nil {
		policy := chat.ClearAlways
		if profile.KeepInputOnFailure {
			policy = chat.ClearOnSuccess
		}
		service.Exchanger = chat.NewExchanger(plugins.Generator, store, policy, profile.AIHistoryTurns)
	}
	for name, provider := range profile.OAuthProviders {
		identityProvider, err := oauth2.NewIdentityProvider(&oauth2.Config{
			ClientID:     provider.ClientID,
			ClientSecret: provider.ClientSecret,
			AuthURL:      provider.AuthURL,
			TokenURL:     provider.TokenURL,
			UserInfoURL:  provider.UserInfoURL,
			Scopes:       provider.Scopes,
			EmailField:   provider.EmailField,
		})
		if err != nil {
			slog.Warn("skipping oauth provider", slog.String("provider", name), slog.Any("err", err))
			continue
		}
		service.IdentityProviders[name] = identityProvider
	}
	return service
}

// RegisterGateway registers the API routes on e.
func (s *APIV1Service) RegisterGateway(_ context.Context, e *echo.Echo) error {
	g := e.Group("/api/v1", s.Authenticator.Middleware())
	s.registerAuthRoutes(g)
	s.registerChatRoutes(g)
	s.registerFeedRoutes(g)
	s.registerDocumentRoutes(g)
	return nil
}

func (s *APIV1Service) Close() {
	s.limiter.Close()
	if err := s.Sessions.Close(); err != nil {
		slog.Warn("failed to close chat sessions", slog.Any("err", err))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Shared response helpers
// ─────────────────────────────────────────────────────────────────────────────

type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func invalid(c *echo.Context, field, message string) error {
	return c.JSON(http.StatusBadRequest, validationError{Field: field, Message: message})
}

type userResponse struct {
	ID            int32  `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	NeedsUsername bool   `json:"needsUsername"`
	CreatedTs     int64  `json:"createdTs"`
}

func convertUser(user *store.User) *userResponse {
	if user == nil {
		return nil
	}
	return &userResponse{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		NeedsUsername: user.NeedsUsername,
		CreatedTs:     user.CreatedTs,
	}
}
