// Package oauth2 is the generic OAuth 2.0 sign-in provider.
package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
	// EmailField is the userinfo claim holding the email. Defaults to "email".
	EmailField string
}

// IdentityProvider represents an OAuth2 Identity Provider.
type IdentityProvider struct {
	config *Config
}

// IdentityProviderUserInfo is the user identity returned by the provider.
type IdentityProviderUserInfo struct {
	Email string
}

// NewIdentityProvider initializes a new OAuth2 Identity Provider with the given configuration.
func NewIdentityProvider(config *Config) (*IdentityProvider, error) {
	for v, field := range map[string]string{
		config.ClientID:    "clientId",
		config.AuthURL:     "authUrl",
		config.TokenURL:    "tokenUrl",
		config.UserInfoURL: "userInfoUrl",
	} {
		if v == "" {
			return nil, errors.Errorf(`the field "%s" is empty but required`, field)
		}
	}
	if config.EmailField == "" {
		config.EmailField = "email"
	}
	return &IdentityProvider{config: config}, nil
}

func (p *IdentityProvider) oauth2Config(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: p.config.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       p.config.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.config.AuthURL,
			TokenURL:  p.config.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthCodeURL returns the provider's consent page URL.
func (p *IdentityProvider) AuthCodeURL(state, redirectURL string) string {
	return p.oauth2Config(redirectURL).AuthCodeURL(state)
}

// ExchangeToken returns the exchanged OAuth2 access token.
func (p *IdentityProvider) ExchangeToken(ctx context.Context, redirectURL, code string) (string, error) {
	token, err := p.oauth2Config(redirectURL).Exchange(ctx, code)
	if err != nil {
		return "", errors.Wrap(err, "failed to exchange access token")
	}
	if token.AccessToken == "" {
		return "", errors.New(`missing "access_token" from authorization response`)
	}
	return token.AccessToken, nil
}

// UserInfo returns the parsed user information using the given OAuth2 token.
func (p *IdentityProvider) UserInfo(ctx context.Context, token string) (*IdentityProviderUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserInfoURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create user info request")
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user information")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("user info request returned %d", resp.StatusCode)
	}

	var claims map[string]any
	if err := json.Unmarshal(body, &claims); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response body")
	}
	slog.Debug("oauth2 user info claims", slog.Any("claims", claims))

	email, ok := claims[p.config.EmailField].(string)
	if !ok || email == "" {
		return nil, errors.Errorf("the field %q is not found in user info", p.config.EmailField)
	}
	return &IdentityProviderUserInfo{Email: email}, nil
}
