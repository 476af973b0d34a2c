package oauth2

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "client", r.PostForm.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"123","mail":"alice@example.com"}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestIdentityProvider(t *testing.T) {
	ctx := context.Background()
	server := newTestServer(t)

	provider, err := NewIdentityProvider(&Config{
		ClientID:     "client",
		ClientSecret: "secret",
		AuthURL:      server.URL + "/authorize",
		TokenURL:     server.URL + "/token",
		UserInfoURL:  server.URL + "/userinfo",
		Scopes:       []string{"email"},
		EmailField:   "mail",
	})
	require.NoError(t, err)

	consent, err := url.Parse(provider.AuthCodeURL("state-1", "http://localhost/callback"))
	require.NoError(t, err)
	assert.Equal(t, "/authorize", consent.Path)
	assert.Equal(t, "state-1", consent.Query().Get("state"))
	assert.Equal(t, "http://localhost/callback", consent.Query().Get("redirect_uri"))

	token, err := provider.ExchangeToken(ctx, "http://localhost/callback", "the-code")
	require.NoError(t, err)
	assert.Equal(t, "access", token)

	info, err := provider.UserInfo(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", info.Email)

	_, err = provider.UserInfo(ctx, "wrong")
	require.Error(t, err)
}

func TestIdentityProviderMissingEmailClaim(t *testing.T) {
	server := newTestServer(t)
	provider, err := NewIdentityProvider(&Config{
		ClientID:    "client",
		AuthURL:     server.URL + "/authorize",
		TokenURL:    server.URL + "/token",
		UserInfoURL: server.URL + "/userinfo",
	})
	require.NoError(t, err)
	_, err = provider.UserInfo(context.Background(), "access")
	require.Error(t, err)
}

func TestNewIdentityProviderValidates(t *testing.T) {
	_, err := NewIdentityProvider(&Config{ClientID: "client"})
	require.Error(t, err)
}
