package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestTokenStore(t *testing.T) *TokenStore {
	t.Helper()
	db, err := openDB(context.Background(), StoreConfig{Driver: "sqlite3", DSN: filepath.Join(t.TempDir(), "chronos.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewTokenStore(db)
}

func TestTokenStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	tokens := newTestTokenStore(t)

	_, err := tokens.Load(ctx, "default")
	assert.ErrorIs(t, err, errNoToken)

	expiry := time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)
	require.NoError(t, tokens.Save(ctx, "default", &oauth2.Token{AccessToken: "a1", RefreshToken: "r1", Expiry: expiry}))
	require.NoError(t, tokens.Save(ctx, "default", &oauth2.Token{AccessToken: "a2", RefreshToken: "r1", Expiry: expiry}))

	token, err := tokens.Load(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "a2", token.AccessToken)
	assert.Equal(t, "r1", token.RefreshToken)
	assert.True(t, token.Expiry.Equal(expiry))
}

func TestTokenStore_ClientWithoutToken(t *testing.T) {
	tokens := newTestTokenStore(t)

	_, err := tokens.Client(context.Background(), &oauth2.Config{}, "secondary", time.Second)

	var authErr *AuthorizationExpiredError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "secondary", authErr.Account)
}

func TestTokenStore_ClientWithValidToken(t *testing.T) {
	ctx := context.Background()
	tokens := newTestTokenStore(t)
	require.NoError(t, tokens.Save(ctx, "default", &oauth2.Token{
		AccessToken: "a1", RefreshToken: "r1", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour),
	}))

	client, err := tokens.Client(ctx, &oauth2.Config{}, "default", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, client.Timeout)
}

func TestTokenStore_ClientRefreshRejected(t *testing.T) {
	ctx := context.Background()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`))
	}))
	defer server.Close()

	tokens := newTestTokenStore(t)
	require.NoError(t, tokens.Save(ctx, "default", &oauth2.Token{
		AccessToken: "a1", RefreshToken: "r1", Expiry: time.Now().Add(-time.Hour),
	}))
	config := &oauth2.Config{ClientID: "id", ClientSecret: "secret", Endpoint: oauth2.Endpoint{TokenURL: server.URL}}

	_, err := tokens.Client(ctx, config, "default", time.Second)

	var authErr *AuthorizationExpiredError
	require.ErrorAs(t, err, &authErr)
	var retrieveErr *oauth2.RetrieveError
	assert.ErrorAs(t, err, &retrieveErr)
}

func TestTokenStore_ClientRefreshSaved(t *testing.T) {
	ctx := context.Background()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"a2","token_type":"Bearer","expires_in":3600}`))
	}))
	defer server.Close()

	tokens := newTestTokenStore(t)
	require.NoError(t, tokens.Save(ctx, "default", &oauth2.Token{
		AccessToken: "a1", RefreshToken: "r1", Expiry: time.Now().Add(-time.Hour),
	}))
	config := &oauth2.Config{ClientID: "id", ClientSecret: "secret", Endpoint: oauth2.Endpoint{TokenURL: server.URL}}

	_, err := tokens.Client(ctx, config, "default", time.Second)
	require.NoError(t, err)

	token, err := tokens.Load(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "a2", token.AccessToken)
	assert.Equal(t, "r1", token.RefreshToken, "refresh token kept when not rotated")
}
