package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

var errNoToken = errors.New("no token stored")

func newOAuthConfig(config *Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  config.RedirectURL,
		Scopes:       []string{calendar.CalendarScope},
	}
}

// TokenStore keeps one OAuth token per account name in the chronos database.
type TokenStore struct {
	db *sqlx.DB
}

func NewTokenStore(db *sqlx.DB) *TokenStore {
	return &TokenStore{db: db}
}

func (s *TokenStore) Load(ctx context.Context, accountName string) (*oauth2.Token, error) {
	var tokenJSON string
	err := s.db.GetContext(ctx, &tokenJSON, s.db.Rebind("SELECT token FROM tokens WHERE account_name = ?"), accountName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("read token for %s: %w", accountName, err)
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(tokenJSON), &token); err != nil {
		return nil, fmt.Errorf("decode token for %s: %w", accountName, err)
	}
	return &token, nil
}

func (s *TokenStore) Save(ctx context.Context, accountName string, token *oauth2.Token) error {
	tokenJSON, err := json.Marshal(token)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO tokens (account_name, token) VALUES (?, ?)
		ON CONFLICT (account_name) DO UPDATE SET token = excluded.token`), accountName, string(tokenJSON))
	if err != nil {
		return fmt.Errorf("save token for %s: %w", accountName, err)
	}
	return nil
}

// Client returns an authorized HTTP client for accountName. A missing token
// or a refresh rejected by Google is reported as AuthorizationExpiredError;
// obtaining a new token is left to the `auth` command.
func (s *TokenStore) Client(ctx context.Context, config *oauth2.Config, accountName string, timeout time.Duration) (*http.Client, error) {
	token, err := s.Load(ctx, accountName)
	if errors.Is(err, errNoToken) {
		return nil, &AuthorizationExpiredError{Account: accountName, Err: err}
	}
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: timeout})
	newToken, err := config.TokenSource(ctx, token).Token()
	if err != nil {
		return nil, &AuthorizationExpiredError{Account: accountName, Err: err}
	}

	if newToken.AccessToken != token.AccessToken {
		printVerbosely(2, "  🔑 Token refreshed for account %s.\n", accountName)
		if err := s.Save(ctx, accountName, newToken); err != nil {
			return nil, err
		}
	}

	client := config.Client(ctx, newToken)
	client.Timeout = timeout
	return client, nil
}

// getTokenFromWeb runs the offline consent flow: the user opens the link,
// approves, and pastes back the code (or the whole redirected URL).
func getTokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Printf("Go to the following link in your browser then type the "+
		"authorization code: \n%v\n", authURL)

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}
	authCode := strings.TrimSpace(input)
	if u, err := url.Parse(authCode); err == nil && u.Query().Get("code") != "" {
		authCode = u.Query().Get("code")
	}

	tok, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web: %w", err)
	}
	return tok, nil
}
