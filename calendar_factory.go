package main

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// ProviderSource hands out the authorized calendar provider of a cohort.
type ProviderSource interface {
	ProviderFor(ctx context.Context, cohort Cohort) (CalendarProvider, error)
}

// CalendarFactory creates calendar providers and keeps them for the rest of
// the process, one per Google account or CalDAV server.
type CalendarFactory struct {
	config    *Config
	tokens    *TokenStore
	oauth     *oauth2.Config
	timeout   time.Duration
	providers map[string]CalendarProvider
}

func NewCalendarFactory(config *Config, tokens *TokenStore) *CalendarFactory {
	return &CalendarFactory{
		config:    config,
		tokens:    tokens,
		oauth:     newOAuthConfig(config),
		timeout:   config.HTTP.Timeout,
		providers: make(map[string]CalendarProvider),
	}
}

func (cf *CalendarFactory) ProviderFor(ctx context.Context, cohort Cohort) (CalendarProvider, error) {
	switch cohort.Provider {
	case "google":
		providerKey := "google-" + cohort.Account
		if provider, exists := cf.providers[providerKey]; exists {
			return provider, nil
		}
		client, err := cf.tokens.Client(ctx, cf.oauth, cohort.Account, cf.timeout)
		if err != nil {
			return nil, err
		}
		provider, err := NewGoogleCalendarProvider(ctx, client, cohort.Account)
		if err != nil {
			return nil, fmt.Errorf("error creating Google calendar provider: %w", err)
		}
		cf.providers[providerKey] = provider
		return provider, nil

	case "caldav":
		serverName := cohort.CalDAVServer
		if serverName == "" {
			return nil, fmt.Errorf("cohort %s uses CalDAV but names no caldav_server", cohort.ID)
		}
		serverConfig, ok := cf.config.CalDAVs[serverName]
		if !ok {
			return nil, fmt.Errorf("CalDAV server '%s' not found in configuration", serverName)
		}

		providerKey := "caldav-" + serverName
		if provider, exists := cf.providers[providerKey]; exists {
			return provider, nil
		}
		provider, err := NewCalDAVProvider(ctx, serverConfig.ServerURL, serverConfig.Username, serverConfig.Password)
		if err != nil {
			return nil, fmt.Errorf("error connecting to CalDAV server %s: %w", serverName, err)
		}
		cf.providers[providerKey] = provider
		return provider, nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cohort.Provider)
	}
}
