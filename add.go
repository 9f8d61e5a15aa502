package main

import (
	"context"
	"fmt"
	"log"
)

// authAccount runs the OAuth consent flow for a Google account and stores
// the resulting token, then checks every cohort calendar bound to it.
func authAccount(ctx context.Context, args []string) {
	a := openApp(ctx)
	defer a.Close()

	accountName := "default"
	if len(args) > 0 {
		accountName = args[0]
	} else {
		fmt.Print("👤 Enter account name (default): ")
		var input string
		fmt.Scanln(&input)
		if input != "" {
			accountName = input
		}
	}

	if a.config.ClientID == "" || a.config.ClientSecret == "" {
		log.Fatalf("Error: client_id and client_secret must be set in the configuration or the environment")
	}

	fmt.Printf("🚀 Authorizing account %s...\n", accountName)
	oauth := newOAuthConfig(a.config)
	token, err := getTokenFromWeb(ctx, oauth)
	if err != nil {
		log.Fatalf("Error obtaining token: %v", err)
	}
	if err := a.tokens.Save(ctx, accountName, token); err != nil {
		log.Fatalf("Error saving token: %v", err)
	}
	fmt.Printf("✅ Token stored for account %s\n", accountName)

	factory := NewCalendarFactory(a.config, a.tokens)
	for _, cohort := range a.config.SortedCohorts() {
		if cohort.Provider != "google" || cohort.Account != accountName {
			continue
		}
		if err := checkCohortCalendar(ctx, factory, cohort); err != nil {
			log.Printf("❌ Calendar of cohort %s is not reachable: %v", cohort.ID, err)
			continue
		}
		fmt.Printf("  📅 Calendar of cohort %s is reachable\n", cohort.ID)
	}
}
