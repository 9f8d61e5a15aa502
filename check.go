package main

import (
	"context"
	"fmt"
	"log"
	"os"
)

// checkCalendars verifies that every cohort calendar can be reached with
// its configured credentials.
func checkCalendars(ctx context.Context) {
	a := openApp(ctx)
	defer a.Close()

	factory := NewCalendarFactory(a.config, a.tokens)
	failed := 0
	for _, cohort := range a.config.SortedCohorts() {
		if err := checkCohortCalendar(ctx, factory, cohort); err != nil {
			log.Printf("❌ %s (%s): %v", cohort.ID, cohort.CalendarID, err)
			failed++
			continue
		}
		fmt.Printf("  ✅ %s (%s %s)\n", cohort.ID, cohort.Provider, cohort.CalendarID)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func checkCohortCalendar(ctx context.Context, providers ProviderSource, cohort Cohort) error {
	provider, err := providers.ProviderFor(ctx, cohort)
	if err != nil {
		return err
	}
	if err := provider.GetCalendar(ctx, cohort.CalendarID); err != nil {
		return classifyCalendarError("get", cohort.Account, err)
	}
	return nil
}
