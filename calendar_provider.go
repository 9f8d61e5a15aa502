package main

//go:generate mockgen -source=calendar_provider.go -destination=mock_calendar_provider_test.go -package=main

import (
	"context"
	"time"
)

// CalendarProvider is the remote calendar a cohort is reconciled against.
// A batch call either applies every operation or returns the error of the
// first one that failed; operations already applied are not rolled back.
type CalendarProvider interface {
	GetCalendar(ctx context.Context, calendarID string) error
	// ListEvents returns single event instances starting at or after timeMin,
	// ordered by start time, at most maxResults of them.
	ListEvents(ctx context.Context, calendarID string, timeMin time.Time, maxResults int64) ([]*Event, error)
	BatchDelete(ctx context.Context, calendarID string, eventIDs []string) error
	BatchInsert(ctx context.Context, calendarID string, events []*Event) error
}

type Event struct {
	ID              string
	Summary         string
	Description     string
	Location        string
	Start           time.Time
	End             time.Time
	TimeZone        string
	ReminderMinutes int64
	Status          string
}
