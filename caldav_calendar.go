package main

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
)

// CalDAV queries need an upper bound; nothing in a timetable feed reaches
// further than a school year.
const caldavQueryHorizon = 18 * 30 * 24 * time.Hour

type CalDAVProvider struct {
	client    *caldav.Client
	serverURL string
}

func NewCalDAVProvider(ctx context.Context, serverURL, username, password string) (*CalDAVProvider, error) {
	baseURL, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid CalDAV server URL: %w", err)
	}

	// Create HTTP client with authentication if needed
	var httpClient webdav.HTTPClient = http.DefaultClient
	if username != "" && password != "" {
		httpClient = webdav.HTTPClientWithBasicAuth(httpClient, username, password)
	}

	c, err := caldav.NewClient(httpClient, baseURL.String())
	if err != nil {
		return nil, fmt.Errorf("failed to create CalDAV client: %w", err)
	}

	return &CalDAVProvider{
		client:    c,
		serverURL: serverURL,
	}, nil
}

func (c *CalDAVProvider) GetCalendar(ctx context.Context, calendarID string) error {
	calPath, err := calendarPath(calendarID)
	if err != nil {
		return err
	}

	// Look the calendar up among its siblings in the home set
	homeSetPath := "/"
	if parts := strings.Split(strings.TrimRight(calPath, "/"), "/"); len(parts) > 1 {
		homeSetPath = strings.Join(parts[:len(parts)-1], "/") + "/"
	}

	calendars, err := c.client.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return classifyCalendarError("find calendars", "", err)
	}
	for _, cal := range calendars {
		if strings.TrimRight(cal.Path, "/") == strings.TrimRight(calPath, "/") {
			return nil
		}
	}
	return fmt.Errorf("calendar not found at path: %s", calPath)
}

func (c *CalDAVProvider) ListEvents(ctx context.Context, calendarID string, timeMin time.Time, maxResults int64) ([]*Event, error) {
	calPath, err := calendarPath(calendarID)
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     "VCALENDAR",
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{{
				Name:  "VEVENT",
				Start: timeMin,
				End:   timeMin.Add(caldavQueryHorizon),
			}},
		},
	}

	objects, err := c.client.QueryCalendar(ctx, calPath, query)
	if err != nil {
		return nil, classifyCalendarError("list events", "", err)
	}

	var result []*Event
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		// One object may hold several VEVENTs (recurrence overrides); it is
		// listed once, by its first instance in range.
		for _, comp := range obj.Data.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			start, _ := comp.Props.DateTime(ical.PropDateTimeStart, time.UTC)
			if start.Before(timeMin) {
				continue
			}
			end, _ := comp.Props.DateTime(ical.PropDateTimeEnd, time.UTC)
			// Other clients store objects under their own names, so the
			// object path is the only reliable delete handle.
			result = append(result, &Event{
				ID:          obj.Path,
				Summary:     getTextProp(comp.Props, ical.PropSummary),
				Description: getTextProp(comp.Props, ical.PropDescription),
				Location:    getTextProp(comp.Props, ical.PropLocation),
				Start:       start,
				End:         end,
				Status:      strings.ToLower(getTextProp(comp.Props, ical.PropStatus)),
			})
			break
		}
	}

	sort.SliceStable(result, func(i, j int) bool { return result[i].Start.Before(result[j].Start) })
	if maxResults > 0 && int64(len(result)) > maxResults {
		result = result[:maxResults]
	}
	return result, nil
}

// BatchDelete removes the events one request at a time; CalDAV has no batch
// endpoint.
func (c *CalDAVProvider) BatchDelete(ctx context.Context, calendarID string, eventIDs []string) error {
	calPath, err := calendarPath(calendarID)
	if err != nil {
		return err
	}
	for _, id := range eventIDs {
		objPath := id
		if !strings.HasPrefix(id, "/") {
			objPath = eventPath(calPath, id)
		}
		if err := c.client.RemoveAll(ctx, objPath); err != nil {
			return classifyCalendarError("delete event "+id, "", err)
		}
	}
	return nil
}

func (c *CalDAVProvider) BatchInsert(ctx context.Context, calendarID string, events []*Event) error {
	calPath, err := calendarPath(calendarID)
	if err != nil {
		return err
	}
	stamp := time.Now().UTC()
	for i, event := range events {
		uid := caldavEventUID(calendarID, i, event)
		if _, err := c.client.PutCalendarObject(ctx, eventPath(calPath, uid), toICalCalendar(uid, event, stamp)); err != nil {
			return classifyCalendarError("insert event "+event.Summary, "", err)
		}
	}
	return nil
}

func toICalCalendar(uid string, event *Event, stamp time.Time) *ical.Calendar {
	icalEvent := ical.NewEvent()
	icalEvent.Props.SetText(ical.PropUID, uid)
	icalEvent.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	icalEvent.Props.SetText(ical.PropSummary, event.Summary)
	icalEvent.Props.SetText(ical.PropDescription, event.Description)
	icalEvent.Props.SetText(ical.PropLocation, event.Location)
	icalEvent.Props.SetDateTime(ical.PropDateTimeStart, event.Start.UTC())
	icalEvent.Props.SetDateTime(ical.PropDateTimeEnd, event.End.UTC())
	icalEvent.Props.SetText(ical.PropStatus, "CONFIRMED")

	if event.ReminderMinutes > 0 {
		alarm := ical.NewComponent(ical.CompAlarm)
		alarm.Props.SetText(ical.PropAction, "DISPLAY")
		alarm.Props.SetText(ical.PropDescription, event.Summary)
		trigger := ical.NewProp(ical.PropTrigger)
		trigger.Value = fmt.Sprintf("-PT%dM", event.ReminderMinutes)
		trigger.SetValueType(ical.ValueDuration)
		alarm.Props.Set(trigger)
		icalEvent.Children = append(icalEvent.Children, alarm)
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//chronos//timetable//FR")
	cal.Children = append(cal.Children, icalEvent.Component)
	return cal
}

// caldavEventUID derives a stable identifier from the event position and
// contents. Slots differing only by room or end time get distinct resources.
func caldavEventUID(calendarID string, index int, event *Event) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%d|%s|%s|%s|%s", calendarID, index, event.Summary, event.Location,
		event.Start.UTC().Format(time.RFC3339), event.End.UTC().Format(time.RFC3339))))
	return "chronos-" + hex.EncodeToString(sum[:10])
}

func calendarPath(calendarID string) (string, error) {
	calURL, err := url.Parse(calendarID)
	if err != nil {
		return "", fmt.Errorf("invalid calendar URL: %w", err)
	}
	return calURL.Path, nil
}

func eventPath(calPath, uid string) string {
	return strings.TrimRight(calPath, "/") + "/" + uid + ".ics"
}

// Helper function to get text property safely
func getTextProp(props ical.Props, name string) string {
	prop := props.Get(name)
	if prop == nil {
		return ""
	}
	return prop.Value
}
