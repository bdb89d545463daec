// Package calendarclient isolates all Google Calendar traffic behind the
// CalendarAPI interface so the rest of the server never sees the provider's
// wire format. The adapter performs no retries and no fallback; callers
// decide how to degrade.
package calendarclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrEventNotFound reports that the referenced event does not exist
// upstream (or the service account cannot see it).
var ErrEventNotFound = errors.New("calendar event not found")

// ProviderError wraps any other upstream failure (auth, quota, network).
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("calendar provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Event is the provider-neutral projection of a calendar event. Host and
// form-type affiliation live only in Properties (the event's private
// extended properties); there is no separate authoritative category field.
type Event struct {
	ID          string
	Title       string
	Description string
	Location    string
	MeetLink    string
	HTMLLink    string
	BeginsAt    time.Time
	EndsAt      time.Time
	Recurrence  []string
	Properties  map[string]string
}

func (e *Event) Recurring() bool {
	return len(e.Recurrence) > 0
}

// ConferencingLink prefers the generated Meet link, then a location that
// holds a URL (administrators paste Zoom links there).
func (e *Event) ConferencingLink() string {
	if e.MeetLink != "" {
		return e.MeetLink
	}
	if strings.HasPrefix(e.Location, "http://") || strings.HasPrefix(e.Location, "https://") {
		return e.Location
	}
	return ""
}

// Occurrence is one concrete instance of an event. Recurring events yield
// many; a non-recurring event yields exactly one equal to itself.
type Occurrence struct {
	ID       string
	BeginsAt time.Time
	EndsAt   time.Time
}

type EventDraft struct {
	Title           string
	Description     string
	Location        string
	MeetingLink     string
	BeginsAt        time.Time
	EndsAt          time.Time // zero value defaults to BeginsAt + 1h
	Recurrence      []string
	Attendees       []string
	Properties      map[string]string
	RequestMeetLink bool
}

// EventPatch carries partial updates; nil fields are left untouched.
type EventPatch struct {
	Title       *string
	Description *string
	Location    *string
	BeginsAt    *time.Time
	EndsAt      *time.Time
	Properties  map[string]string
}

type CalendarAPI interface {
	GetEvent(ctx context.Context, eventID string) (*Event, error)
	ListEvents(ctx context.Context, timeMin, timeMax time.Time, propertyFilter map[string]string) ([]*Event, error)
	ListOccurrences(ctx context.Context, eventID string, timeMin time.Time, limit int) ([]Occurrence, error)
	CreateEvent(ctx context.Context, draft *EventDraft) (*Event, error)
	UpdateEvent(ctx context.Context, eventID string, patch *EventPatch) (*Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// listEventsCap is the provider-side result cap per ListEvents window.
const listEventsCap = 250

type GoogleCalendarClient struct {
	service    *calendar.Service
	calendarID string
	location   *time.Location
	timezone   string
	timeout    time.Duration
}

func NewGoogleCalendarClient(ctx context.Context, credentialsJSON []byte, calendarID, timezone string, timeout time.Duration) (*GoogleCalendarClient, error) {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar timezone %q: %w", timezone, err)
	}

	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("failed to load google credentials: %w", err)
	}

	service, err := calendar.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	return &GoogleCalendarClient{
		service:    service,
		calendarID: calendarID,
		location:   location,
		timezone:   timezone,
		timeout:    timeout,
	}, nil
}

func (g *GoogleCalendarClient) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	raw, err := g.service.Events.Get(g.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("get event", err)
	}
	return g.convertEvent(raw)
}

func (g *GoogleCalendarClient) ListEvents(ctx context.Context, timeMin, timeMax time.Time, propertyFilter map[string]string) ([]*Event, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	call := g.service.Events.List(g.calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		SingleEvents(false).
		MaxResults(listEventsCap).
		Context(ctx)
	if !timeMax.IsZero() {
		call = call.TimeMax(timeMax.Format(time.RFC3339))
	}

	result, err := call.Do()
	if err != nil {
		return nil, wrapError("list events", err)
	}

	events := make([]*Event, 0, len(result.Items))
	for _, raw := range result.Items {
		if raw.Status == "cancelled" {
			continue
		}
		event, err := g.convertEvent(raw)
		if err != nil {
			// All-day or otherwise unschedulable entries are not meetings.
			continue
		}
		if !matchesProperties(event, propertyFilter) {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// ListOccurrences enumerates future concrete instances of an event. The
// provider materializes recurring instances on demand, each with its own
// occurrence id distinct from the parent event id.
func (g *GoogleCalendarClient) ListOccurrences(ctx context.Context, eventID string, timeMin time.Time, limit int) ([]Occurrence, error) {
	event, err := g.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if !event.Recurring() {
		if event.EndsAt.Before(timeMin) {
			return nil, nil
		}
		return []Occurrence{{ID: event.ID, BeginsAt: event.BeginsAt, EndsAt: event.EndsAt}}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.service.Events.Instances(g.calendarID, eventID).
		TimeMin(timeMin.Format(time.RFC3339)).
		MaxResults(int64(limit)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapError("list occurrences", err)
	}

	occurrences := make([]Occurrence, 0, len(result.Items))
	for _, raw := range result.Items {
		if raw.Status == "cancelled" {
			continue
		}
		begins, ends, err := parseEventTimes(raw, g.location)
		if err != nil {
			continue
		}
		occurrences = append(occurrences, Occurrence{ID: raw.Id, BeginsAt: begins, EndsAt: ends})
	}
	return occurrences, nil
}

func (g *GoogleCalendarClient) CreateEvent(ctx context.Context, draft *EventDraft) (*Event, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	begins := draft.BeginsAt.In(g.location)
	ends := draft.EndsAt
	if ends.IsZero() {
		ends = begins.Add(time.Hour)
	}
	ends = ends.In(g.location)

	body := &calendar.Event{
		Summary:     draft.Title,
		Description: draft.Description,
		Location:    draft.Location,
		Start:       &calendar.EventDateTime{DateTime: begins.Format(time.RFC3339), TimeZone: g.timezone},
		End:         &calendar.EventDateTime{DateTime: ends.Format(time.RFC3339), TimeZone: g.timezone},
		Recurrence:  draft.Recurrence,
	}

	if draft.MeetingLink != "" {
		body.Location = draft.MeetingLink
		if body.Description != "" && !strings.Contains(body.Description, draft.MeetingLink) {
			body.Description = body.Description + "\n\nMeeting Link: " + draft.MeetingLink
		} else if body.Description == "" {
			body.Description = "Meeting Link: " + draft.MeetingLink
		}
	}

	for _, email := range draft.Attendees {
		body.Attendees = append(body.Attendees, &calendar.EventAttendee{Email: email})
	}

	if len(draft.Properties) > 0 {
		body.ExtendedProperties = &calendar.EventExtendedProperties{Private: draft.Properties}
	}

	call := g.service.Events.Insert(g.calendarID, body).Context(ctx)
	if draft.RequestMeetLink {
		body.ConferenceData = &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{RequestId: uuid.NewString()},
		}
		call = call.ConferenceDataVersion(1)
	}

	raw, err := call.Do()
	if err != nil {
		return nil, wrapError("create event", err)
	}
	return g.convertEvent(raw)
}

func (g *GoogleCalendarClient) UpdateEvent(ctx context.Context, eventID string, patch *EventPatch) (*Event, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	body := &calendar.Event{}
	if patch.Title != nil {
		body.Summary = *patch.Title
	}
	if patch.Description != nil {
		body.Description = *patch.Description
	}
	if patch.Location != nil {
		body.Location = *patch.Location
	}
	if patch.BeginsAt != nil {
		body.Start = &calendar.EventDateTime{
			DateTime: patch.BeginsAt.In(g.location).Format(time.RFC3339),
			TimeZone: g.timezone,
		}
	}
	if patch.EndsAt != nil {
		body.End = &calendar.EventDateTime{
			DateTime: patch.EndsAt.In(g.location).Format(time.RFC3339),
			TimeZone: g.timezone,
		}
	}
	if len(patch.Properties) > 0 {
		body.ExtendedProperties = &calendar.EventExtendedProperties{Private: patch.Properties}
	}

	raw, err := g.service.Events.Patch(g.calendarID, eventID, body).Context(ctx).Do()
	if err != nil {
		return nil, wrapError("update event", err)
	}
	return g.convertEvent(raw)
}

func (g *GoogleCalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err := g.service.Events.Delete(g.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return wrapError("delete event", err)
	}
	return nil
}

func (g *GoogleCalendarClient) convertEvent(raw *calendar.Event) (*Event, error) {
	begins, ends, err := parseEventTimes(raw, g.location)
	if err != nil {
		return nil, &ProviderError{Op: "convert event", Err: err}
	}

	event := &Event{
		ID:          raw.Id,
		Title:       raw.Summary,
		Description: raw.Description,
		Location:    raw.Location,
		MeetLink:    raw.HangoutLink,
		HTMLLink:    raw.HtmlLink,
		BeginsAt:    begins,
		EndsAt:      ends,
		Recurrence:  raw.Recurrence,
	}
	if raw.ExtendedProperties != nil {
		event.Properties = raw.ExtendedProperties.Private
	}
	return event, nil
}

func parseEventTimes(raw *calendar.Event, location *time.Location) (time.Time, time.Time, error) {
	if raw.Start == nil || raw.Start.DateTime == "" || raw.End == nil || raw.End.DateTime == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("event %s has no scheduled time", raw.Id)
	}

	begins, err := time.Parse(time.RFC3339, raw.Start.DateTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("event %s start time: %w", raw.Id, err)
	}
	ends, err := time.Parse(time.RFC3339, raw.End.DateTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("event %s end time: %w", raw.Id, err)
	}
	return begins.In(location), ends.In(location), nil
}

func matchesProperties(event *Event, filter map[string]string) bool {
	for key, want := range filter {
		if event.Properties[key] != want {
			return false
		}
	}
	return true
}

func wrapError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 404 {
		return ErrEventNotFound
	}
	return &ProviderError{Op: op, Err: err}
}
