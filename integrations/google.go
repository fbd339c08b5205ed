package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chxlky/squadbooster/internal/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// CalendarClient mirrors scheduled rituals into a Google Calendar.
type CalendarClient struct {
	service    *calendar.Service
	calendarID string
}

// NewCalendarClient authenticates with the given service account settings
// (the decoded service account JSON).
func NewCalendarClient(ctx context.Context, serviceAccount map[string]any, calendarID string) (*CalendarClient, error) {
	jsonBytes, err := json.Marshal(serviceAccount)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal service account settings to JSON: %w", err)
	}

	config, err := google.JWTConfigFromJSON(jsonBytes, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account credentials from JSON: %w", err)
	}

	return NewCalendarClientWithOptions(ctx, calendarID, option.WithHTTPClient(config.Client(ctx)))
}

func NewCalendarClientWithOptions(ctx context.Context, calendarID string, opts ...option.ClientOption) (*CalendarClient, error) {
	if calendarID == "" {
		return nil, fmt.Errorf("google calendar ID is not configured")
	}
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Calendar client: %w", err)
	}
	return &CalendarClient{service: srv, calendarID: calendarID}, nil
}

func ritualEvent(ritual models.Ritual) *calendar.Event {
	start := ritual.Date.UTC()
	duration := ritual.DurationMinutes
	if duration <= 0 {
		duration = 60
	}
	return &calendar.Event{
		Summary:     ritual.Name,
		Description: fmt.Sprintf("SquadBooster %s ritual\n\n%s", ritual.Type, ritual.Description),
		Start: &calendar.EventDateTime{
			DateTime: start.Format(time.RFC3339),
		},
		End: &calendar.EventDateTime{
			DateTime: start.Add(time.Duration(duration) * time.Minute).Format(time.RFC3339),
		},
	}
}

// CreateEvent creates the calendar entry for a ritual and returns its event ID.
func (c *CalendarClient) CreateEvent(ctx context.Context, ritual models.Ritual) (string, error) {
	if ritual.Date.IsZero() {
		return "", fmt.Errorf("ritual does not have a date, cannot create event")
	}

	createdEvent, err := c.service.Events.Insert(c.calendarID, ritualEvent(ritual)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to create event in Google Calendar: %w", err)
	}

	return createdEvent.Id, nil
}

func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	err := c.service.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		// The event may already have been removed by hand.
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && (gerr.Code == 404 || gerr.Code == 410) {
			zap.L().Info("Event not found in Google Calendar. Already deleted.", zap.String("eventID", eventID))
			return nil
		}
		return fmt.Errorf("unable to delete event from Google Calendar: %w", err)
	}

	return nil
}
