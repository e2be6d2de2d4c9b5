// Package googlecal pulls bookings from Google Calendar using a
// delegated OAuth2 credential.
package googlecal

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"lesson-sync/internal/common/errors"
	"lesson-sync/internal/models"
)

// Config holds the delegated credential and calendar selection.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	CalendarID   string // defaults to "primary"
}

// Validate validates the Google Calendar source configuration.
func (c *Config) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return errors.ConfigError("google calendar source requires client id and secret")
	}
	if c.RefreshToken == "" {
		return errors.ConfigError("google calendar source requires a refresh token")
	}
	return nil
}

// Source fetches events from one Google calendar.
type Source struct {
	config  *Config
	service *calendar.Service
}

// NewSource builds the calendar service from the stored refresh token.
// The token source refreshes access tokens transparently; a revoked
// credential surfaces later as an authentication error from FetchEvents.
func NewSource(ctx context.Context, config *Config) (*Source, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.CalendarID == "" {
		config.CalendarID = "primary"
	}

	oauthConfig := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{calendar.CalendarReadonlyScope},
	}
	tokenSource := oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: config.RefreshToken})

	service, err := calendar.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, errors.ConnectionError("failed to create google calendar service", err)
	}

	return &Source{config: config, service: service}, nil
}

// Name implements sources.Source.
func (s *Source) Name() models.SourceName {
	return models.SourceGoogleCalendar
}

// FetchEvents lists single-instance events in [timeMin, timeMax),
// ordered by start time, and maps them into canonical events.
func (s *Source) FetchEvents(ctx context.Context, timeMin, timeMax time.Time) ([]models.CanonicalEvent, error) {
	call := s.service.Events.List(s.config.CalendarID).
		Context(ctx).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		MaxResults(250)

	var events []models.CanonicalEvent
	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				continue
			}
			event, ok := s.toCanonical(item)
			if !ok {
				continue
			}
			// The API treats timeMax as exclusive already; the explicit
			// check keeps the half-open contract independent of it.
			if !event.Start.Before(timeMin) && event.Start.Before(timeMax) {
				events = append(events, event)
			}
		}
		return nil
	})
	if err != nil {
		return nil, classifyError(err)
	}

	return events, nil
}

// toCanonical maps one API event. Events without an id or a parsable
// start time cannot be deduplicated and are dropped.
func (s *Source) toCanonical(item *calendar.Event) (models.CanonicalEvent, bool) {
	if item.Id == "" || item.Start == nil {
		return models.CanonicalEvent{}, false
	}

	start, ok := parseEventTime(item.Start)
	if !ok {
		return models.CanonicalEvent{}, false
	}

	event := models.CanonicalEvent{
		ExternalID:  item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Start:       start,
		Source:      models.SourceGoogleCalendar,
		RawLink:     item.HtmlLink,
	}

	if item.End != nil {
		if end, ok := parseEventTime(item.End); ok {
			event.End = &end
		}
	}

	for _, attendee := range item.Attendees {
		if attendee.Resource {
			continue
		}
		event.Attendees = append(event.Attendees, models.Person{
			Email: attendee.Email,
			Name:  attendee.DisplayName,
		})
	}

	if item.Organizer != nil {
		event.Organizer = &models.Person{
			Email: item.Organizer.Email,
			Name:  item.Organizer.DisplayName,
		}
	}

	return event, true
}

// parseEventTime handles both timed (DateTime) and all-day (Date) events.
func parseEventTime(t *calendar.EventDateTime) (time.Time, bool) {
	if t.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	if t.Date != "" {
		parsed, err := time.Parse("2006-01-02", t.Date)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}

// classifyError maps Google API failures onto the application error
// taxonomy so the orchestrator can distinguish fatal auth and throttle
// conditions from transient network failures.
func classifyError(err error) error {
	if gerr, ok := err.(*googleapi.Error); ok {
		switch {
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden && hasReason(gerr, "authError"):
			return errors.AuthError("google calendar credential rejected, re-authentication required")
		case gerr.Code == http.StatusTooManyRequests || hasReason(gerr, "rateLimitExceeded") || hasReason(gerr, "userRateLimitExceeded"):
			return errors.RateLimitError("google calendar")
		case gerr.Code == http.StatusForbidden:
			return errors.AuthError(fmt.Sprintf("google calendar access denied: %s", gerr.Message))
		}
	}
	if rerr, ok := err.(*oauth2.RetrieveError); ok {
		return errors.AuthError(fmt.Sprintf("google token refresh failed: %s", rerr.ErrorCode))
	}
	return errors.ConnectionError("google calendar fetch failed", err)
}

func hasReason(gerr *googleapi.Error, reason string) bool {
	for _, e := range gerr.Errors {
		if e.Reason == reason {
			return true
		}
	}
	return false
}
