// Package icsfeed pulls bookings from a published ICS calendar URL.
// It covers coaches who share a read-only calendar feed instead of
// delegating an OAuth credential.
package icsfeed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	ics "github.com/emersion/go-ical"

	"lesson-sync/internal/common/errors"
	"lesson-sync/internal/models"
)

// Config holds the feed location.
type Config struct {
	FeedURL string
	Timeout time.Duration
}

// Validate validates the ICS feed source configuration.
func (c *Config) Validate() error {
	if c.FeedURL == "" {
		return errors.ConfigError("ics feed source requires a feed URL")
	}
	if !strings.HasPrefix(c.FeedURL, "http://") && !strings.HasPrefix(c.FeedURL, "https://") {
		return errors.ConfigError("ics feed URL must be http or https")
	}
	return nil
}

// Source fetches and parses one ICS feed.
type Source struct {
	config *Config
	client *http.Client
}

// NewSource creates an ICS feed source.
func NewSource(config *Config) (*Source, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Source{
		config: config,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Name implements sources.Source.
func (s *Source) Name() models.SourceName {
	return models.SourceICSFeed
}

// FetchEvents downloads the feed and returns VEVENTs starting in
// [timeMin, timeMax). Components that cannot be mapped are skipped,
// not errored: one broken entry must not hide the rest of the feed.
func (s *Source) FetchEvents(ctx context.Context, timeMin, timeMax time.Time) ([]models.CanonicalEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.FeedURL, nil)
	if err != nil {
		return nil, errors.InternalError("failed to build ics feed request", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.ConnectionError("ics feed fetch failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.AuthError("ics feed URL rejected, the shared link may have been revoked")
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.RateLimitError("ics feed")
	case resp.StatusCode != http.StatusOK:
		return nil, errors.ConnectionError(fmt.Sprintf("ics feed returned status %d", resp.StatusCode), nil)
	}

	cal, err := ics.NewDecoder(resp.Body).Decode()
	if err != nil {
		return nil, errors.ConnectionError("failed to parse ics feed", err)
	}

	var events []models.CanonicalEvent
	for _, component := range cal.Children {
		if component.Name != ics.CompEvent {
			continue
		}
		event, ok := parseVEvent(component)
		if !ok {
			continue
		}
		if !event.Start.Before(timeMin) && event.Start.Before(timeMax) {
			events = append(events, event)
		}
	}

	return events, nil
}

// parseVEvent converts one VEVENT component into a canonical event.
// Components without a UID or a parsable DTSTART cannot be
// deduplicated and are dropped; cancelled events are not lessons.
func parseVEvent(component *ics.Component) (models.CanonicalEvent, bool) {
	event := models.CanonicalEvent{Source: models.SourceICSFeed}

	if uid := component.Props.Get(ics.PropUID); uid != nil {
		event.ExternalID = uid.Value
	}
	if event.ExternalID == "" {
		return models.CanonicalEvent{}, false
	}

	if status := component.Props.Get(ics.PropStatus); status != nil {
		if strings.EqualFold(status.Value, "CANCELLED") {
			return models.CanonicalEvent{}, false
		}
	}

	if summary := component.Props.Get(ics.PropSummary); summary != nil {
		event.Title = summary.Value
	}
	if desc := component.Props.Get(ics.PropDescription); desc != nil {
		event.Description = desc.Value
	}
	if loc := component.Props.Get(ics.PropLocation); loc != nil {
		event.Location = loc.Value
	}

	dtstart := component.Props.Get(ics.PropDateTimeStart)
	if dtstart == nil {
		return models.CanonicalEvent{}, false
	}
	start, err := parseDateTime(dtstart.Value)
	if err != nil {
		return models.CanonicalEvent{}, false
	}
	event.Start = start

	if dtend := component.Props.Get(ics.PropDateTimeEnd); dtend != nil {
		if end, err := parseDateTime(dtend.Value); err == nil {
			event.End = &end
		}
	}

	if org := component.Props.Get(ics.PropOrganizer); org != nil {
		person := models.Person{}
		if strings.HasPrefix(strings.ToUpper(org.Value), "MAILTO:") {
			person.Email = org.Value[7:]
		}
		if cn := org.Params.Get("CN"); cn != "" {
			person.Name = cn
		}
		if person.Email != "" || person.Name != "" {
			event.Organizer = &person
		}
	}

	for _, prop := range component.Props[ics.PropAttendee] {
		attendee := models.Person{}
		if strings.HasPrefix(strings.ToUpper(prop.Value), "MAILTO:") {
			attendee.Email = prop.Value[7:]
		}
		if cn := prop.Params.Get("CN"); cn != "" {
			attendee.Name = cn
		}
		if attendee.Email != "" || attendee.Name != "" {
			event.Attendees = append(event.Attendees, attendee)
		}
	}

	return event, true
}

// parseDateTime handles the UTC, floating and date-only forms that
// show up in published feeds.
func parseDateTime(value string) (time.Time, error) {
	formats := []string{
		"20060102T150405Z",
		"20060102T150405",
		"20060102",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format: %s", value)
}
