// Package caldotcom pulls bookings from the Cal.com API and
// normalizes inbound Cal.com webhook payloads.
package caldotcom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"lesson-sync/internal/common/errors"
	"lesson-sync/internal/models"
)

// Booking statuses Cal.com reports. Cancelled and rejected bookings
// are not lessons.
const (
	bookingStatusAccepted  = "ACCEPTED"
	bookingStatusPending   = "PENDING"
	bookingStatusCancelled = "CANCELLED"
	bookingStatusRejected  = "REJECTED"
)

// Config holds the Cal.com API connection settings.
type Config struct {
	BaseURL string // e.g. https://api.cal.com/v1
	APIKey  string
	Timeout time.Duration
}

// Validate validates the Cal.com source configuration.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.ConfigError("cal.com source requires a base URL")
	}
	if c.APIKey == "" {
		return errors.ConfigError("cal.com source requires an API key")
	}
	return nil
}

// Source fetches bookings from the Cal.com REST API.
type Source struct {
	config *Config
	client *http.Client
}

// NewSource creates a Cal.com booking source.
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
	return models.SourceCalDotCom
}

// booking mirrors the wire shape of one Cal.com booking.
type booking struct {
	UID         string    `json:"uid"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Location    string    `json:"location"`
	Status      string    `json:"status"`
	Attendees   []struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"attendees"`
	Organizer *struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"organizer"`
	User *struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"user"`
}

type bookingsResponse struct {
	Bookings []booking `json:"bookings"`
}

// FetchEvents lists bookings and keeps those starting in [timeMin, timeMax).
// The v1 API has no server-side window filter worth relying on, so the
// window is enforced here.
func (s *Source) FetchEvents(ctx context.Context, timeMin, timeMax time.Time) ([]models.CanonicalEvent, error) {
	endpoint := fmt.Sprintf("%s/bookings?apiKey=%s", s.config.BaseURL, url.QueryEscape(s.config.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.InternalError("failed to build cal.com request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.ConnectionError("cal.com fetch failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.AuthError("cal.com API key rejected, re-authentication required")
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.RateLimitError("cal.com")
	case resp.StatusCode != http.StatusOK:
		return nil, errors.ConnectionError(fmt.Sprintf("cal.com returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.ConnectionError("failed to read cal.com response", err)
	}

	var parsed bookingsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.ConnectionError("failed to decode cal.com response", err)
	}

	var events []models.CanonicalEvent
	for i := range parsed.Bookings {
		event, ok := toCanonical(&parsed.Bookings[i])
		if !ok {
			continue
		}
		if !event.Start.Before(timeMin) && event.Start.Before(timeMax) {
			events = append(events, event)
		}
	}

	return events, nil
}

// toCanonical maps one booking. Bookings without a uid cannot be
// deduplicated and are dropped, as are cancelled and rejected ones.
func toCanonical(b *booking) (models.CanonicalEvent, bool) {
	if b.UID == "" || b.StartTime.IsZero() {
		return models.CanonicalEvent{}, false
	}
	if b.Status == bookingStatusCancelled || b.Status == bookingStatusRejected {
		return models.CanonicalEvent{}, false
	}

	event := models.CanonicalEvent{
		ExternalID:  b.UID,
		Title:       b.Title,
		Description: b.Description,
		Location:    b.Location,
		Start:       b.StartTime,
		Source:      models.SourceCalDotCom,
	}

	if !b.EndTime.IsZero() {
		end := b.EndTime
		event.End = &end
	}

	for _, attendee := range b.Attendees {
		event.Attendees = append(event.Attendees, models.Person{
			Email: attendee.Email,
			Name:  attendee.Name,
		})
	}

	switch {
	case b.Organizer != nil:
		event.Organizer = &models.Person{Email: b.Organizer.Email, Name: b.Organizer.Name}
	case b.User != nil:
		// v1 responses carry the host under "user"
		event.Organizer = &models.Person{Email: b.User.Email, Name: b.User.Name}
	}

	return event, true
}
