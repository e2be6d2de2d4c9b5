package models

import (
	"time"
)

// SourceName identifies the external system an event came from.
type SourceName string

const (
	SourceGoogleCalendar SourceName = "google_calendar"
	SourceCalDotCom      SourceName = "cal_dot_com"
	SourceICSFeed        SourceName = "ics_feed"
)

// CanonicalEvent is the unified event structure produced by a source
// adapter, regardless of origin (Google Calendar, Cal.com, ICS feed).
type CanonicalEvent struct {
	ExternalID  string     `json:"external_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Start       time.Time  `json:"start"`
	End         *time.Time `json:"end,omitempty"`
	Attendees   []Person   `json:"attendees,omitempty"`
	Organizer   *Person    `json:"organizer,omitempty"`
	Source      SourceName `json:"source"`
	RawLink     string     `json:"raw_link,omitempty"`
}

// Person represents a person with email and display name.
type Person struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Identifier returns a stable human-readable handle for logs and
// per-event error reports.
func (e *CanonicalEvent) Identifier() string {
	if e.ExternalID != "" {
		return string(e.Source) + "/" + e.ExternalID
	}
	return string(e.Source) + "/" + e.Title
}
