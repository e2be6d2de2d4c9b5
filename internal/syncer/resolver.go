// Package syncer is the calendar-to-lesson synchronization core. It
// pulls canonical events from the configured booking sources, resolves
// each to a student when possible, drops already-synced bookings and
// inserts the rest as new lesson records. Sync is additive only: it
// never updates or deletes an existing lesson.
package syncer

import (
	"strings"

	"lesson-sync/internal/models"
)

// ResolveIdentity maps an event to a student using the directory
// snapshot (lowercased email to student id). Matching is ordered and
// first-match-wins: attendees in source order, then the organizer.
// When several attendees are known students the first in list order
// wins; that tie-break is deliberate and stable across runs. No match
// degrades to a nil StudentID, never to an error.
func ResolveIdentity(event *models.CanonicalEvent, directory map[string]string) models.Identity {
	identity := models.Identity{}

	for _, attendee := range event.Attendees {
		if id, ok := directory[strings.ToLower(attendee.Email)]; ok {
			identity.StudentID = &id
			break
		}
	}
	if identity.StudentID == nil && event.Organizer != nil {
		if id, ok := directory[strings.ToLower(event.Organizer.Email)]; ok {
			identity.StudentID = &id
		}
	}

	identity.DisplayName, identity.Email = displayNameFor(event)
	return identity
}

// displayNameFor picks a human-readable label independently of the
// student match: first attendee who is not the organizer, then the
// organizer, then the title, then "Unknown".
func displayNameFor(event *models.CanonicalEvent) (name, email string) {
	organizerEmail := ""
	if event.Organizer != nil {
		organizerEmail = strings.ToLower(event.Organizer.Email)
	}

	for _, attendee := range event.Attendees {
		if attendee.Email == "" && attendee.Name == "" {
			continue
		}
		if strings.ToLower(attendee.Email) == organizerEmail && organizerEmail != "" {
			continue
		}
		if attendee.Name != "" {
			return attendee.Name, attendee.Email
		}
		return attendee.Email, attendee.Email
	}

	if event.Organizer != nil {
		if event.Organizer.Name != "" {
			return event.Organizer.Name, event.Organizer.Email
		}
		if event.Organizer.Email != "" {
			return event.Organizer.Email, event.Organizer.Email
		}
	}

	if event.Title != "" {
		return event.Title, ""
	}
	return "Unknown", ""
}
