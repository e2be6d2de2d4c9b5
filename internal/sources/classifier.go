package sources

import (
	"strings"

	"lesson-sync/internal/models"
)

// lessonKeywords is the fixed keyword set used to decide whether an
// event looks like a coaching booking. Matching is deliberately
// permissive: a false positive costs one reviewable lesson row, a
// false negative loses a booking.
var lessonKeywords = []string{
	"lesson",
	"tennis",
	"coaching",
	"session",
	"cal.com",
}

// IsLessonEvent reports whether the event's title, location or
// description contains any lesson keyword, case-insensitive. This is a
// filter, not an identity operation.
func IsLessonEvent(event *models.CanonicalEvent) bool {
	haystacks := []string{event.Title, event.Location, event.Description}
	for _, h := range haystacks {
		if h == "" {
			continue
		}
		lowered := strings.ToLower(h)
		for _, keyword := range lessonKeywords {
			if strings.Contains(lowered, keyword) {
				return true
			}
		}
	}
	return false
}
