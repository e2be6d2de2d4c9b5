package syncer

import (
	"lesson-sync/internal/models"
)

// IsDuplicate reports whether any candidate record already represents
// the event. Candidates are the store's exact-start-time narrowing set;
// the narrowing only bounds the scan and never decides the outcome.
// Only an exact (source, externalId) match declares a duplicate, so a
// candidate on the same date with a different external id is not one,
// and a candidate whose metadata could not be parsed compares as empty
// and therefore never matches.
func IsDuplicate(event *models.CanonicalEvent, candidates []*models.LessonRecord) bool {
	for _, candidate := range candidates {
		source, externalID := candidate.DedupKey()
		if source == "" && externalID == "" {
			continue
		}
		if source == string(event.Source) && externalID == event.ExternalID {
			return true
		}
	}
	return false
}
