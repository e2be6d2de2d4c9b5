// Package sources contains the event source adapters. Each adapter
// fetches raw events for a half-open time window from one external
// booking system and maps them into canonical events.
package sources

import (
	"context"
	"time"

	"lesson-sync/internal/models"
)

// Source is implemented by every booking source adapter.
//
// FetchEvents returns all events in the half-open window
// [timeMin, timeMax). Adapters classify their failures using the
// application error taxonomy: authentication failures surface as
// ErrTypeAuth, throttling as ErrTypeRateLimit and network failures as
// ErrTypeConnection. Adapters never retry internally.
type Source interface {
	Name() models.SourceName
	FetchEvents(ctx context.Context, timeMin, timeMax time.Time) ([]models.CanonicalEvent, error)
}

// InWindow reports whether start falls inside [timeMin, timeMax).
func InWindow(start, timeMin, timeMax time.Time) bool {
	return !start.Before(timeMin) && start.Before(timeMax)
}
