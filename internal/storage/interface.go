// Package storage defines the persistence boundary for the lesson
// store and student directory, with interchangeable SQL backends.
package storage

import (
	"context"
	"time"

	"lesson-sync/internal/models"
)

// Store is the persistence interface the sync core and HTTP surface
// depend on. Sync only ever inserts lessons; updates and deletes
// belong to the coach-facing tooling, not to this service.
type Store interface {
	// CreateLesson inserts exactly one lesson record.
	CreateLesson(ctx context.Context, lesson *models.LessonRecord) error

	// LessonsAt returns all lessons whose lesson_date exactly equals at.
	// This is the narrowing query for the dedup gate: it bounds the
	// candidate set but never decides duplicates by itself.
	LessonsAt(ctx context.Context, at time.Time) ([]*models.LessonRecord, error)

	// Lessons returns lessons with lesson_date in [from, to).
	Lessons(ctx context.Context, from, to time.Time) ([]*models.LessonRecord, error)

	// CreateStudent inserts a student directory row.
	CreateStudent(ctx context.Context, student *models.Student) error

	// StudentDirectory returns the full lowercased-email-to-id mapping.
	// Callers fetch it once per sync pass, not per event.
	StudentDirectory(ctx context.Context) (map[string]string, error)

	Health() error
	Close() error
}
