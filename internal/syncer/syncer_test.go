package syncer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lesson-sync/internal/common/errors"
	"lesson-sync/internal/models"
	"lesson-sync/internal/sources"
	"lesson-sync/internal/storage"
)

type fakeStore struct {
	mu       sync.Mutex
	lessons  []*models.LessonRecord
	students map[string]string

	// external ids whose insert should fail
	failInserts  map[string]bool
	directoryErr error
}

var _ storage.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{students: map[string]string{}, failInserts: map[string]bool{}}
}

func (f *fakeStore) CreateLesson(_ context.Context, lesson *models.LessonRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInserts[lesson.ExternalID] {
		return fmt.Errorf("simulated insert failure for %s", lesson.ExternalID)
	}
	f.lessons = append(f.lessons, lesson)
	return nil
}

func (f *fakeStore) LessonsAt(_ context.Context, at time.Time) ([]*models.LessonRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.LessonRecord
	for _, l := range f.lessons {
		if l.LessonDate.Equal(at) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) Lessons(_ context.Context, from, to time.Time) ([]*models.LessonRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.LessonRecord
	for _, l := range f.lessons {
		if !l.LessonDate.Before(from) && l.LessonDate.Before(to) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateStudent(_ context.Context, student *models.Student) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.students[strings.ToLower(student.Email)] = student.ID
	return nil
}

func (f *fakeStore) StudentDirectory(_ context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.directoryErr != nil {
		return nil, f.directoryErr
	}
	directory := make(map[string]string, len(f.students))
	for k, v := range f.students {
		directory[k] = v
	}
	return directory, nil
}

func (f *fakeStore) Health() error { return nil }
func (f *fakeStore) Close() error  { return nil }

type fakeSource struct {
	name   models.SourceName
	events []models.CanonicalEvent
	err    error
}

func (f *fakeSource) Name() models.SourceName { return f.name }

func (f *fakeSource) FetchEvents(_ context.Context, timeMin, timeMax time.Time) ([]models.CanonicalEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.CanonicalEvent
	for _, e := range f.events {
		if sources.InWindow(e.Start, timeMin, timeMax) {
			out = append(out, e)
		}
	}
	return out, nil
}

func lessonEvent(externalID, title string, start time.Time) models.CanonicalEvent {
	return models.CanonicalEvent{
		ExternalID: externalID,
		Title:      title,
		Start:      start,
		Source:     models.SourceGoogleCalendar,
	}
}

func newTestSyncer(store *fakeStore, src sources.Source) *Syncer {
	return New(store, []sources.Source{src}, Options{DefaultLocation: "Main Court"})
}

func TestRunIsIdempotent(t *testing.T) {
	start := time.Date(2026, 9, 10, 15, 0, 0, 0, time.UTC)
	store := newFakeStore()
	source := &fakeSource{
		name: models.SourceGoogleCalendar,
		events: []models.CanonicalEvent{
			lessonEvent("evt-1", "Tennis Lesson — Alice", start),
			lessonEvent("evt-2", "Coaching Session — Bob", start.Add(time.Hour)),
		},
	}
	s := newTestSyncer(store, source)

	first, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.SyncedCount)
	assert.Equal(t, 0, first.SkippedCount)
	assert.False(t, first.CompletedAt.IsZero())

	second, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.SyncedCount)
	assert.Equal(t, 2, second.SkippedCount)
	assert.Len(t, store.lessons, 2)
}

func TestNoFalseDuplicateOnSameDate(t *testing.T) {
	start := time.Date(2026, 9, 10, 15, 0, 0, 0, time.UTC)
	store := newFakeStore()
	source := &fakeSource{
		name: models.SourceGoogleCalendar,
		events: []models.CanonicalEvent{
			lessonEvent("evt-1", "Tennis Lesson", start),
			lessonEvent("evt-2", "Tennis Lesson", start),
		},
	}
	s := newTestSyncer(store, source)

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.SyncedCount, "distinct external ids on the same start time are distinct bookings")
	assert.Equal(t, 0, result.SkippedCount)
}

func TestCorruptMetadataNeverMatches(t *testing.T) {
	start := time.Date(2026, 9, 10, 15, 0, 0, 0, time.UTC)
	store := newFakeStore()
	// A legacy record whose metadata failed to parse and which predates
	// the promoted columns: nothing to compare against.
	store.lessons = append(store.lessons, &models.LessonRecord{
		ID:         "legacy-1",
		LessonDate: start,
		Status:     models.LessonStatusScheduled,
	})

	source := &fakeSource{
		name:   models.SourceGoogleCalendar,
		events: []models.CanonicalEvent{lessonEvent("evt-1", "Tennis Lesson", start)},
	}
	s := newTestSyncer(store, source)

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.SyncedCount)
	assert.Equal(t, 0, result.SkippedCount)
}

func TestPartialFailureIsolation(t *testing.T) {
	start := time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.failInserts["evt-3"] = true

	var events []models.CanonicalEvent
	for i := 1; i <= 5; i++ {
		events = append(events, lessonEvent(
			fmt.Sprintf("evt-%d", i),
			fmt.Sprintf("Tennis Lesson %d", i),
			start.Add(time.Duration(i)*time.Hour)))
	}
	source := &fakeSource{name: models.SourceGoogleCalendar, events: events}
	s := newTestSyncer(store, source)

	result, err := s.Run(context.Background())
	require.NoError(t, err, "per-event failures must not abort the batch")
	assert.Equal(t, 4, result.SyncedCount)
	assert.Equal(t, 1, result.ErrorCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "google_calendar/evt-3", result.Errors[0].EventIdentifier)
	assert.Len(t, store.lessons, 4)
}

func TestIdentityFallbackStillCreatesLesson(t *testing.T) {
	start := time.Date(2026, 9, 10, 15, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.students["known@example.com"] = "student-1"

	event := lessonEvent("evt-1", "Tennis Lesson", start)
	event.Attendees = []models.Person{{Email: "stranger@example.com", Name: "Stranger"}}
	source := &fakeSource{name: models.SourceGoogleCalendar, events: []models.CanonicalEvent{event}}
	s := newTestSyncer(store, source)

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.SyncedCount)
	require.Len(t, store.lessons, 1)
	assert.Nil(t, store.lessons[0].StudentID)
	assert.Equal(t, "Stranger", store.lessons[0].Metadata[models.MetaStudentNameHint])
}

func TestFetchFailureAbortsRun(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{
		name: models.SourceGoogleCalendar,
		err:  errors.AuthError("calendar credential expired"),
	}
	s := newTestSyncer(store, source)

	result, err := s.Run(context.Background())
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeAuth))
	assert.Empty(t, store.lessons)
}

func TestDirectoryFailureAbortsRun(t *testing.T) {
	start := time.Date(2026, 9, 10, 15, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.directoryErr = fmt.Errorf("connection reset")
	source := &fakeSource{
		name:   models.SourceGoogleCalendar,
		events: []models.CanonicalEvent{lessonEvent("evt-1", "Tennis Lesson", start)},
	}
	s := newTestSyncer(store, source)

	result, err := s.Run(context.Background())
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypePersistence))
}

func TestConcurrentRunRejected(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{name: models.SourceGoogleCalendar}
	s := newTestSyncer(store, source)

	s.runMu.Lock()
	defer s.runMu.Unlock()

	result, err := s.Run(context.Background())
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeConflict))
}

func TestBuildLessonUsesDefaultLocation(t *testing.T) {
	s := newTestSyncer(newFakeStore(), &fakeSource{name: models.SourceGoogleCalendar})
	event := lessonEvent("evt-1", "Tennis Lesson", time.Date(2026, 9, 10, 15, 0, 0, 0, time.UTC))
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	lesson := s.buildLesson(&event, models.Identity{DisplayName: "Unknown"}, now)
	assert.Equal(t, "Main Court", lesson.Location)
	assert.Equal(t, models.LessonStatusScheduled, lesson.Status)
	assert.Equal(t, "google_calendar", lesson.Source)
	assert.Equal(t, "evt-1", lesson.ExternalID)
	assert.Equal(t, "google_calendar", lesson.Metadata[models.MetaSource])
	assert.Equal(t, "evt-1", lesson.Metadata[models.MetaExternalID])
	assert.Equal(t, now.Format(time.RFC3339), lesson.Metadata[models.MetaSyncedAt])
	assert.NotEmpty(t, lesson.ID)

	event.Location = "Court 4"
	lesson = s.buildLesson(&event, models.Identity{DisplayName: "Unknown"}, now)
	assert.Equal(t, "Court 4", lesson.Location)
}

func TestIngestEvent(t *testing.T) {
	start := time.Date(2026, 9, 10, 15, 0, 0, 0, time.UTC)
	store := newFakeStore()
	s := newTestSyncer(store, &fakeSource{name: models.SourceCalDotCom})

	event := models.CanonicalEvent{
		ExternalID: "booking-1",
		Title:      "60min Session",
		Start:      start,
		Source:     models.SourceCalDotCom,
	}

	created, err := s.IngestEvent(context.Background(), &event)
	require.NoError(t, err)
	assert.True(t, created)

	// Same booking delivered again: dedup, not a second row.
	created, err = s.IngestEvent(context.Background(), &event)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, store.lessons, 1)

	// Non-lesson events are ignored without error.
	dentist := models.CanonicalEvent{
		ExternalID: "booking-2",
		Title:      "Dentist Appointment",
		Start:      start,
		Source:     models.SourceCalDotCom,
	}
	created, err = s.IngestEvent(context.Background(), &dentist)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = s.IngestEvent(context.Background(), &models.CanonicalEvent{Title: "No ID", Start: start})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
}
