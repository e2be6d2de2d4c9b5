package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"lesson-sync/internal/common/errors"
	"lesson-sync/internal/common/logging"
	"lesson-sync/internal/models"
	"lesson-sync/internal/sources"
	"lesson-sync/internal/storage"
)

const (
	syncLockKey        = "lesson-sync"
	syncLockExpiration = 10 * time.Minute
)

// Locker is the distributed-lock surface the guard uses when Redis is
// configured. A nil Locker limits exclusion to this process.
type Locker interface {
	AcquireLock(ctx context.Context, key string, expiration time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// Options configures a Syncer. Zero values fall back to a 90 day
// window and an empty default location.
type Options struct {
	WindowDays      int
	DefaultLocation string
	Locker          Locker
	Logger          logging.Logger
}

// Syncer drives one synchronization pass over all configured sources.
// It is stateless across invocations apart from the last result kept
// for status reporting; whether an automatic run is due is the
// caller's decision, fed by the CompletedAt it chose to keep.
type Syncer struct {
	store           storage.Store
	sources         []sources.Source
	locker          Locker
	logger          logging.Logger
	windowDays      int
	defaultLocation string

	// runMu is the in-process single-flight guard. A second Run while
	// one is in flight is rejected with a conflict error, never queued.
	runMu sync.Mutex

	stateMu    sync.RWMutex
	inFlight   bool
	lastResult *models.SyncResult
}

// New creates a Syncer over the given store and source adapters.
func New(store storage.Store, srcs []sources.Source, opts Options) *Syncer {
	if opts.WindowDays <= 0 {
		opts.WindowDays = 90
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobalLogger()
	}
	return &Syncer{
		store:           store,
		sources:         srcs,
		locker:          opts.Locker,
		logger:          opts.Logger,
		windowDays:      opts.WindowDays,
		defaultLocation: opts.DefaultLocation,
	}
}

// Run synchronizes the default window [now, now+windowDays).
func (s *Syncer) Run(ctx context.Context) (*models.SyncResult, error) {
	now := time.Now().UTC()
	return s.RunWindow(ctx, now, now.AddDate(0, 0, s.windowDays))
}

// RunWindow synchronizes the half-open window [timeMin, timeMax).
//
// Failures before any event-level work begins (source fetch, directory
// snapshot) abort the whole call and propagate. Once the event loop
// starts, each event's failure is recorded in the result and the loop
// continues; the call then always returns a result, even if every
// event failed. Re-running is safe: the dedup gate makes every insert
// idempotent with respect to (source, externalId).
func (s *Syncer) RunWindow(ctx context.Context, timeMin, timeMax time.Time) (*models.SyncResult, error) {
	if !s.runMu.TryLock() {
		return nil, errors.ConflictError("sync already running")
	}
	defer s.runMu.Unlock()

	if s.locker != nil {
		acquired, err := s.locker.AcquireLock(ctx, syncLockKey, syncLockExpiration)
		if err != nil {
			// Redis being down must not take sync down with it; the
			// in-process guard still holds for this instance.
			s.logger.Warn("distributed sync lock unavailable, continuing with local guard", logging.Err(err))
		} else if !acquired {
			return nil, errors.ConflictError("sync already running on another instance")
		} else {
			defer func() {
				if err := s.locker.ReleaseLock(ctx, syncLockKey); err != nil {
					s.logger.Warn("failed to release sync lock", logging.Err(err))
				}
			}()
		}
	}

	s.setInFlight(true)
	defer s.setInFlight(false)

	s.logger.Info("starting sync",
		logging.Time("time_min", timeMin),
		logging.Time("time_max", timeMax))

	var events []models.CanonicalEvent
	for _, src := range s.sources {
		fetched, err := src.FetchEvents(ctx, timeMin, timeMax)
		if err != nil {
			s.logger.Error("source fetch failed", err,
				logging.String("source", string(src.Name())))
			return nil, err
		}
		events = append(events, fetched...)
	}

	var lessonEvents []models.CanonicalEvent
	for i := range events {
		if sources.IsLessonEvent(&events[i]) {
			lessonEvents = append(lessonEvents, events[i])
		}
	}

	directory, err := s.store.StudentDirectory(ctx)
	if err != nil {
		return nil, errors.PersistenceError("failed to load student directory", err)
	}

	result := &models.SyncResult{}
	for i := range lessonEvents {
		event := &lessonEvents[i]
		created, err := s.processEvent(ctx, event, directory)
		if err != nil {
			s.logger.Error("event sync failed", err,
				logging.String("event", event.Identifier()))
			result.RecordError(event.Identifier(), err.Error())
			continue
		}
		if created {
			result.SyncedCount++
		} else {
			result.SkippedCount++
		}
	}

	result.CompletedAt = time.Now().UTC()
	s.setLastResult(result)

	s.logger.Info("sync completed",
		logging.Int("synced", result.SyncedCount),
		logging.Int("skipped", result.SkippedCount),
		logging.Int("errors", result.ErrorCount))

	return result, nil
}

// IngestEvent is the push path for webhook-delivered events. It runs
// the same classify, resolve, dedup and insert pipeline as a pull sync
// for exactly one event and reports whether a lesson was created. It
// bypasses the single-flight guard: a concurrent pull sync cannot
// double-insert the same booking because both paths share the dedup
// gate and the store's uniqueness on (source, external_id).
func (s *Syncer) IngestEvent(ctx context.Context, event *models.CanonicalEvent) (bool, error) {
	if event.ExternalID == "" {
		return false, errors.ValidationError("event has no external id")
	}
	if !sources.IsLessonEvent(event) {
		s.logger.Debug("ignoring non-lesson event", logging.String("event", event.Identifier()))
		return false, nil
	}

	directory, err := s.store.StudentDirectory(ctx)
	if err != nil {
		return false, errors.PersistenceError("failed to load student directory", err)
	}

	return s.processEvent(ctx, event, directory)
}

// processEvent runs the per-event pipeline: resolve identity, narrow
// candidates by exact start time, check the dedup gate, insert.
func (s *Syncer) processEvent(ctx context.Context, event *models.CanonicalEvent, directory map[string]string) (bool, error) {
	identity := ResolveIdentity(event, directory)

	candidates, err := s.store.LessonsAt(ctx, event.Start)
	if err != nil {
		return false, errors.PersistenceError(fmt.Sprintf("failed to query lessons at %s", event.Start.Format(time.RFC3339)), err)
	}

	if IsDuplicate(event, candidates) {
		return false, nil
	}

	lesson := s.buildLesson(event, identity, time.Now().UTC())
	if err := s.store.CreateLesson(ctx, lesson); err != nil {
		return false, errors.PersistenceError("failed to create lesson", err)
	}

	s.logger.Debug("lesson created",
		logging.String("lesson_id", lesson.ID),
		logging.String("event", event.Identifier()))
	return true, nil
}

// buildLesson constructs the record for a new, non-duplicate event.
// Sync-created lessons are always scheduled, may carry a nil student
// reference, and embed the dedup pair both as promoted columns and in
// the metadata map for older tooling that still reads it from there.
func (s *Syncer) buildLesson(event *models.CanonicalEvent, identity models.Identity, now time.Time) *models.LessonRecord {
	location := event.Location
	if location == "" {
		location = s.defaultLocation
	}

	return &models.LessonRecord{
		ID:         uuid.New().String(),
		StudentID:  identity.StudentID,
		LessonDate: event.Start.UTC(),
		Location:   location,
		Status:     models.LessonStatusScheduled,
		Source:     string(event.Source),
		ExternalID: event.ExternalID,
		Metadata: map[string]string{
			models.MetaSource:           string(event.Source),
			models.MetaExternalID:       event.ExternalID,
			models.MetaSyncedAt:         now.Format(time.RFC3339),
			models.MetaStudentNameHint:  identity.DisplayName,
			models.MetaStudentEmailHint: identity.Email,
		},
		CreatedAt: now,
	}
}

// InFlight reports whether a sync pass is currently running.
func (s *Syncer) InFlight() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.inFlight
}

// LastResult returns the most recent completed result, or nil when no
// pass has completed since startup.
func (s *Syncer) LastResult() *models.SyncResult {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.lastResult
}

func (s *Syncer) setInFlight(v bool) {
	s.stateMu.Lock()
	s.inFlight = v
	s.stateMu.Unlock()
}

func (s *Syncer) setLastResult(r *models.SyncResult) {
	s.stateMu.Lock()
	s.lastResult = r
	s.stateMu.Unlock()
}
