// Package scheduler owns the periodic sync trigger. The throttle is
// cosmetic: it only decides whether an automatic tick runs, and manual
// triggers through the HTTP surface never pass through it.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"lesson-sync/internal/common/errors"
	"lesson-sync/internal/common/logging"
	"lesson-sync/internal/models"
)

// SyncRunner is the slice of the sync core the scheduler drives.
type SyncRunner interface {
	Run(ctx context.Context) (*models.SyncResult, error)
}

type Scheduler struct {
	runner      SyncRunner
	logger      logging.Logger
	minInterval time.Duration
	cron        *cron.Cron

	mu            sync.Mutex
	lastCompleted time.Time
}

// New creates a scheduler firing on the given cron schedule (standard
// five-field expressions and descriptors like "@every 15m").
func New(runner SyncRunner, schedule string, minInterval time.Duration, logger logging.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	s := &Scheduler{
		runner:      runner,
		logger:      logger,
		minInterval: minInterval,
		cron:        cron.New(),
	}

	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, errors.ConfigError("invalid sync schedule: " + err.Error())
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("sync scheduler started",
		logging.Duration("min_interval", s.minInterval))
}

// Stop halts the cron loop and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("sync scheduler stopped")
}

// Observe feeds a completion time into the throttle. Handlers call it
// after a manual sync so an automatic tick does not immediately rerun.
func (s *Scheduler) Observe(completedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if completedAt.After(s.lastCompleted) {
		s.lastCompleted = completedAt
	}
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	due := s.lastCompleted.IsZero() || time.Since(s.lastCompleted) >= s.minInterval
	s.mu.Unlock()

	if !due {
		s.logger.Debug("skipping automatic sync, last run is recent")
		return
	}

	result, err := s.runner.Run(context.Background())
	if err != nil {
		if errors.IsType(err, errors.ErrTypeConflict) {
			s.logger.Debug("skipping automatic sync, another sync is in flight")
			return
		}
		s.logger.Error("automatic sync failed", err)
		return
	}

	s.Observe(result.CompletedAt)
}
