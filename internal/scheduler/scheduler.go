package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"

	"github.com/vytor/bunpo/internal/logger"
)

// DefaultRolloverAt is the local time at which a new daily goal starts.
const DefaultRolloverAt = "00:00"

// GoalRoller starts a new daily goal when the stored one is stale.
type GoalRoller interface {
	RolloverDailyGoal(ctx context.Context) (bool, error)
}

// Resyncer queues a full reconcile with the remote store.
type Resyncer interface {
	EnqueueReconcile() error
}

// Config controls the background jobs.
type Config struct {
	Location       *time.Location
	RolloverAt     string
	ResyncInterval time.Duration
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	goals     GoalRoller
	resync    Resyncer
	cfg       Config
	log       *logger.Logger
}

// New creates a new scheduler instance. A zero ResyncInterval disables the
// periodic reconcile.
func New(cfg Config, goals GoalRoller, resync Resyncer) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.RolloverAt == "" {
		cfg.RolloverAt = DefaultRolloverAt
	}
	s := gocron.NewScheduler(cfg.Location)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		goals:     goals,
		resync:    resync,
		cfg:       cfg,
		log:       logger.Default().WithPrefix("scheduler"),
	}
}

// Start registers the jobs and runs them in the background.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(1).Day().At(s.cfg.RolloverAt).Do(s.RolloverGoal); err != nil {
		return errors.Wrap(err, "schedule daily goal rollover")
	}
	if s.cfg.ResyncInterval > 0 && s.resync != nil {
		if _, err := s.scheduler.Every(s.cfg.ResyncInterval).Do(s.Resync); err != nil {
			return errors.Wrap(err, "schedule remote resync")
		}
	}
	s.scheduler.StartAsync()
	s.log.Info("scheduler started: rollover_at=%s resync_every=%s", s.cfg.RolloverAt, s.cfg.ResyncInterval)
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// RolloverGoal resets the daily goal if the day has changed.
func (s *Scheduler) RolloverGoal() {
	ctx := logger.NewContext(context.Background(), s.log)
	rolled, err := s.goals.RolloverDailyGoal(ctx)
	if err != nil {
		s.log.Warn("daily goal rollover failed: %v", err)
		return
	}
	if rolled {
		s.log.Info("daily goal reset for a new day")
	}
}

// Resync queues a reconcile with the remote store.
func (s *Scheduler) Resync() {
	if err := s.resync.EnqueueReconcile(); err != nil {
		s.log.Warn("failed to queue reconcile: %v", err)
	}
}
