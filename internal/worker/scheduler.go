package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/account-tracker/internal/logging"
	"github.com/account-tracker/internal/models"
	"github.com/account-tracker/internal/schedule"
)

// PassRunner executes one roster pass.
type PassRunner interface {
	RunPass(ctx context.Context, kind models.RunKind, now time.Time) (*models.RunSummary, error)
}

// BaselineClock answers when the baselines were last reseeded.
type BaselineClock interface {
	LatestBaselineAt(ctx context.Context) (*time.Time, error)
}

// Scheduler drives the run loop. One decision per wake: reseed when the
// baseline predates this week's Monday-noon boundary and the boundary has
// passed, otherwise update. Nothing is persisted between wakes, so a process
// restart recomputes everything from the wall clock and the baseline table.
type Scheduler struct {
	engine        PassRunner
	baselines     BaselineClock
	clock         schedule.Clock
	runNowOnStart bool
}

// SchedulerConfig holds the collaborators for a Scheduler.
type SchedulerConfig struct {
	Engine        PassRunner
	Baselines     BaselineClock
	Clock         schedule.Clock // defaults to the system clock
	RunNowOnStart bool
}

// NewScheduler creates a scheduler.
func NewScheduler(cfg *SchedulerConfig) (*Scheduler, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if cfg.Baselines == nil {
		return nil, fmt.Errorf("baseline store cannot be nil")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = schedule.Real()
	}

	return &Scheduler{
		engine:        cfg.Engine,
		baselines:     cfg.Baselines,
		clock:         clock,
		runNowOnStart: cfg.RunNowOnStart,
	}, nil
}

// Run blocks until ctx is cancelled, waking on the even 2-hour tick grid and
// at the weekly boundary. The optional immediate pass is always an update;
// the reseed decision belongs to the wake evaluation alone.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.runNowOnStart {
		logging.FromContext(ctx).Info("running immediate pass on start")
		s.runPass(ctx, models.RunUpdate)
	}

	for {
		if err := s.sleepUntil(ctx, s.nextWake(ctx)); err != nil {
			return err
		}
		s.evaluate(ctx)
	}
}

// nextWake returns the next scheduled wake time: the next even 2-hour tick,
// pulled in to the Monday-noon boundary when a reseed is pending and the
// boundary falls inside the tick interval.
func (s *Scheduler) nextWake(ctx context.Context) time.Time {
	now := s.clock.Now()
	wake := schedule.NextTick(now)

	latest, err := s.baselines.LatestBaselineAt(ctx)
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("failed to read latest baseline timestamp")
		return wake
	}

	boundary := schedule.MondayNoon(now)
	if schedule.IsReseedDue(latest, now) && now.Before(boundary) && boundary.Before(wake) {
		wake = boundary
	}
	return wake
}

// evaluate makes the single per-wake decision and runs at most one pass.
func (s *Scheduler) evaluate(ctx context.Context) {
	logger := logging.FromContext(ctx)
	now := s.clock.Now()

	latest, err := s.baselines.LatestBaselineAt(ctx)
	if err != nil {
		logger.WithError(err).Warn("failed to read latest baseline timestamp, skipping this wake")
		return
	}

	boundary := schedule.MondayNoon(now)
	switch {
	case schedule.IsReseedDue(latest, now) && !now.Before(boundary):
		s.runPass(ctx, models.RunReseed)
	case schedule.IsReseedDue(latest, now):
		logger.WithField("boundary", boundary).Debug("reseed pending until weekly boundary")
	default:
		s.runPass(ctx, models.RunUpdate)
	}
}

// runPass executes one pass and logs its outcome. Pass failures are logged
// and absorbed; the loop always reaches the next wake.
func (s *Scheduler) runPass(ctx context.Context, kind models.RunKind) {
	if ctx.Err() != nil {
		return
	}

	logger := logging.FromContext(ctx)
	summary, err := s.engine.RunPass(ctx, kind, s.clock.Now())
	if err != nil {
		logger.WithError(err).WithField("kind", kind).Error("roster pass failed")
		return
	}
	logger.WithFields(map[string]interface{}{
		"kind":      summary.Kind,
		"processed": summary.Processed,
		"skipped":   summary.Skipped,
	}).Info("roster pass finished")
}

// sleepUntil blocks until t or cancellation.
func (s *Scheduler) sleepUntil(ctx context.Context, t time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := t.Sub(s.clock.Now())
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(d):
		return nil
	}
}
