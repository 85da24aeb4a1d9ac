package worker

import (
	"context"
	"testing"
	"time"

	"github.com/account-tracker/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances instantly on After, so the loop runs without real
// sleeps. Single goroutine only.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

type passRecord struct {
	kind models.RunKind
	at   time.Time
}

// fakeEngine records passes and cancels the context after maxPasses so the
// scheduler loop terminates.
type fakeEngine struct {
	passes    []passRecord
	maxPasses int
	cancel    context.CancelFunc
	baselines *fakeBaselineClock
}

func (e *fakeEngine) RunPass(ctx context.Context, kind models.RunKind, now time.Time) (*models.RunSummary, error) {
	e.passes = append(e.passes, passRecord{kind: kind, at: now})
	if kind == models.RunReseed && e.baselines != nil {
		at := now
		e.baselines.at = &at
	}
	if len(e.passes) >= e.maxPasses {
		e.cancel()
	}
	return &models.RunSummary{Kind: kind}, nil
}

type fakeBaselineClock struct {
	at *time.Time
}

func (b *fakeBaselineClock) LatestBaselineAt(ctx context.Context) (*time.Time, error) {
	return b.at, nil
}

func runScheduler(t *testing.T, clock *fakeClock, baselines *fakeBaselineClock, maxPasses int, runNow bool) *fakeEngine {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := &fakeEngine{maxPasses: maxPasses, cancel: cancel, baselines: baselines}
	sched, err := NewScheduler(&SchedulerConfig{
		Engine:        engine,
		Baselines:     baselines,
		Clock:         clock,
		RunNowOnStart: runNow,
	})
	require.NoError(t, err)

	err = sched.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	return engine
}

func TestScheduler_RunNowOnStartForcesUpdate(t *testing.T) {
	// Wednesday 13:00 UTC, baseline already reseeded this week.
	start := time.Date(2025, 6, 18, 13, 0, 0, 0, time.UTC)
	baselineAt := time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)

	clock := &fakeClock{now: start}
	engine := runScheduler(t, clock, &fakeBaselineClock{at: &baselineAt}, 2, true)

	require.Len(t, engine.passes, 2)
	assert.Equal(t, models.RunUpdate, engine.passes[0].kind)
	assert.True(t, start.Equal(engine.passes[0].at), "immediate pass runs before any sleep")
	assert.Equal(t, models.RunUpdate, engine.passes[1].kind)
	assert.True(t, engine.passes[1].at.Equal(time.Date(2025, 6, 18, 14, 0, 0, 0, time.UTC)),
		"second pass lands on the next even 2-hour tick")
}

func TestScheduler_StaleBaselineTriggersReseedThenUpdates(t *testing.T) {
	// Wednesday 13:00 UTC, baseline from the prior week.
	start := time.Date(2025, 6, 18, 13, 0, 0, 0, time.UTC)
	baselineAt := time.Date(2025, 6, 11, 14, 0, 0, 0, time.UTC)

	clock := &fakeClock{now: start}
	engine := runScheduler(t, clock, &fakeBaselineClock{at: &baselineAt}, 2, false)

	require.Len(t, engine.passes, 2)
	assert.Equal(t, models.RunReseed, engine.passes[0].kind)
	assert.True(t, engine.passes[0].at.Equal(time.Date(2025, 6, 18, 14, 0, 0, 0, time.UTC)),
		"reseed fires at the first wake after start")
	assert.Equal(t, models.RunUpdate, engine.passes[1].kind, "reseed refreshes the baseline, next wake updates")
	assert.True(t, engine.passes[1].at.Equal(time.Date(2025, 6, 18, 16, 0, 0, 0, time.UTC)))
}

func TestScheduler_WaitsForWeeklyBoundary(t *testing.T) {
	// Monday 09:00 UTC with a stale baseline: the reseed is due but must not
	// run before Monday noon.
	start := time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC)
	baselineAt := time.Date(2025, 6, 11, 14, 0, 0, 0, time.UTC)

	clock := &fakeClock{now: start}
	engine := runScheduler(t, clock, &fakeBaselineClock{at: &baselineAt}, 1, false)

	require.Len(t, engine.passes, 1)
	assert.Equal(t, models.RunReseed, engine.passes[0].kind)
	assert.True(t, engine.passes[0].at.Equal(time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)),
		"reseed fires exactly at the Monday noon boundary")

	// 09:00 -> 10:00 tick, then 10:00 -> 12:00 boundary.
	assert.Equal(t, []time.Duration{time.Hour, 2 * time.Hour}, clock.sleeps)
}

func TestScheduler_MissingBaselineReseedsAtFirstWake(t *testing.T) {
	// First deploy: empty baseline table, mid-week start.
	start := time.Date(2025, 6, 18, 13, 0, 0, 0, time.UTC)

	clock := &fakeClock{now: start}
	engine := runScheduler(t, clock, &fakeBaselineClock{}, 1, false)

	require.Len(t, engine.passes, 1)
	assert.Equal(t, models.RunReseed, engine.passes[0].kind)
	assert.True(t, engine.passes[0].at.Equal(time.Date(2025, 6, 18, 14, 0, 0, 0, time.UTC)))
}

func TestNewScheduler_RequiresCollaborators(t *testing.T) {
	_, err := NewScheduler(&SchedulerConfig{Baselines: &fakeBaselineClock{}})
	require.Error(t, err)

	_, err = NewScheduler(&SchedulerConfig{Engine: &fakeEngine{}})
	require.Error(t, err)
}
