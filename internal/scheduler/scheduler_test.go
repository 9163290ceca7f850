package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nexira/internal/clock"
	"nexira/internal/config"
)

func newTestEngine(cfg config.SchedulerConfig) *Engine {
	return New(clock.NewFake(time.Time{}), cfg, nil, nil, nil, nil, nil, nil, nil)
}

func jobNamed(e *Engine, name string) job {
	for _, j := range e.jobs {
		if j.name == name {
			return j
		}
	}
	panic("job not found: " + name)
}

func TestNightConsolidationDueAtConfiguredHour(t *testing.T) {
	e := newTestEngine(config.SchedulerConfig{ConsolidationHour: 3})
	j := jobNamed(e, "night_consolidation")
	require.True(t, j.due(time.Date(2026, 7, 30, 3, 0, 0, 0, time.UTC), e))
	require.False(t, j.due(time.Date(2026, 7, 30, 3, 1, 0, 0, time.UTC), e))
	require.False(t, j.due(time.Date(2026, 7, 30, 4, 0, 0, 0, time.UTC), e))
}

func TestKnowledgeGoalTickDueAtMinuteFifteen(t *testing.T) {
	e := newTestEngine(config.SchedulerConfig{})
	j := jobNamed(e, "knowledge_goal_tick")
	require.True(t, j.due(time.Date(2026, 7, 30, 9, 15, 0, 0, time.UTC), e))
	require.False(t, j.due(time.Date(2026, 7, 30, 9, 16, 0, 0, time.UTC), e))
}

func TestNightlyBackupDueAtConsolidationHourPlusOffsetMinuteFive(t *testing.T) {
	e := newTestEngine(config.SchedulerConfig{ConsolidationHour: 3, BackupHourOffset: 1})
	j := jobNamed(e, "nightly_backup")
	require.True(t, j.due(time.Date(2026, 7, 30, 4, 5, 0, 0, time.UTC), e))
	require.False(t, j.due(time.Date(2026, 7, 30, 3, 5, 0, 0, time.UTC), e))
	require.False(t, j.due(time.Date(2026, 7, 30, 4, 6, 0, 0, time.UTC), e))
}

func TestIdleResearchDueEveryFourHoursOnceOnly(t *testing.T) {
	e := newTestEngine(config.SchedulerConfig{})
	j := jobNamed(e, "idle_research")
	now := time.Date(2026, 7, 30, 8, 30, 0, 0, time.UTC)
	require.True(t, j.due(now, e))

	e.lastIdleHour = 8
	require.False(t, j.due(now, e))

	require.False(t, j.due(time.Date(2026, 7, 30, 9, 30, 0, 0, time.UTC), e))
}

func TestFeedReadDueEverySixHoursOnceOnly(t *testing.T) {
	e := newTestEngine(config.SchedulerConfig{})
	j := jobNamed(e, "feed_read")
	now := time.Date(2026, 7, 30, 12, 45, 0, 0, time.UTC)
	require.True(t, j.due(now, e))

	e.lastFeedHour = 12
	require.False(t, j.due(now, e))
}

type fakeMailer struct {
	shouldSend bool
	sent       int
}

func (m *fakeMailer) ShouldSendToday(ctx context.Context) bool { return m.shouldSend }
func (m *fakeMailer) SendDailySummary(ctx context.Context) error {
	m.sent++
	return nil
}

func TestDailySummaryEmailDueAtConfiguredSendTime(t *testing.T) {
	e := newTestEngine(config.SchedulerConfig{DailyEmailHour: 8, DailyEmailMinute: 0})
	j := jobNamed(e, "daily_summary_email")
	require.True(t, j.due(time.Date(2026, 7, 30, 8, 0, 0, 0, time.UTC), e))
	require.False(t, j.due(time.Date(2026, 7, 30, 8, 1, 0, 0, time.UTC), e))
	require.False(t, j.due(time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC), e))
}

func TestDailySummaryEmailRunSkipsWhenAlreadySentToday(t *testing.T) {
	mailer := &fakeMailer{shouldSend: false}
	e := New(clock.NewFake(time.Time{}), config.SchedulerConfig{}, nil, nil, nil, nil, nil, mailer, nil)
	j := jobNamed(e, "daily_summary_email")
	require.NoError(t, j.run(context.Background(), e))
	require.Equal(t, 0, mailer.sent)
}

func TestDailySummaryEmailRunSendsWhenDue(t *testing.T) {
	mailer := &fakeMailer{shouldSend: true}
	e := New(clock.NewFake(time.Time{}), config.SchedulerConfig{}, nil, nil, nil, nil, nil, mailer, nil)
	j := jobNamed(e, "daily_summary_email")
	require.NoError(t, j.run(context.Background(), e))
	require.Equal(t, 1, mailer.sent)
}

func TestDailySummaryEmailRunNoopWithoutMailer(t *testing.T) {
	e := newTestEngine(config.SchedulerConfig{})
	j := jobNamed(e, "daily_summary_email")
	require.NoError(t, j.run(context.Background(), e))
}

func TestSocialHeartbeatDueOnHalfHours(t *testing.T) {
	e := newTestEngine(config.SchedulerConfig{})
	j := jobNamed(e, "social_heartbeat")
	require.True(t, j.due(time.Date(2026, 7, 30, 1, 0, 0, 0, time.UTC), e))
	require.True(t, j.due(time.Date(2026, 7, 30, 1, 30, 0, 0, time.UTC), e))
	require.False(t, j.due(time.Date(2026, 7, 30, 1, 15, 0, 0, time.UTC), e))
}

func TestTickSkipsUnchangedMinute(t *testing.T) {
	fc := clock.NewFake(time.Date(2026, 7, 30, 9, 15, 0, 0, time.UTC))
	e := New(fc, config.SchedulerConfig{}, nil, nil, nil, nil, nil, nil, nil)

	ran := 0
	e.jobs = []job{{
		name: "probe",
		due:  func(now time.Time, e *Engine) bool { return true },
		run: func(ctx context.Context, e *Engine) error {
			ran++
			return nil
		},
	}}

	e.tick(context.Background())
	require.Equal(t, 1, ran)
	require.Equal(t, 15, e.lastMinuteChecked)

	// Same wall-clock minute: tick is a no-op even though called again.
	e.tick(context.Background())
	require.Equal(t, 1, ran)

	fc.Advance(time.Minute)
	e.tick(context.Background())
	require.Equal(t, 2, ran)
}

func TestAcquireLockAllowsWhenRedisUnset(t *testing.T) {
	e := newTestEngine(config.SchedulerConfig{})
	require.True(t, e.acquireLock(context.Background(), "night_consolidation", time.Now()))
}
