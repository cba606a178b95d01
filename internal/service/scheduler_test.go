package service

import (
	"context"
	"testing"
	"time"

	"mathagent/internal/models"

	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(f *learningFixture, poll time.Duration) *Scheduler {
	cfg := testLearningConfig()
	cfg.PollInterval = poll
	cfg.HealthInterval = time.Hour
	return NewScheduler(f.service, cfg, zap.NewNop())
}

func TestNextDailyRun(t *testing.T) {
	now := time.Date(2025, 3, 10, 1, 30, 0, 0, time.UTC)
	next := nextDailyRun(now, 2)
	assert.Equal(t, time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC), next)

	// Already past the hour: tomorrow.
	now = time.Date(2025, 3, 10, 2, 0, 1, 0, time.UTC)
	next = nextDailyRun(now, 2)
	assert.Equal(t, time.Date(2025, 3, 11, 2, 0, 0, 0, time.UTC), next)
}

func TestSchedulerTriggerNow(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newLearningFixture()
	f.feedback.stats = &models.FeedbackStats{TotalFeedback: 1, ByRating: map[int]int{}}
	s := newTestScheduler(f, time.Hour)

	s.Start(context.Background())
	defer s.Stop()

	cycle, joined, err := s.TriggerNow(context.Background())
	require.NoError(t, err)
	assert.False(t, joined)
	assert.Equal(t, models.TriggerManual, cycle.TriggerType)

	status := s.Status()
	assert.True(t, status.Running)
	require.NotNil(t, status.LastCycleAt)
	assert.Equal(t, models.TriggerManual, status.LastTrigger)
}

func TestSchedulerThresholdFiresOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newLearningFixture()
	f.feedback.stats = &models.FeedbackStats{TotalFeedback: 150, ByRating: map[int]int{}}
	// 150 rows and no cycle yet: over the threshold of 100. After the first
	// cycle the count drops to zero, so no second cycle fires.
	f.feedback.countAll = 150
	f.feedback.countSince = 0

	s := newTestScheduler(f, 10*time.Millisecond)
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return f.cycles.cycleCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Several more polls pass without another cycle.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, f.cycles.cycleCount())

	latest, err := f.cycles.LatestCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.TriggerThreshold, latest.TriggerType)
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newLearningFixture()
	s := newTestScheduler(f, time.Hour)

	s.Start(context.Background())
	s.Start(context.Background())
	s.Stop()
	s.Stop()

	assert.False(t, s.Status().Running)
}
