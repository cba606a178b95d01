package service

import (
	"context"
	"sync"
	"time"

	"mathagent/internal/models"
	"mathagent/pkg/config"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const cycleKey = "learning-cycle"

// Scheduler drives the learning subsystem in the background: a daily cycle
// at a fixed hour, a periodic feedback-threshold check, and a periodic
// health report. Concurrent triggers from any source coalesce into a single
// running cycle.
type Scheduler struct {
	learning *LearningService
	config   *config.LearningConfig
	logger   *zap.Logger

	group  singleflight.Group
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	lastCycleAt time.Time
	lastTrigger models.TriggerType
	started     bool
}

func NewScheduler(learning *LearningService, cfg *config.LearningConfig, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		learning: learning,
		config:   cfg,
		logger:   logger,
	}
}

// Start launches the background loops. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(3)
	go s.dailyLoop(ctx)
	go s.thresholdLoop(ctx)
	go s.healthLoop(ctx)

	s.logger.Info("Learning scheduler started",
		zap.Int("daily_cycle_hour", s.config.DailyCycleHour),
		zap.Duration("poll_interval", s.config.PollInterval),
		zap.Duration("health_interval", s.config.HealthInterval),
	)
}

// Stop cancels the loops and waits for them to exit. A cycle already in
// flight finishes on its own context.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.logger.Info("Learning scheduler stopped")
}

// TriggerNow runs a manual cycle, joining an in-flight one instead of
// stacking a second. shared reports whether the result came from a cycle
// another trigger started.
func (s *Scheduler) TriggerNow(ctx context.Context) (*models.LearningCycle, bool, error) {
	return s.runCycle(ctx, models.TriggerManual)
}

func (s *Scheduler) runCycle(ctx context.Context, trigger models.TriggerType) (*models.LearningCycle, bool, error) {
	v, err, shared := s.group.Do(cycleKey, func() (any, error) {
		return s.learning.RunCycle(ctx, trigger)
	})
	if err != nil {
		return nil, shared, err
	}

	cycle := v.(*models.LearningCycle)
	s.mu.Lock()
	s.lastCycleAt = cycle.CompletedAt
	s.lastTrigger = cycle.TriggerType
	s.mu.Unlock()
	return cycle, shared, nil
}

func (s *Scheduler) dailyLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		wait := time.Until(nextDailyRun(time.Now(), s.config.DailyCycleHour))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if _, _, err := s.runCycle(ctx, models.TriggerScheduled); err != nil {
				s.logger.Error("Scheduled learning cycle failed", zap.Error(err))
			}
		}
	}
}

func (s *Scheduler) thresholdLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := s.learning.CountSinceLastCycle(ctx)
			if err != nil {
				s.logger.Error("Feedback threshold check failed", zap.Error(err))
				continue
			}
			if count < s.config.FeedbackThreshold {
				continue
			}
			s.logger.Info("Feedback threshold reached, starting cycle",
				zap.Int("count", count),
				zap.Int("threshold", s.config.FeedbackThreshold),
			)
			if _, _, err := s.runCycle(ctx, models.TriggerThreshold); err != nil {
				s.logger.Error("Threshold learning cycle failed", zap.Error(err))
			}
		}
	}
}

func (s *Scheduler) healthLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, err := s.learning.Status(ctx)
			if err != nil {
				s.logger.Error("Learning health check failed", zap.Error(err))
				continue
			}
			fields := []zap.Field{
				zap.Int("feedback_since_last_cycle", status.FeedbackSinceLastCycle),
			}
			if status.LatestCycle != nil {
				fields = append(fields,
					zap.Time("last_cycle_at", status.LatestCycle.CompletedAt),
					zap.Float64("accuracy_rate", status.LatestCycle.AccuracyRate),
				)
			}
			if status.Solver != nil {
				fields = append(fields, zap.Int("solver_version", status.Solver.Version))
			}
			s.logger.Info("Learning subsystem health", fields...)
		}
	}
}

// SchedulerStatus is a snapshot for the status endpoint.
type SchedulerStatus struct {
	Running      bool               `json:"running"`
	LastCycleAt  *time.Time         `json:"last_cycle_at,omitempty"`
	LastTrigger  models.TriggerType `json:"last_trigger,omitempty"`
	NextDailyRun time.Time          `json:"next_daily_run"`
}

func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := SchedulerStatus{
		Running:      s.started,
		LastTrigger:  s.lastTrigger,
		NextDailyRun: nextDailyRun(time.Now(), s.config.DailyCycleHour),
	}
	if !s.lastCycleAt.IsZero() {
		t := s.lastCycleAt
		status.LastCycleAt = &t
	}
	return status
}

// nextDailyRun returns the next occurrence of hour o'clock local time,
// strictly after now.
func nextDailyRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
