package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mathagent/internal/capability"
	"mathagent/internal/models"
	"mathagent/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	suggestionsPerCycle = 10
	kbUpdatesPerCycle   = 50
)

// CycleStore is the slice of the learning repository the service uses.
type CycleStore interface {
	CreateCycle(ctx context.Context, cycle *models.LearningCycle) error
	LatestCycle(ctx context.Context) (*models.LearningCycle, error)
	RecentCycles(ctx context.Context, limit int) ([]*models.LearningCycle, error)
	AllCyclesAsc(ctx context.Context) ([]*models.LearningCycle, error)
	CreateImprovement(ctx context.Context, imp *models.SystemImprovement) error
}

// KnowledgeWriter persists knowledge entries produced by learning cycles.
type KnowledgeWriter interface {
	Upsert(ctx context.Context, entry *models.KnowledgeEntry) error
}

// LearningService runs learning cycles: collect feedback statistics, attempt
// solver optimization, fold verified corrections into the knowledge base,
// and record the cycle. A failed or skipped optimization never aborts the
// rest of the cycle.
type LearningService struct {
	feedback  FeedbackStore
	cycles    CycleStore
	knowledge KnowledgeWriter
	embedder  capability.Embedder
	optimizer *Optimizer
	solvers   *SolverStore
	config    *config.LearningConfig
	logger    *zap.Logger
}

func NewLearningService(
	feedback FeedbackStore,
	cycles CycleStore,
	knowledge KnowledgeWriter,
	embedder capability.Embedder,
	optimizer *Optimizer,
	solvers *SolverStore,
	cfg *config.LearningConfig,
	logger *zap.Logger,
) *LearningService {
	return &LearningService{
		feedback:  feedback,
		cycles:    cycles,
		knowledge: knowledge,
		embedder:  embedder,
		optimizer: optimizer,
		solvers:   solvers,
		config:    cfg,
		logger:    logger,
	}
}

// RunCycle executes one full learning cycle. Exactly one cycle row is
// written per run, whatever the optimization outcome.
func (s *LearningService) RunCycle(ctx context.Context, trigger models.TriggerType) (*models.LearningCycle, error) {
	start := time.Now()
	s.logger.Info("Learning cycle started", zap.String("trigger", string(trigger)))

	stats, err := s.feedback.Stats(ctx, s.config.TrainingRatingFloor)
	if err != nil {
		return nil, fmt.Errorf("%w: cycle feedback stats: %v", ErrPersistence, err)
	}

	suggestionsCount := 0
	if pending, err := s.feedback.PendingSuggestions(ctx, suggestionsPerCycle); err != nil {
		s.logger.Warn("Failed to count pending suggestions", zap.Error(err))
	} else {
		suggestionsCount = len(pending)
	}

	var examples []models.TrainingExample
	if examples, err = s.optimizer.TrainingExamples(ctx); err != nil {
		s.logger.Error("Failed to build training examples, skipping optimization", zap.Error(err))
		examples = nil
	}

	result := s.optimizer.Optimize(ctx, examples)
	s.logger.Info("Optimization finished",
		zap.String("status", result.Status),
		zap.Float64("score", result.Score),
		zap.Int("examples", result.ExampleCount),
	)

	cycle := &models.LearningCycle{
		ID:                  uuid.New(),
		TriggerType:         trigger,
		CompletedAt:         time.Now().UTC(),
		FeedbackCount:       stats.TotalFeedback,
		AverageRating:       stats.AverageRating,
		AccuracyRate:        stats.AccuracyRate,
		SuggestionsCount:    suggestionsCount,
		OptimizationSuccess: result.Status == OptimizationSuccess,
		OptimizationScore:   result.Score,
		TrainingExamples:    result.ExampleCount,
	}

	kbUpdates := s.updateKnowledgeBase(ctx, cycle.ID)

	cycle.Metadata = cycleMetadata(result, kbUpdates)

	// The cycle itself succeeded; a failed row write must not undo that.
	if err := s.cycles.CreateCycle(ctx, cycle); err != nil {
		s.logger.Error("Failed to record learning cycle", zap.Error(err),
			zap.String("cycle_id", cycle.ID.String()))
	}

	if result.Status == OptimizationSuccess {
		published := s.solvers.Publish(&OptimizedSolver{
			Score:       result.Score,
			Demos:       result.Demos,
			TriggerType: trigger,
			CreatedAt:   time.Now().UTC(),
		})
		s.logger.Info("Optimized solver published",
			zap.Int("version", published.Version),
			zap.Float64("score", published.Score),
			zap.Int("demos", len(published.Demos)),
		)
	}

	s.logger.Info("Learning cycle completed",
		zap.String("cycle_id", cycle.ID.String()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return cycle, nil
}

// updateKnowledgeBase folds reviewed corrections into the knowledge base:
// every pending failure analysis flagged for the KB that carries a usable
// correction becomes an upserted entry plus an improvement row. The
// improvement row keyed on the analysis keeps later cycles from folding the
// same analysis in again. Per-entry failures are logged and skipped.
func (s *LearningService) updateKnowledgeBase(ctx context.Context, cycleID uuid.UUID) int {
	analyses, err := s.feedback.PendingAnalyses(ctx, kbUpdatesPerCycle)
	if err != nil {
		s.logger.Error("Failed to load pending analyses for KB update", zap.Error(err))
		return 0
	}

	updated := 0
	for _, fa := range analyses {
		if !fa.ShouldAddToKB || fa.SuggestedCorrection == "" {
			continue
		}

		embedding, err := s.embedder.Embed(ctx, fa.Question)
		if err != nil {
			s.logger.Warn("Embedding failed for KB update, skipping entry",
				zap.Error(err), zap.String("analysis_id", fa.ID.String()))
			continue
		}

		topic, ok := detectTopic(fa.Question)
		if !ok {
			topic = "general"
		}

		now := time.Now().UTC()
		entry := &models.KnowledgeEntry{
			ID:        uuid.New(),
			Question:  fa.Question,
			Answer:    fa.SuggestedCorrection,
			Topic:     topic,
			Source:    "feedback",
			Embedding: embedding,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.knowledge.Upsert(ctx, entry); err != nil {
			s.logger.Warn("KB upsert failed, skipping entry",
				zap.Error(err), zap.String("analysis_id", fa.ID.String()))
			continue
		}

		imp := &models.SystemImprovement{
			ID:          uuid.New(),
			CycleID:     cycleID,
			AnalysisID:  fa.ID,
			Question:    fa.Question,
			Description: fa.ImprovementsNeeded,
			Source:      "failure_analysis",
			CreatedAt:   now,
		}
		if err := s.cycles.CreateImprovement(ctx, imp); err != nil {
			s.logger.Warn("Failed to record system improvement", zap.Error(err))
		}

		updated++
	}

	if updated > 0 {
		s.logger.Info("Knowledge base updated from feedback", zap.Int("entries", updated))
	}
	return updated
}

func cycleMetadata(result *OptimizationResult, kbUpdates int) string {
	meta, err := json.Marshal(map[string]any{
		"optimization_status": result.Status,
		"optimization_reason": result.Reason,
		"kb_updates":          kbUpdates,
	})
	if err != nil {
		return "{}"
	}
	return string(meta)
}

// CountSinceLastCycle reports how much feedback arrived after the most
// recent cycle, or all feedback when no cycle has run yet.
func (s *LearningService) CountSinceLastCycle(ctx context.Context) (int, error) {
	latest, err := s.cycles.LatestCycle(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: latest cycle: %v", ErrPersistence, err)
	}
	if latest == nil {
		count, err := s.feedback.CountAll(ctx)
		if err != nil {
			return 0, fmt.Errorf("%w: count feedback: %v", ErrPersistence, err)
		}
		return count, nil
	}
	count, err := s.feedback.CountSince(ctx, latest.CompletedAt)
	if err != nil {
		return 0, fmt.Errorf("%w: count feedback since cycle: %v", ErrPersistence, err)
	}
	return count, nil
}

// LearningStatus is the operator view of the subsystem.
type LearningStatus struct {
	LatestCycle            *models.LearningCycle `json:"latest_cycle"`
	FeedbackSinceLastCycle int                   `json:"feedback_since_last_cycle"`
	FeedbackThreshold      int                   `json:"feedback_threshold"`
	Solver                 *SolverInfo           `json:"solver"`
}

func (s *LearningService) Status(ctx context.Context) (*LearningStatus, error) {
	latest, err := s.cycles.LatestCycle(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: latest cycle: %v", ErrPersistence, err)
	}
	count, err := s.CountSinceLastCycle(ctx)
	if err != nil {
		return nil, err
	}
	return &LearningStatus{
		LatestCycle:            latest,
		FeedbackSinceLastCycle: count,
		FeedbackThreshold:      s.config.FeedbackThreshold,
		Solver:                 s.solvers.Info(),
	}, nil
}

func (s *LearningService) History(ctx context.Context, limit int) ([]*models.LearningCycle, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	cycles, err := s.cycles.RecentCycles(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: cycle history: %v", ErrPersistence, err)
	}
	return cycles, nil
}

// TrendPoint is one cycle's headline numbers, for trend reporting.
type TrendPoint struct {
	CompletedAt       time.Time `json:"completed_at"`
	AverageRating     float64   `json:"average_rating"`
	AccuracyRate      float64   `json:"accuracy_rate"`
	OptimizationScore float64   `json:"optimization_score"`
}

// LearningMetrics summarizes the whole cycle history oldest first, with
// first-to-last deltas for the headline numbers.
type LearningMetrics struct {
	Cycles        int          `json:"cycles"`
	Points        []TrendPoint `json:"points"`
	RatingTrend   float64      `json:"rating_trend"`
	AccuracyTrend float64      `json:"accuracy_trend"`
}

func (s *LearningService) Metrics(ctx context.Context) (*LearningMetrics, error) {
	cycles, err := s.cycles.AllCyclesAsc(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: cycle metrics: %v", ErrPersistence, err)
	}

	metrics := &LearningMetrics{Cycles: len(cycles), Points: make([]TrendPoint, 0, len(cycles))}
	for _, c := range cycles {
		metrics.Points = append(metrics.Points, TrendPoint{
			CompletedAt:       c.CompletedAt,
			AverageRating:     c.AverageRating,
			AccuracyRate:      c.AccuracyRate,
			OptimizationScore: c.OptimizationScore,
		})
	}
	if len(cycles) >= 2 {
		first, last := cycles[0], cycles[len(cycles)-1]
		metrics.RatingTrend = last.AverageRating - first.AverageRating
		metrics.AccuracyTrend = last.AccuracyRate - first.AccuracyRate
	}
	return metrics, nil
}
