package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"mathagent/internal/capability"
	"mathagent/internal/models"
	"mathagent/internal/repository"
	"mathagent/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FeedbackStore is the slice of the feedback repository the services use.
type FeedbackStore interface {
	Create(ctx context.Context, fb *models.FeedbackRecord) error
	List(ctx context.Context, limit, offset int) ([]*models.FeedbackRecord, int, error)
	Stats(ctx context.Context, ratingFloor int) (*models.FeedbackStats, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
	CountAll(ctx context.Context) (int, error)
	HighRated(ctx context.Context, ratingFloor, limit int) ([]*models.FeedbackRecord, error)
	RecentCorrections(ctx context.Context, ratingFloor, limit int) ([]*models.Correction, error)
	CreateAnalysis(ctx context.Context, fa *models.FailureAnalysis) error
	PendingAnalyses(ctx context.Context, limit int) ([]*models.FailureAnalysis, error)
	PendingSuggestions(ctx context.Context, limit int) ([]*repository.AnalysisSuggestion, error)
}

// FeedbackService records user feedback and analyzes failures. Analysis of a
// low-rated submission happens inline, but its errors never fail the
// submission itself.
type FeedbackService struct {
	store     FeedbackStore
	generator capability.TextGenerator
	config    *config.LearningConfig
	logger    *zap.Logger
}

func NewFeedbackService(store FeedbackStore, generator capability.TextGenerator, cfg *config.LearningConfig, logger *zap.Logger) *FeedbackService {
	return &FeedbackService{
		store:     store,
		generator: generator,
		config:    cfg,
		logger:    logger,
	}
}

// Submit validates and persists one feedback record. A rating at or below
// the failure cutoff additionally triggers a failure analysis.
func (s *FeedbackService) Submit(ctx context.Context, fb *models.FeedbackRecord) error {
	if fb.Rating < 1 || fb.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	if strings.TrimSpace(fb.Question) == "" {
		return fmt.Errorf("%w: question is required", ErrValidation)
	}

	fb.ID = uuid.New()
	fb.Question = sanitizeUTF8(strings.TrimSpace(fb.Question))
	fb.Answer = sanitizeUTF8(fb.Answer)
	fb.Comment = sanitizeUTF8(fb.Comment)
	fb.Correction = sanitizeUTF8(fb.Correction)
	fb.CreatedAt = time.Now().UTC()

	if err := s.store.Create(ctx, fb); err != nil {
		return fmt.Errorf("%w: create feedback: %v", ErrPersistence, err)
	}

	s.logger.Info("Feedback recorded",
		zap.String("feedback_id", fb.ID.String()),
		zap.Int("rating", fb.Rating),
	)

	if fb.Rating <= s.config.FailureRatingCutoff {
		if err := s.analyzeFailure(ctx, fb); err != nil {
			s.logger.Error("Failure analysis failed", zap.Error(err),
				zap.String("feedback_id", fb.ID.String()))
		}
	}

	return nil
}

// analyzeFailure asks the model why the answer disappointed and records the
// result for later review. An unusable model reply degrades to a generic
// analysis so the failure is still tracked.
func (s *FeedbackService) analyzeFailure(ctx context.Context, fb *models.FeedbackRecord) error {
	analysis := &models.FailureAnalysis{
		ID:         uuid.New(),
		FeedbackID: fb.ID,
		Question:   fb.Question,
		Status:     models.AnalysisStatusPendingReview,
		CreatedAt:  time.Now().UTC(),
	}

	prompt := fmt.Sprintf(`A math answer received a poor rating (%d of 5).

Question: %s

Answer given: %s

User comment: %s
User correction: %s

Respond with JSON only:
{"reason": "why the answer failed", "improvements_needed": "what to change", "should_add_to_kb": true/false, "suggested_correction": "a corrected answer, or empty"}`,
		fb.Rating, fb.Question, fb.Answer, fb.Comment, fb.Correction)

	content, err := s.generator.Generate(ctx, prompt, capability.GenerateOptions{
		SystemInstruction: "You analyze failed math answers. Output only JSON.",
		Temperature:       0.2,
	})
	if err != nil {
		s.logger.Warn("Failure analysis generation failed, recording generic analysis", zap.Error(err))
		analysis.Reason = "Low user rating"
		analysis.ImprovementsNeeded = "Review the answer for correctness and clarity"
	} else {
		var parsed struct {
			Reason              string `json:"reason"`
			ImprovementsNeeded  string `json:"improvements_needed"`
			ShouldAddToKB       bool   `json:"should_add_to_kb"`
			SuggestedCorrection string `json:"suggested_correction"`
		}
		raw := extractJSONObject(content)
		if raw == "" || json.Unmarshal([]byte(raw), &parsed) != nil {
			s.logger.Warn("Unparseable failure analysis response", zap.String("content", content))
			analysis.Reason = "Low user rating"
			analysis.ImprovementsNeeded = "Review the answer for correctness and clarity"
		} else {
			analysis.Reason = sanitizeUTF8(parsed.Reason)
			analysis.ImprovementsNeeded = sanitizeUTF8(parsed.ImprovementsNeeded)
			analysis.ShouldAddToKB = parsed.ShouldAddToKB
			analysis.SuggestedCorrection = sanitizeUTF8(parsed.SuggestedCorrection)
		}
	}

	// A user-supplied correction is the strongest possible signal.
	if fb.Correction != "" && analysis.SuggestedCorrection == "" {
		analysis.SuggestedCorrection = fb.Correction
		analysis.ShouldAddToKB = true
	}

	if err := s.store.CreateAnalysis(ctx, analysis); err != nil {
		return fmt.Errorf("%w: create failure analysis: %v", ErrPersistence, err)
	}

	s.logger.Info("Failure analysis recorded",
		zap.String("feedback_id", fb.ID.String()),
		zap.Bool("should_add_to_kb", analysis.ShouldAddToKB),
	)
	return nil
}

func (s *FeedbackService) List(ctx context.Context, limit, offset int) ([]*models.FeedbackRecord, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	records, total, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list feedback: %v", ErrPersistence, err)
	}
	return records, total, nil
}

func (s *FeedbackService) Stats(ctx context.Context) (*models.FeedbackStats, error) {
	stats, err := s.store.Stats(ctx, s.config.TrainingRatingFloor)
	if err != nil {
		return nil, fmt.Errorf("%w: feedback stats: %v", ErrPersistence, err)
	}
	return stats, nil
}

// Suggestions ranks pending failure analyses into actionable items, worst
// rated first.
func (s *FeedbackService) Suggestions(ctx context.Context, limit int) ([]*models.Suggestion, error) {
	if limit <= 0 {
		limit = 10
	}
	pending, err := s.store.PendingSuggestions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: pending suggestions: %v", ErrPersistence, err)
	}

	suggestions := make([]*models.Suggestion, 0, len(pending))
	for _, p := range pending {
		suggestions = append(suggestions, &models.Suggestion{
			Question:        p.Analysis.Question,
			Issue:           issueText(p),
			Rating:          p.Rating,
			SuggestedAction: suggestedAction(p),
		})
	}
	return suggestions, nil
}

func issueText(p *repository.AnalysisSuggestion) string {
	if p.Analysis.Reason != "" {
		return p.Analysis.Reason
	}
	if p.Comment != "" {
		return p.Comment
	}
	return "Low user rating"
}

func suggestedAction(p *repository.AnalysisSuggestion) string {
	switch {
	case p.IsCorrect != nil && !*p.IsCorrect:
		return "Review and correct answer, add to knowledge base"
	case p.Rating <= 2:
		return "Improve explanation clarity and step-by-step details"
	default:
		return "Monitor for patterns"
	}
}
