package dto

import "mathagent/internal/models"

type CycleResponse struct {
	ID                  string  `json:"id"`
	TriggerType         string  `json:"trigger_type"`
	CompletedAt         string  `json:"completed_at"`
	FeedbackCount       int     `json:"feedback_count"`
	AverageRating       float64 `json:"average_rating"`
	AccuracyRate        float64 `json:"accuracy_rate"`
	SuggestionsCount    int     `json:"suggestions_count"`
	OptimizationSuccess bool    `json:"optimization_success"`
	OptimizationScore   float64 `json:"optimization_score"`
	TrainingExamples    int     `json:"training_examples"`
}

func NewCycleResponse(c *models.LearningCycle) CycleResponse {
	return CycleResponse{
		ID:                  c.ID.String(),
		TriggerType:         string(c.TriggerType),
		CompletedAt:         c.CompletedAt.Format("2006-01-02T15:04:05Z07:00"),
		FeedbackCount:       c.FeedbackCount,
		AverageRating:       c.AverageRating,
		AccuracyRate:        c.AccuracyRate,
		SuggestionsCount:    c.SuggestionsCount,
		OptimizationSuccess: c.OptimizationSuccess,
		OptimizationScore:   c.OptimizationScore,
		TrainingExamples:    c.TrainingExamples,
	}
}

type TriggerCycleResponse struct {
	Cycle CycleResponse `json:"cycle"`
	// Joined reports that this request attached to a cycle another trigger
	// had already started.
	Joined bool `json:"joined"`
}

type LearningStatusResponse struct {
	LatestCycle            *CycleResponse `json:"latest_cycle"`
	FeedbackSinceLastCycle int            `json:"feedback_since_last_cycle"`
	FeedbackThreshold      int            `json:"feedback_threshold"`
	Solver                 any            `json:"solver"`
	Scheduler              any            `json:"scheduler"`
}

type CycleHistoryResponse struct {
	Cycles []CycleResponse `json:"cycles"`
}
