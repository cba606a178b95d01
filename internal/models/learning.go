package models

import (
	"time"

	"github.com/google/uuid"
)

type TriggerType string

const (
	TriggerScheduled TriggerType = "scheduled"
	TriggerThreshold TriggerType = "threshold"
	TriggerManual    TriggerType = "manual"
)

// LearningCycle is the append-only record of one completed learning cycle.
type LearningCycle struct {
	ID                  uuid.UUID   `db:"id"`
	TriggerType         TriggerType `db:"trigger_type"`
	CompletedAt         time.Time   `db:"completed_at"`
	FeedbackCount       int         `db:"feedback_count"`
	AverageRating       float64     `db:"average_rating"`
	AccuracyRate        float64     `db:"accuracy_rate"`
	SuggestionsCount    int         `db:"suggestions_count"`
	OptimizationSuccess bool        `db:"optimization_success"`
	OptimizationScore   float64     `db:"optimization_score"`
	TrainingExamples    int         `db:"training_examples"`
	Metadata            string      `db:"metadata"`
}

// SystemImprovement is an audit row for each knowledge-base entry created
// from a validated correction during a cycle. At most one row exists per
// failure analysis.
type SystemImprovement struct {
	ID          uuid.UUID `db:"id"`
	CycleID     uuid.UUID `db:"cycle_id"`
	AnalysisID  uuid.UUID `db:"analysis_id"`
	Question    string    `db:"question"`
	Description string    `db:"description"`
	Source      string    `db:"source"`
	CreatedAt   time.Time `db:"created_at"`
}
