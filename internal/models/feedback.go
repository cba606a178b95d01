package models

import (
	"time"

	"github.com/google/uuid"
)

// FeedbackRecord is one user verdict on a generated answer. Immutable once
// written.
type FeedbackRecord struct {
	ID         uuid.UUID `db:"id"`
	Question   string    `db:"question"`
	Answer     string    `db:"answer"`
	Rating     int       `db:"rating"`
	Comment    string    `db:"comment"`
	Correction string    `db:"correction"`
	IsCorrect  *bool     `db:"is_correct"`
	CreatedAt  time.Time `db:"created_at"`
}

type AnalysisStatus string

const (
	AnalysisStatusPendingReview AnalysisStatus = "pending_review"
	AnalysisStatusReviewed      AnalysisStatus = "reviewed"
	AnalysisStatusResolved      AnalysisStatus = "resolved"
	AnalysisStatusDismissed     AnalysisStatus = "dismissed"
)

// FailureAnalysis is the synchronous diagnostic for a low-rated answer.
// The status transition is the only mutation path, driven by a reviewer
// outside this service.
type FailureAnalysis struct {
	ID                  uuid.UUID      `db:"id"`
	FeedbackID          uuid.UUID      `db:"feedback_id"`
	Question            string         `db:"question"`
	Reason              string         `db:"reason"`
	ImprovementsNeeded  string         `db:"improvements_needed"`
	ShouldAddToKB       bool           `db:"should_add_to_kb"`
	SuggestedCorrection string         `db:"suggested_correction"`
	Status              AnalysisStatus `db:"status"`
	CreatedAt           time.Time      `db:"created_at"`
}

// FeedbackStats is the aggregate over all feedback rows.
type FeedbackStats struct {
	TotalFeedback int         `json:"total_feedback"`
	AverageRating float64     `json:"average_rating"`
	AccuracyRate  float64     `json:"accuracy_rate"`
	ByRating      map[int]int `json:"feedback_by_rating"`
}

// Suggestion is a recommended action derived from an unresolved failure
// analysis.
type Suggestion struct {
	Question        string `json:"question"`
	Issue           string `json:"issue"`
	Rating          int    `json:"rating"`
	SuggestedAction string `json:"suggested_action"`
}

// Correction pairs a question with a user-validated answer.
type Correction struct {
	Question        string    `json:"question"`
	CorrectedAnswer string    `json:"corrected_answer"`
	Rating          int       `json:"rating"`
	CreatedAt       time.Time `json:"created_at"`
}

// TrainingExample is a (question, accepted answer) pair drawn from
// high-rated feedback. Recomputed each cycle, never persisted.
type TrainingExample struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
