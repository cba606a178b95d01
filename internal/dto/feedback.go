package dto

import "mathagent/internal/models"

type FeedbackRequest struct {
	Question   string `json:"question" validate:"required"`
	Answer     string `json:"answer"`
	Rating     int    `json:"rating" validate:"required,min=1,max=5"`
	Comment    string `json:"comment"`
	Correction string `json:"correction"`
	IsCorrect  *bool  `json:"is_correct"`
}

type FeedbackResponse struct {
	FeedbackID string `json:"feedback_id"`
	Status     string `json:"status"`
}

type FeedbackItem struct {
	ID         string `json:"id"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment,omitempty"`
	Correction string `json:"correction,omitempty"`
	IsCorrect  *bool  `json:"is_correct"`
	CreatedAt  string `json:"created_at"`
}

type FeedbackListResponse struct {
	Items  []FeedbackItem `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func NewFeedbackItem(fb *models.FeedbackRecord) FeedbackItem {
	return FeedbackItem{
		ID:         fb.ID.String(),
		Question:   fb.Question,
		Answer:     fb.Answer,
		Rating:     fb.Rating,
		Comment:    fb.Comment,
		Correction: fb.Correction,
		IsCorrect:  fb.IsCorrect,
		CreatedAt:  fb.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
