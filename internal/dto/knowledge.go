package dto

import "mathagent/internal/models"

type AddKnowledgeRequest struct {
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer" validate:"required"`
	Topic    string `json:"topic"`
}

type KnowledgeEntryResponse struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Topic     string `json:"topic"`
	Source    string `json:"source"`
	CreatedAt string `json:"created_at"`
}

func NewKnowledgeEntryResponse(e *models.KnowledgeEntry) KnowledgeEntryResponse {
	return KnowledgeEntryResponse{
		ID:        e.ID.String(),
		Question:  e.Question,
		Answer:    e.Answer,
		Topic:     e.Topic,
		Source:    e.Source,
		CreatedAt: e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

type ScoredKnowledgeEntryResponse struct {
	KnowledgeEntryResponse
	Similarity float64 `json:"similarity"`
}

type KnowledgeSearchResponse struct {
	Results []ScoredKnowledgeEntryResponse `json:"results"`
}
