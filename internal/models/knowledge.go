package models

import (
	"time"

	"github.com/google/uuid"
)

// KnowledgeEntry is one canonical question/answer pair with its embedding.
type KnowledgeEntry struct {
	ID        uuid.UUID `db:"id"`
	Question  string    `db:"question"`
	Answer    string    `db:"answer"`
	Topic     string    `db:"topic"`
	Source    string    `db:"source"`
	Embedding []float32 `db:"embedding"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ScoredKnowledgeEntry is a search hit with its cosine similarity.
type ScoredKnowledgeEntry struct {
	KnowledgeEntry
	Similarity float64 `json:"similarity"`
}

// KnowledgeStats summarizes the knowledge base for reporting.
type KnowledgeStats struct {
	TotalEntries int            `json:"total_entries"`
	ByTopic      map[string]int `json:"by_topic"`
}
