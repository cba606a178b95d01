package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mathagent/internal/capability"
	"mathagent/internal/models"
	"mathagent/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// KnowledgeStore is the full knowledge repository surface.
type KnowledgeStore interface {
	Create(ctx context.Context, entry *models.KnowledgeEntry) error
	Upsert(ctx context.Context, entry *models.KnowledgeEntry) error
	SearchSimilar(ctx context.Context, embedding []float32, topK int, minSimilarity float64) ([]*models.ScoredKnowledgeEntry, error)
	Stats(ctx context.Context) (*models.KnowledgeStats, error)
}

// KnowledgeService manages the solved-problem store for the admin and
// search endpoints.
type KnowledgeService struct {
	store    KnowledgeStore
	embedder capability.Embedder
	config   *config.RetrievalConfig
	logger   *zap.Logger
}

func NewKnowledgeService(store KnowledgeStore, embedder capability.Embedder, cfg *config.RetrievalConfig, logger *zap.Logger) *KnowledgeService {
	return &KnowledgeService{
		store:    store,
		embedder: embedder,
		config:   cfg,
		logger:   logger,
	}
}

// Add embeds and stores one entry. An existing entry with the same question
// text is overwritten.
func (s *KnowledgeService) Add(ctx context.Context, question, answer, topic string) (*models.KnowledgeEntry, error) {
	question = sanitizeUTF8(strings.TrimSpace(question))
	answer = sanitizeUTF8(strings.TrimSpace(answer))
	if question == "" || answer == "" {
		return nil, fmt.Errorf("%w: question and answer are required", ErrValidation)
	}
	if topic = strings.ToLower(strings.TrimSpace(topic)); topic == "" {
		topic = "general"
	}

	embedding, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: embed knowledge entry: %v", ErrCapability, err)
	}

	now := time.Now().UTC()
	entry := &models.KnowledgeEntry{
		ID:        uuid.New(),
		Question:  question,
		Answer:    answer,
		Topic:     topic,
		Source:    "manual",
		Embedding: embedding,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Upsert(ctx, entry); err != nil {
		return nil, fmt.Errorf("%w: store knowledge entry: %v", ErrPersistence, err)
	}

	s.logger.Info("Knowledge entry added",
		zap.String("entry_id", entry.ID.String()),
		zap.String("topic", topic),
	)
	return entry, nil
}

// Search runs a similarity search against the knowledge base.
func (s *KnowledgeService) Search(ctx context.Context, query string, topK int) ([]*models.ScoredKnowledgeEntry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrValidation)
	}
	if topK <= 0 || topK > 20 {
		topK = s.config.TopK
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed search query: %v", ErrCapability, err)
	}

	entries, err := s.store.SearchSimilar(ctx, embedding, topK, s.config.SimilarityThreshold)
	if err != nil {
		return nil, fmt.Errorf("%w: knowledge search: %v", ErrPersistence, err)
	}
	return entries, nil
}

func (s *KnowledgeService) Stats(ctx context.Context) (*models.KnowledgeStats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: knowledge stats: %v", ErrPersistence, err)
	}
	return stats, nil
}
