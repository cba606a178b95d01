package repository

import (
	"context"
	"time"

	"mathagent/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// KnowledgeRepository owns the knowledge_base table, including the pgvector
// similarity search.
type KnowledgeRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewKnowledgeRepository(db *pgxpool.Pool, logger *zap.Logger) *KnowledgeRepository {
	return &KnowledgeRepository{
		db:     db,
		logger: logger,
	}
}

func toVector(embedding []float32) pgtype.FlatArray[float32] {
	arr := pgtype.FlatArray[float32]{}
	for _, v := range embedding {
		arr = append(arr, v)
	}
	return arr
}

func (r *KnowledgeRepository) Create(ctx context.Context, entry *models.KnowledgeEntry) error {
	query := squirrel.Insert("knowledge_base").
		Columns("id", "question", "answer", "topic", "source", "embedding", "created_at", "updated_at").
		Values(entry.ID, entry.Question, entry.Answer, entry.Topic, entry.Source,
			toVector(entry.Embedding), entry.CreatedAt, entry.UpdatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// Upsert updates the entry matching the exact question text, inserting a new
// row when there is none.
func (r *KnowledgeRepository) Upsert(ctx context.Context, entry *models.KnowledgeEntry) error {
	update := squirrel.Update("knowledge_base").
		Set("answer", entry.Answer).
		Set("topic", entry.Topic).
		Set("source", entry.Source).
		Set("embedding", toVector(entry.Embedding)).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"question": entry.Question}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := update.ToSql()
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	return r.Create(ctx, entry)
}

// SearchSimilar returns the topK entries whose cosine similarity to the
// query embedding exceeds minSimilarity, most similar first.
func (r *KnowledgeRepository) SearchSimilar(ctx context.Context, embedding []float32, topK int, minSimilarity float64) ([]*models.ScoredKnowledgeEntry, error) {
	vec := toVector(embedding)

	query := squirrel.Select("id", "question", "answer", "topic", "source", "embedding", "created_at", "updated_at").
		Column(squirrel.Expr("1 - (embedding <=> ?) AS similarity", vec)).
		From("knowledge_base").
		Where(squirrel.Expr("1 - (embedding <=> ?) > ?", vec, minSimilarity)).
		OrderBy("similarity DESC").
		Limit(uint64(topK)).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*models.ScoredKnowledgeEntry
	for rows.Next() {
		var entry models.ScoredKnowledgeEntry
		var embeddingData pgtype.FlatArray[float32]
		if err := rows.Scan(
			&entry.ID, &entry.Question, &entry.Answer, &entry.Topic, &entry.Source,
			&embeddingData, &entry.CreatedAt, &entry.UpdatedAt, &entry.Similarity,
		); err != nil {
			return nil, err
		}
		entry.Embedding = []float32(embeddingData)
		results = append(results, &entry)
	}

	return results, nil
}

func (r *KnowledgeRepository) Stats(ctx context.Context) (*models.KnowledgeStats, error) {
	query := squirrel.Select("topic", "COUNT(*)").
		From("knowledge_base").
		GroupBy("topic").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &models.KnowledgeStats{ByTopic: map[string]int{}}
	for rows.Next() {
		var topic string
		var count int
		if err := rows.Scan(&topic, &count); err != nil {
			return nil, err
		}
		stats.ByTopic[topic] = count
		stats.TotalEntries += count
	}

	return stats, nil
}
