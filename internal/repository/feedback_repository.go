package repository

import (
	"context"
	"time"

	"mathagent/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// FeedbackRepository owns the feedback and failure_analysis tables. Both are
// append-only from this service's point of view.
type FeedbackRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewFeedbackRepository(db *pgxpool.Pool, logger *zap.Logger) *FeedbackRepository {
	return &FeedbackRepository{
		db:     db,
		logger: logger,
	}
}

func (r *FeedbackRepository) Create(ctx context.Context, fb *models.FeedbackRecord) error {
	query := squirrel.Insert("feedback").
		Columns("id", "question", "answer", "rating", "comment", "correction", "is_correct", "created_at").
		Values(fb.ID, fb.Question, fb.Answer, fb.Rating, fb.Comment, fb.Correction, fb.IsCorrect, fb.CreatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *FeedbackRepository) List(ctx context.Context, limit, offset int) ([]*models.FeedbackRecord, int, error) {
	countSQL, countArgs, err := squirrel.Select("COUNT(*)").
		From("feedback").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := squirrel.Select("id", "question", "answer", "rating", "comment", "correction", "is_correct", "created_at").
		From("feedback").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []*models.FeedbackRecord
	for rows.Next() {
		var fb models.FeedbackRecord
		if err := rows.Scan(
			&fb.ID, &fb.Question, &fb.Answer, &fb.Rating, &fb.Comment, &fb.Correction, &fb.IsCorrect, &fb.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		records = append(records, &fb)
	}

	return records, total, nil
}

// Stats computes the aggregate in SQL. A row counts toward accuracy when it
// is explicitly marked correct, or carries no correctness flag and a rating
// at or above ratingFloor. Rows explicitly marked incorrect never count.
func (r *FeedbackRepository) Stats(ctx context.Context, ratingFloor int) (*models.FeedbackStats, error) {
	query := squirrel.Select().
		Column("COUNT(*)").
		Column("COALESCE(AVG(rating), 0)").
		Column(squirrel.Expr(
			"COUNT(*) FILTER (WHERE is_correct = TRUE OR (is_correct IS NULL AND rating >= ?))",
			ratingFloor,
		)).
		From("feedback").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var total, accurate int
	var avg float64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&total, &avg, &accurate); err != nil {
		return nil, err
	}

	stats := &models.FeedbackStats{
		TotalFeedback: total,
		AverageRating: avg,
		ByRating:      map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}
	if total > 0 {
		stats.AccuracyRate = float64(accurate) / float64(total)
	}

	histSQL, histArgs, err := squirrel.Select("rating", "COUNT(*)").
		From("feedback").
		GroupBy("rating").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, histSQL, histArgs...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var rating, count int
		if err := rows.Scan(&rating, &count); err != nil {
			return nil, err
		}
		stats.ByRating[rating] = count
	}

	return stats, nil
}

func (r *FeedbackRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	query := squirrel.Select("COUNT(*)").
		From("feedback").
		Where(squirrel.Gt{"created_at": since}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *FeedbackRepository) CountAll(ctx context.Context) (int, error) {
	sql, args, err := squirrel.Select("COUNT(*)").
		From("feedback").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// HighRated returns feedback at or above the rating floor that is not
// explicitly marked incorrect, newest first.
func (r *FeedbackRepository) HighRated(ctx context.Context, ratingFloor, limit int) ([]*models.FeedbackRecord, error) {
	query := squirrel.Select("id", "question", "answer", "rating", "comment", "correction", "is_correct", "created_at").
		From("feedback").
		Where(squirrel.GtOrEq{"rating": ratingFloor}).
		Where(squirrel.Or{
			squirrel.Eq{"is_correct": nil},
			squirrel.Eq{"is_correct": true},
		}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
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

	var records []*models.FeedbackRecord
	for rows.Next() {
		var fb models.FeedbackRecord
		if err := rows.Scan(
			&fb.ID, &fb.Question, &fb.Answer, &fb.Rating, &fb.Comment, &fb.Correction, &fb.IsCorrect, &fb.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, &fb)
	}

	return records, nil
}

// RecentCorrections returns the latest high-rated feedback rows that carry a
// correction text.
func (r *FeedbackRepository) RecentCorrections(ctx context.Context, ratingFloor, limit int) ([]*models.Correction, error) {
	query := squirrel.Select("question", "correction", "rating", "created_at").
		From("feedback").
		Where(squirrel.NotEq{"correction": ""}).
		Where(squirrel.GtOrEq{"rating": ratingFloor}).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
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

	var corrections []*models.Correction
	for rows.Next() {
		var c models.Correction
		if err := rows.Scan(&c.Question, &c.CorrectedAnswer, &c.Rating, &c.CreatedAt); err != nil {
			return nil, err
		}
		corrections = append(corrections, &c)
	}

	return corrections, nil
}

func (r *FeedbackRepository) CreateAnalysis(ctx context.Context, fa *models.FailureAnalysis) error {
	query := squirrel.Insert("failure_analysis").
		Columns("id", "feedback_id", "question", "reason", "improvements_needed",
			"should_add_to_kb", "suggested_correction", "status", "created_at").
		Values(fa.ID, fa.FeedbackID, fa.Question, fa.Reason, fa.ImprovementsNeeded,
			fa.ShouldAddToKB, fa.SuggestedCorrection, fa.Status, fa.CreatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// PendingAnalyses returns unresolved failure analyses not yet reflected in an
// improvement row, newest first.
func (r *FeedbackRepository) PendingAnalyses(ctx context.Context, limit int) ([]*models.FailureAnalysis, error) {
	query := squirrel.Select("fa.id", "fa.feedback_id", "fa.question", "fa.reason", "fa.improvements_needed",
		"fa.should_add_to_kb", "fa.suggested_correction", "fa.status", "fa.created_at").
		From("failure_analysis fa").
		Where(squirrel.Eq{"fa.status": models.AnalysisStatusPendingReview}).
		Where(squirrel.Expr("NOT EXISTS (SELECT 1 FROM system_improvements si WHERE si.analysis_id = fa.id)")).
		OrderBy("fa.created_at DESC").
		Limit(uint64(limit)).
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

	var analyses []*models.FailureAnalysis
	for rows.Next() {
		var fa models.FailureAnalysis
		if err := rows.Scan(
			&fa.ID, &fa.FeedbackID, &fa.Question, &fa.Reason, &fa.ImprovementsNeeded,
			&fa.ShouldAddToKB, &fa.SuggestedCorrection, &fa.Status, &fa.CreatedAt,
		); err != nil {
			return nil, err
		}
		analyses = append(analyses, &fa)
	}

	return analyses, nil
}

// AnalysisSuggestion joins a pending failure analysis with the feedback row
// it came from, for suggestion ranking.
type AnalysisSuggestion struct {
	Analysis  models.FailureAnalysis
	Rating    int
	Comment   string
	IsCorrect *bool
}

// PendingSuggestions returns unresolved analyses joined with their feedback,
// worst rating first.
func (r *FeedbackRepository) PendingSuggestions(ctx context.Context, limit int) ([]*AnalysisSuggestion, error) {
	query := squirrel.Select("fa.id", "fa.feedback_id", "fa.question", "fa.reason", "fa.improvements_needed",
		"fa.should_add_to_kb", "fa.suggested_correction", "fa.status", "fa.created_at",
		"f.rating", "f.comment", "f.is_correct").
		From("failure_analysis fa").
		Join("feedback f ON f.id = fa.feedback_id").
		Where(squirrel.Eq{"fa.status": models.AnalysisStatusPendingReview}).
		OrderBy("f.rating ASC", "fa.created_at DESC").
		Limit(uint64(limit)).
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

	var suggestions []*AnalysisSuggestion
	for rows.Next() {
		var s AnalysisSuggestion
		if err := rows.Scan(
			&s.Analysis.ID, &s.Analysis.FeedbackID, &s.Analysis.Question, &s.Analysis.Reason,
			&s.Analysis.ImprovementsNeeded, &s.Analysis.ShouldAddToKB, &s.Analysis.SuggestedCorrection,
			&s.Analysis.Status, &s.Analysis.CreatedAt,
			&s.Rating, &s.Comment, &s.IsCorrect,
		); err != nil {
			return nil, err
		}
		suggestions = append(suggestions, &s)
	}

	return suggestions, nil
}
