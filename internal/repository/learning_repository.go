package repository

import (
	"context"

	"mathagent/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// LearningRepository owns the learning_cycles and system_improvements
// tables. Cycle rows are written once at cycle end and never updated.
type LearningRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewLearningRepository(db *pgxpool.Pool, logger *zap.Logger) *LearningRepository {
	return &LearningRepository{
		db:     db,
		logger: logger,
	}
}

func (r *LearningRepository) CreateCycle(ctx context.Context, cycle *models.LearningCycle) error {
	query := squirrel.Insert("learning_cycles").
		Columns("id", "trigger_type", "completed_at", "feedback_count", "average_rating", "accuracy_rate",
			"suggestions_count", "optimization_success", "optimization_score", "training_examples", "metadata").
		Values(cycle.ID, cycle.TriggerType, cycle.CompletedAt, cycle.FeedbackCount, cycle.AverageRating,
			cycle.AccuracyRate, cycle.SuggestionsCount, cycle.OptimizationSuccess, cycle.OptimizationScore,
			cycle.TrainingExamples, cycle.Metadata).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// LatestCycle returns the most recent cycle, or nil when none has run yet.
func (r *LearningRepository) LatestCycle(ctx context.Context) (*models.LearningCycle, error) {
	cycles, err := r.listCycles(ctx, 1, "completed_at DESC")
	if err != nil {
		return nil, err
	}
	if len(cycles) == 0 {
		return nil, nil
	}
	return cycles[0], nil
}

// RecentCycles returns up to limit cycles, newest first.
func (r *LearningRepository) RecentCycles(ctx context.Context, limit int) ([]*models.LearningCycle, error) {
	return r.listCycles(ctx, limit, "completed_at DESC")
}

// AllCyclesAsc returns the full history oldest first, for trend reporting.
func (r *LearningRepository) AllCyclesAsc(ctx context.Context) ([]*models.LearningCycle, error) {
	return r.listCycles(ctx, 0, "completed_at ASC")
}

func (r *LearningRepository) listCycles(ctx context.Context, limit int, order string) ([]*models.LearningCycle, error) {
	query := squirrel.Select("id", "trigger_type", "completed_at", "feedback_count", "average_rating",
		"accuracy_rate", "suggestions_count", "optimization_success", "optimization_score",
		"training_examples", "metadata").
		From("learning_cycles").
		OrderBy(order).
		PlaceholderFormat(squirrel.Dollar)
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cycles []*models.LearningCycle
	for rows.Next() {
		var c models.LearningCycle
		if err := rows.Scan(
			&c.ID, &c.TriggerType, &c.CompletedAt, &c.FeedbackCount, &c.AverageRating,
			&c.AccuracyRate, &c.SuggestionsCount, &c.OptimizationSuccess, &c.OptimizationScore,
			&c.TrainingExamples, &c.Metadata,
		); err != nil {
			return nil, err
		}
		cycles = append(cycles, &c)
	}

	return cycles, nil
}

// CreateImprovement inserts the audit row for one folded analysis. A row
// already keyed on the same analysis makes the insert a no-op.
func (r *LearningRepository) CreateImprovement(ctx context.Context, imp *models.SystemImprovement) error {
	query := squirrel.Insert("system_improvements").
		Columns("id", "cycle_id", "analysis_id", "question", "description", "source", "created_at").
		Values(imp.ID, imp.CycleID, imp.AnalysisID, imp.Question, imp.Description, imp.Source, imp.CreatedAt).
		Suffix("ON CONFLICT (analysis_id) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}
