package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"mathagent/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type learningFixture struct {
	service  *LearningService
	feedback *fakeFeedbackStore
	cycles   *fakeCycleStore
	kb       *fakeKnowledge
	solvers  *SolverStore
	gen      *fakeGenerator
}

func newLearningFixture() *learningFixture {
	f := &learningFixture{
		feedback: &fakeFeedbackStore{},
		cycles:   &fakeCycleStore{},
		kb:       &fakeKnowledge{},
		solvers:  NewSolverStore(),
		gen:      &fakeGenerator{fn: respondWith("an answer")},
	}
	f.feedback.improvements = f.cycles
	cfg := testLearningConfig()
	optimizer := NewOptimizer(f.gen, f.feedback, cfg, zap.NewNop()).
		WithMetric(func(string, string) float64 { return 0.5 })
	f.service = NewLearningService(
		f.feedback, f.cycles, f.kb, &fakeEmbedder{vec: []float32{0.1}},
		optimizer, f.solvers, cfg, zap.NewNop())
	return f
}

func highRatedRecords(n int) []*models.FeedbackRecord {
	out := make([]*models.FeedbackRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &models.FeedbackRecord{
			Question: fmt.Sprintf("question %d", i),
			Answer:   fmt.Sprintf("answer %d", i),
			Rating:   5,
		})
	}
	return out
}

func TestRunCycleBelowMinimumSkipsOptimization(t *testing.T) {
	f := newLearningFixture()
	f.feedback.stats = &models.FeedbackStats{TotalFeedback: 3, AverageRating: 4.1, ByRating: map[int]int{}}

	cycle, err := f.service.RunCycle(context.Background(), models.TriggerManual)
	require.NoError(t, err)

	// Exactly one cycle row, even when optimization was skipped.
	assert.Equal(t, 1, f.cycles.cycleCount())
	assert.False(t, cycle.OptimizationSuccess)
	assert.Equal(t, 0, cycle.TrainingExamples)
	assert.Equal(t, 3, cycle.FeedbackCount)
	assert.Contains(t, cycle.Metadata, OptimizationSkipped)

	// No solver is published for a skipped optimization.
	assert.Nil(t, f.solvers.Current())
}

func TestRunCycleSuccessPublishesSolver(t *testing.T) {
	f := newLearningFixture()
	f.feedback.stats = &models.FeedbackStats{TotalFeedback: 20, AverageRating: 4.4, AccuracyRate: 0.8, ByRating: map[int]int{}}
	f.feedback.highRated = highRatedRecords(6)

	cycle, err := f.service.RunCycle(context.Background(), models.TriggerThreshold)
	require.NoError(t, err)

	assert.True(t, cycle.OptimizationSuccess)
	assert.InDelta(t, 0.5, cycle.OptimizationScore, 1e-9)
	assert.Equal(t, 6, cycle.TrainingExamples)
	assert.Equal(t, models.TriggerThreshold, cycle.TriggerType)

	solver := f.solvers.Current()
	require.NotNil(t, solver)
	assert.Equal(t, 1, solver.Version)
	assert.NotEmpty(t, solver.Demos)
	assert.Equal(t, models.TriggerThreshold, solver.TriggerType)
}

func TestRunCycleUpdatesKnowledgeBaseFromAnalyses(t *testing.T) {
	f := newLearningFixture()
	f.feedback.stats = &models.FeedbackStats{TotalFeedback: 5, ByRating: map[int]int{}}
	flagged := &models.FailureAnalysis{
		ID: uuid.New(), Question: "solve x+2=0", ShouldAddToKB: true,
		SuggestedCorrection: "x = -2", ImprovementsNeeded: "mind the sign",
	}
	f.feedback.pendingAnalyses = []*models.FailureAnalysis{
		flagged,
		{ID: uuid.New(), Question: "what is 2+2", ShouldAddToKB: false, SuggestedCorrection: "4"},
		{ID: uuid.New(), Question: "no correction here", ShouldAddToKB: true},
		{
			ID: uuid.New(), Question: "derivative of sin x", ShouldAddToKB: true,
			SuggestedCorrection: "cos x",
		},
	}

	cycle, err := f.service.RunCycle(context.Background(), models.TriggerScheduled)
	require.NoError(t, err)

	// Only the flagged analyses with a usable correction land in the KB,
	// classified by the same keyword pass the input guardrail uses.
	require.Len(t, f.kb.upserted, 2)
	entry := f.kb.upserted[0]
	assert.Equal(t, "solve x+2=0", entry.Question)
	assert.Equal(t, "x = -2", entry.Answer)
	assert.Equal(t, "general", entry.Topic)
	assert.Equal(t, "feedback", entry.Source)
	assert.NotEmpty(t, entry.Embedding)
	assert.Equal(t, "calculus", f.kb.upserted[1].Topic)

	require.Len(t, f.cycles.improvements, 2)
	assert.Equal(t, cycle.ID, f.cycles.improvements[0].CycleID)
	assert.Equal(t, flagged.ID, f.cycles.improvements[0].AnalysisID)
	assert.Equal(t, "mind the sign", f.cycles.improvements[0].Description)
}

func TestRunCycleFoldsEachAnalysisOnce(t *testing.T) {
	f := newLearningFixture()
	f.feedback.stats = &models.FeedbackStats{TotalFeedback: 5, ByRating: map[int]int{}}
	f.feedback.pendingAnalyses = []*models.FailureAnalysis{
		{
			ID: uuid.New(), Question: "solve x+2=0", ShouldAddToKB: true,
			SuggestedCorrection: "x = -2",
		},
	}

	_, err := f.service.RunCycle(context.Background(), models.TriggerScheduled)
	require.NoError(t, err)
	_, err = f.service.RunCycle(context.Background(), models.TriggerScheduled)
	require.NoError(t, err)

	// The second cycle sees the improvement row and leaves the entry alone.
	assert.Len(t, f.kb.upserted, 1)
	assert.Len(t, f.cycles.improvements, 1)
	assert.Equal(t, 2, f.cycles.cycleCount())
}

func TestRunCycleRecordsRowBestEffort(t *testing.T) {
	f := newLearningFixture()
	f.feedback.stats = &models.FeedbackStats{TotalFeedback: 20, ByRating: map[int]int{}}
	f.feedback.highRated = highRatedRecords(6)
	f.cycles.createErr = errors.New("db down")

	cycle, err := f.service.RunCycle(context.Background(), models.TriggerManual)
	require.NoError(t, err)
	require.NotNil(t, cycle)

	// The solver still ships even though the audit row was lost.
	assert.NotNil(t, f.solvers.Current())
}

func TestRunCycleStatsFailureIsFatal(t *testing.T) {
	f := newLearningFixture()
	f.feedback.statsErr = errors.New("db down")

	_, err := f.service.RunCycle(context.Background(), models.TriggerManual)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Zero(t, f.cycles.cycleCount())
}

func TestCountSinceLastCycle(t *testing.T) {
	f := newLearningFixture()
	f.feedback.countAll = 7

	// No cycle yet: every row counts.
	count, err := f.service.CountSinceLastCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	f.feedback.stats = &models.FeedbackStats{ByRating: map[int]int{}}
	_, err = f.service.RunCycle(context.Background(), models.TriggerManual)
	require.NoError(t, err)

	f.feedback.countSince = 2
	count, err = f.service.CountSinceLastCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMetricsTrends(t *testing.T) {
	f := newLearningFixture()
	f.cycles.cycles = []*models.LearningCycle{
		{AverageRating: 3.0, AccuracyRate: 0.5},
		{AverageRating: 3.5, AccuracyRate: 0.6},
		{AverageRating: 4.2, AccuracyRate: 0.8},
	}

	metrics, err := f.service.Metrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, metrics.Cycles)
	require.Len(t, metrics.Points, 3)
	assert.InDelta(t, 1.2, metrics.RatingTrend, 1e-9)
	assert.InDelta(t, 0.3, metrics.AccuracyTrend, 1e-9)
}
