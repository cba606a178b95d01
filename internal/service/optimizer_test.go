package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"mathagent/internal/capability"
	"mathagent/internal/models"

	"go.uber.org/zap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordOverlap(t *testing.T) {
	assert.InDelta(t, 1.0, WordOverlap("the answer is 4", "4"), 1e-9)
	assert.InDelta(t, 0.0, WordOverlap("something else", "42"), 1e-9)
	assert.InDelta(t, 0.0, WordOverlap("anything", ""), 1e-9)
	// Expected words deduplicate: {a, b, c}, prediction covers a and b.
	assert.InDelta(t, 2.0/3.0, WordOverlap("a b", "a a b c"), 1e-9)
	assert.InDelta(t, 1.0, WordOverlap("X = 2", "x = 2"), 1e-9)
}

func TestTrainingExamplesDedupeAndCorrections(t *testing.T) {
	store := &fakeFeedbackStore{highRated: []*models.FeedbackRecord{
		{Question: "What is 2+2?", Answer: "5", Correction: "4", Rating: 4},
		{Question: "what is 2+2?", Answer: "4", Rating: 5},
		{Question: "integrate x", Answer: "x^2/2 + C", Rating: 5},
	}}
	o := NewOptimizer(&fakeGenerator{}, store, testLearningConfig(), zap.NewNop())

	examples, err := o.TrainingExamples(context.Background())
	require.NoError(t, err)
	require.Len(t, examples, 2)
	// Newest row wins the dedupe; its correction overrides the answer.
	assert.Equal(t, "What is 2+2?", examples[0].Question)
	assert.Equal(t, "4", examples[0].Answer)
	assert.Equal(t, "integrate x", examples[1].Question)
}

func TestTrainingExamplesCap(t *testing.T) {
	cfg := testLearningConfig()
	cfg.MaxTrainingExamples = 3
	var records []*models.FeedbackRecord
	for i := 0; i < 10; i++ {
		records = append(records, &models.FeedbackRecord{
			Question: fmt.Sprintf("question %d", i),
			Answer:   "answer",
			Rating:   5,
		})
	}
	o := NewOptimizer(&fakeGenerator{}, &fakeFeedbackStore{highRated: records}, cfg, zap.NewNop())

	examples, err := o.TrainingExamples(context.Background())
	require.NoError(t, err)
	assert.Len(t, examples, 3)
}

func makeExamples(n int) []models.TrainingExample {
	out := make([]models.TrainingExample, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.TrainingExample{
			Question: fmt.Sprintf("question %d", i),
			Answer:   fmt.Sprintf("answer %d", i),
		})
	}
	return out
}

func TestOptimizeSkippedBelowMinimum(t *testing.T) {
	gen := &fakeGenerator{}
	o := NewOptimizer(gen, &fakeFeedbackStore{}, testLearningConfig(), zap.NewNop())

	result := o.Optimize(context.Background(), makeExamples(4))
	assert.Equal(t, OptimizationSkipped, result.Status)
	assert.Equal(t, 4, result.ExampleCount)
	assert.Empty(t, result.Demos)
	// No model calls below the minimum.
	assert.Zero(t, gen.promptCount())
}

func TestOptimizePicksBestDemoSet(t *testing.T) {
	// The generator reports how many demos its prompt carried; the metric
	// turns that into a fixed score per candidate size.
	gen := &fakeGenerator{fn: func(prompt string, _ capability.GenerateOptions) (string, error) {
		demos := strings.Count(prompt, "Question:") - 1
		return fmt.Sprintf("demos=%d", demos), nil
	}}
	scores := map[string]float64{
		"demos=1": 0.2,
		"demos=2": 0.9,
		"demos=3": 0.4,
		"demos=4": 0.1,
	}
	o := NewOptimizer(gen, &fakeFeedbackStore{}, testLearningConfig(), zap.NewNop()).
		WithMetric(func(predicted, _ string) float64 { return scores[predicted] })

	result := o.Optimize(context.Background(), makeExamples(5))
	require.Equal(t, OptimizationSuccess, result.Status)
	assert.InDelta(t, 0.9, result.Score, 1e-9)
	assert.Len(t, result.Demos, 2)
	assert.Equal(t, 5, result.ExampleCount)
}

func TestOptimizeFailsWhenNoCandidateEvaluates(t *testing.T) {
	gen := &fakeGenerator{fn: failWith(errors.New("upstream down"))}
	o := NewOptimizer(gen, &fakeFeedbackStore{}, testLearningConfig(), zap.NewNop())

	result := o.Optimize(context.Background(), makeExamples(6))
	assert.Equal(t, OptimizationFailed, result.Status)
	assert.Empty(t, result.Demos)
}
