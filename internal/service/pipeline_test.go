package service

import (
	"context"
	"errors"
	"testing"

	"mathagent/internal/capability"
	"mathagent/internal/models"

	"go.uber.org/zap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipelineFixture struct {
	pipeline *Pipeline
	guardGen *fakeGenerator
	routeGen *fakeGenerator
	solveGen *fakeGenerator
	searcher *fakeSearcher
	kb       *fakeKnowledge
}

func newPipelineFixture() *pipelineFixture {
	f := &pipelineFixture{
		guardGen: &fakeGenerator{},
		routeGen: &fakeGenerator{fn: respondWith("knowledge_base")},
		solveGen: &fakeGenerator{},
		searcher: &fakeSearcher{resp: &capability.SearchResponse{}},
		kb:       &fakeKnowledge{},
	}
	logger := zap.NewNop()
	guardrails := NewGuardrailService(f.guardGen, testGuardrailsConfig(), logger)
	router := NewRouter(f.routeGen, &fakeEmbedder{vec: []float32{0.1}}, f.searcher, f.kb, testRetrievalConfig(), logger)
	generator := NewGenerator(f.solveGen, NewSolverStore(), &fakeFeedbackStore{}, testLearningConfig(), logger)
	f.pipeline = NewPipeline(guardrails, router, generator, logger)
	return f
}

func TestAskInputRejectionIsTerminal(t *testing.T) {
	f := newPipelineFixture()

	solution, rejection, err := f.pipeline.Ask(context.Background(), "hi")
	require.NoError(t, err)
	require.Nil(t, solution)
	require.NotNil(t, rejection)
	assert.Equal(t, RejectTooShort, rejection.Code)

	// No downstream stage ran.
	assert.Zero(t, f.routeGen.promptCount())
	assert.Zero(t, f.solveGen.promptCount())
	assert.Empty(t, f.searcher.queries)
}

func TestAskFullPath(t *testing.T) {
	f := newPipelineFixture()
	f.kb.entries = []*models.ScoredKnowledgeEntry{
		{KnowledgeEntry: models.KnowledgeEntry{Question: "derivative of x^2", Answer: "2x"}, Similarity: 0.95},
	}
	f.solveGen.fn = respondWith("Step 1: apply the power rule\nFinal Answer: 2x")
	f.guardGen.fn = respondWith(`{"is_relevant": true, "confidence": 0.9}`)

	solution, rejection, err := f.pipeline.Ask(context.Background(), "find the derivative of x squared")
	require.NoError(t, err)
	require.Nil(t, rejection)
	require.NotNil(t, solution)

	assert.Equal(t, "calculus", solution.Topic)
	assert.Equal(t, models.RouteKnowledgeBase, solution.RoutingDecision)
	require.Len(t, solution.Steps, 1)
	assert.Equal(t, "apply the power rule", solution.Steps[0].Description)
}

func TestAskGenerationFailureIsFatal(t *testing.T) {
	f := newPipelineFixture()
	f.solveGen.fn = failWith(errors.New("upstream timeout"))

	solution, rejection, err := f.pipeline.Ask(context.Background(), "find the derivative of x squared")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCapability)
	assert.Nil(t, solution)
	assert.Nil(t, rejection)
}

func TestAskOutputRejection(t *testing.T) {
	f := newPipelineFixture()
	f.solveGen.fn = respondWith("I cannot help with that request, it is beyond me.")

	solution, rejection, err := f.pipeline.Ask(context.Background(), "find the derivative of x squared")
	require.NoError(t, err)
	require.Nil(t, solution)
	require.NotNil(t, rejection)
	assert.Equal(t, RejectUnsafeOutput, rejection.Code)
}

func TestAskCancelledContextDiscardsWork(t *testing.T) {
	f := newPipelineFixture()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	solution, rejection, err := f.pipeline.Ask(ctx, "find the derivative of x squared")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, solution)
	assert.Nil(t, rejection)
	assert.Zero(t, f.solveGen.promptCount())
}
