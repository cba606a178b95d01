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

func newTestRouter(gen *fakeGenerator, emb *fakeEmbedder, search *fakeSearcher, kb *fakeKnowledge) *Router {
	return NewRouter(gen, emb, search, kb, testRetrievalConfig(), zap.NewNop())
}

func TestRouteParsesDecision(t *testing.T) {
	gen := &fakeGenerator{fn: respondWith("web_search")}
	r := newTestRouter(gen, &fakeEmbedder{}, &fakeSearcher{}, &fakeKnowledge{})

	decision := r.Route(context.Background(), "latest mathematics olympiad results", "general")
	assert.Equal(t, models.RouteWebSearch, decision)

	gen.fn = respondWith("knowledge_base")
	decision = r.Route(context.Background(), "solve x^2 = 4", "algebra")
	assert.Equal(t, models.RouteKnowledgeBase, decision)
}

func TestRouteDefaultsToKnowledgeBase(t *testing.T) {
	gen := &fakeGenerator{fn: respondWith("hmm, hard to say")}
	r := newTestRouter(gen, &fakeEmbedder{}, &fakeSearcher{}, &fakeKnowledge{})
	assert.Equal(t, models.RouteKnowledgeBase, r.Route(context.Background(), "solve x", "algebra"))

	gen.fn = failWith(errors.New("upstream timeout"))
	assert.Equal(t, models.RouteKnowledgeBase, r.Route(context.Background(), "solve x", "algebra"))
}

func TestRetrieveKnowledgeBaseHit(t *testing.T) {
	kb := &fakeKnowledge{entries: []*models.ScoredKnowledgeEntry{
		{KnowledgeEntry: models.KnowledgeEntry{Question: "solve x^2 = 4", Answer: "x = ±2"}, Similarity: 0.93},
	}}
	search := &fakeSearcher{}
	r := newTestRouter(&fakeGenerator{}, &fakeEmbedder{vec: []float32{0.1, 0.2}}, search, kb)

	rc := r.Retrieve(context.Background(), "solve x^2 = 4", models.RouteKnowledgeBase)
	require.Len(t, rc.Entries, 1)
	assert.False(t, rc.Fallback)
	assert.False(t, rc.UsedWeb)
	assert.Empty(t, search.queries)
}

func TestRetrieveFallsBackToWebWhenKnowledgeBaseEmpty(t *testing.T) {
	search := &fakeSearcher{resp: &capability.SearchResponse{
		Answer:  "The answer is 4.",
		Results: []capability.SearchResult{{Title: "t", URL: "https://example.org", Content: "c"}},
	}}
	r := newTestRouter(&fakeGenerator{}, &fakeEmbedder{vec: []float32{0.1}}, search, &fakeKnowledge{})

	rc := r.Retrieve(context.Background(), "solve x^2 = 4", models.RouteKnowledgeBase)
	assert.True(t, rc.Fallback)
	assert.True(t, rc.UsedWeb)
	// The routing decision is preserved even though the web filled in.
	assert.Equal(t, models.RouteKnowledgeBase, rc.Decision)
	assert.Len(t, rc.WebResults, 1)
}

func TestRetrieveDegradesToEmptyOnEmbeddingFailure(t *testing.T) {
	search := &fakeSearcher{}
	r := newTestRouter(&fakeGenerator{}, &fakeEmbedder{err: errors.New("embeddings down")}, search, &fakeKnowledge{})

	rc := r.Retrieve(context.Background(), "solve x^2 = 4", models.RouteKnowledgeBase)
	assert.True(t, rc.Empty())
	assert.Empty(t, search.queries)
}

func TestRetrieveDegradesToEmptyOnSearchFailure(t *testing.T) {
	kb := &fakeKnowledge{searchErr: errors.New("db down")}
	r := newTestRouter(&fakeGenerator{}, &fakeEmbedder{vec: []float32{0.1}}, &fakeSearcher{}, kb)

	rc := r.Retrieve(context.Background(), "solve x^2 = 4", models.RouteKnowledgeBase)
	assert.True(t, rc.Empty())
}

func TestRetrieveWebToleratesFailureAndZeroResults(t *testing.T) {
	search := &fakeSearcher{err: errors.New("provider down")}
	r := newTestRouter(&fakeGenerator{}, &fakeEmbedder{}, search, &fakeKnowledge{})

	rc := r.Retrieve(context.Background(), "current math olympiad", models.RouteWebSearch)
	assert.True(t, rc.Empty())
	assert.False(t, rc.UsedWeb)

	search.err = nil
	search.resp = &capability.SearchResponse{}
	rc = r.Retrieve(context.Background(), "current math olympiad", models.RouteWebSearch)
	assert.True(t, rc.UsedWeb)
	assert.Empty(t, rc.WebResults)
}
