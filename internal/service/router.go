package service

import (
	"context"
	"fmt"
	"strings"

	"mathagent/internal/capability"
	"mathagent/internal/models"
	"mathagent/pkg/config"

	"go.uber.org/zap"
)

// KnowledgeSearcher is the slice of the knowledge repository the router
// needs.
type KnowledgeSearcher interface {
	SearchSimilar(ctx context.Context, embedding []float32, topK int, minSimilarity float64) ([]*models.ScoredKnowledgeEntry, error)
}

// RetrievalContext is everything retrieval produced for one question. An
// empty context is a valid outcome: generation proceeds without supporting
// material.
type RetrievalContext struct {
	Decision   models.RoutingDecision
	Entries    []*models.ScoredKnowledgeEntry
	WebAnswer  string
	WebResults []capability.SearchResult
	// Fallback is set when the knowledge base came up empty and web search
	// filled in. The routing decision itself is not rewritten.
	Fallback bool
	UsedWeb  bool
}

// Empty reports whether retrieval produced no supporting material at all.
func (c *RetrievalContext) Empty() bool {
	return len(c.Entries) == 0 && len(c.WebResults) == 0 && c.WebAnswer == ""
}

// Router picks a retrieval source for each question and executes the
// retrieval. Retrieval failures degrade to an empty context; they never fail
// the request.
type Router struct {
	generator capability.TextGenerator
	embedder  capability.Embedder
	searcher  capability.WebSearcher
	knowledge KnowledgeSearcher
	config    *config.RetrievalConfig
	logger    *zap.Logger
}

func NewRouter(
	generator capability.TextGenerator,
	embedder capability.Embedder,
	searcher capability.WebSearcher,
	knowledge KnowledgeSearcher,
	cfg *config.RetrievalConfig,
	logger *zap.Logger,
) *Router {
	return &Router{
		generator: generator,
		embedder:  embedder,
		searcher:  searcher,
		knowledge: knowledge,
		config:    cfg,
		logger:    logger,
	}
}

// Route decides between the knowledge base and web search. An unusable
// model reply defaults to the knowledge base, the cheaper source.
func (r *Router) Route(ctx context.Context, question, topic string) models.RoutingDecision {
	prompt := fmt.Sprintf(`A math question needs supporting material. Topic: %s.

Question: %s

Answer with exactly one word.
Reply "knowledge_base" for standard textbook problems with established solution methods.
Reply "web_search" for questions about recent events, current data, or obscure facts.`, topic, question)

	content, err := r.generator.Generate(ctx, prompt, capability.GenerateOptions{
		SystemInstruction: "You route questions to a retrieval source. Output one word only.",
		Temperature:       0.1,
	})
	if err != nil {
		r.logger.Warn("Routing decision failed, defaulting to knowledge base", zap.Error(err))
		return models.RouteKnowledgeBase
	}

	if strings.Contains(strings.ToLower(content), string(models.RouteWebSearch)) {
		return models.RouteWebSearch
	}
	return models.RouteKnowledgeBase
}

// Retrieve executes the routing decision. Knowledge-base retrieval that
// returns nothing falls back to one web search; capability errors are logged
// and leave the context empty.
func (r *Router) Retrieve(ctx context.Context, question string, decision models.RoutingDecision) *RetrievalContext {
	out := &RetrievalContext{Decision: decision}

	if decision == models.RouteWebSearch {
		r.searchWeb(ctx, question, out)
		return out
	}

	embedding, err := r.embedder.Embed(ctx, question)
	if err != nil {
		r.logger.Error("Question embedding failed, continuing without context", zap.Error(err))
		return out
	}

	entries, err := r.knowledge.SearchSimilar(ctx, embedding, r.config.TopK, r.config.SimilarityThreshold)
	if err != nil {
		r.logger.Error("Knowledge base search failed, continuing without context", zap.Error(err))
		return out
	}

	if len(entries) == 0 {
		r.logger.Debug("Knowledge base empty for question, falling back to web search")
		out.Fallback = true
		r.searchWeb(ctx, question, out)
		return out
	}

	out.Entries = entries
	return out
}

func (r *Router) searchWeb(ctx context.Context, question string, out *RetrievalContext) {
	resp, err := r.searcher.Search(ctx, question, 0)
	if err != nil {
		r.logger.Error("Web search failed, continuing without context", zap.Error(err))
		return
	}
	out.UsedWeb = true
	out.WebAnswer = resp.Answer
	out.WebResults = resp.Results
}
