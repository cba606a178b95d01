package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"mathagent/internal/capability"
	"mathagent/internal/models"
	"mathagent/internal/repository"
	"mathagent/pkg/config"

	"github.com/google/uuid"
)

type fakeGenerator struct {
	mu      sync.Mutex
	fn      func(prompt string, opts capability.GenerateOptions) (string, error)
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, opts capability.GenerateOptions) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return "", errors.New("no generate fn configured")
	}
	return fn(prompt, opts)
}

func (f *fakeGenerator) promptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func respondWith(response string) func(string, capability.GenerateOptions) (string, error) {
	return func(string, capability.GenerateOptions) (string, error) {
		return response, nil
	}
}

func failWith(err error) func(string, capability.GenerateOptions) (string, error) {
	return func(string, capability.GenerateOptions) (string, error) {
		return "", err
	}
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

type fakeSearcher struct {
	mu      sync.Mutex
	resp    *capability.SearchResponse
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) (*capability.SearchResponse, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeKnowledge struct {
	mu        sync.Mutex
	entries   []*models.ScoredKnowledgeEntry
	searchErr error
	upserted  []*models.KnowledgeEntry
	upsertErr error
	stats     *models.KnowledgeStats
}

func (f *fakeKnowledge) SearchSimilar(context.Context, []float32, int, float64) ([]*models.ScoredKnowledgeEntry, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.entries, nil
}

func (f *fakeKnowledge) Create(_ context.Context, entry *models.KnowledgeEntry) error {
	return f.Upsert(context.Background(), entry)
}

func (f *fakeKnowledge) Upsert(_ context.Context, entry *models.KnowledgeEntry) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.mu.Lock()
	f.upserted = append(f.upserted, entry)
	f.mu.Unlock()
	return nil
}

func (f *fakeKnowledge) Stats(context.Context) (*models.KnowledgeStats, error) {
	if f.stats == nil {
		return &models.KnowledgeStats{ByTopic: map[string]int{}}, nil
	}
	return f.stats, nil
}

type fakeFeedbackStore struct {
	mu sync.Mutex

	created   []*models.FeedbackRecord
	createErr error

	records []*models.FeedbackRecord

	stats    *models.FeedbackStats
	statsErr error

	countSince int
	countAll   int
	countErr   error

	highRated    []*models.FeedbackRecord
	highRatedErr error

	corrections []*models.Correction

	analyses         []*models.FailureAnalysis
	createAnalysis   error
	pendingAnalyses  []*models.FailureAnalysis
	pendingSuggested []*repository.AnalysisSuggestion

	// Emulates the repository join against system_improvements when set.
	improvements *fakeCycleStore
}

func (f *fakeFeedbackStore) Create(_ context.Context, fb *models.FeedbackRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	f.created = append(f.created, fb)
	f.mu.Unlock()
	return nil
}

func (f *fakeFeedbackStore) List(context.Context, int, int) ([]*models.FeedbackRecord, int, error) {
	return f.records, len(f.records), nil
}

func (f *fakeFeedbackStore) Stats(context.Context, int) (*models.FeedbackStats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	if f.stats == nil {
		return &models.FeedbackStats{ByRating: map[int]int{}}, nil
	}
	return f.stats, nil
}

func (f *fakeFeedbackStore) CountSince(context.Context, time.Time) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.countSince, nil
}

func (f *fakeFeedbackStore) CountAll(context.Context) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.countAll, nil
}

func (f *fakeFeedbackStore) HighRated(context.Context, int, int) ([]*models.FeedbackRecord, error) {
	if f.highRatedErr != nil {
		return nil, f.highRatedErr
	}
	return f.highRated, nil
}

func (f *fakeFeedbackStore) RecentCorrections(context.Context, int, int) ([]*models.Correction, error) {
	return f.corrections, nil
}

func (f *fakeFeedbackStore) CreateAnalysis(_ context.Context, fa *models.FailureAnalysis) error {
	if f.createAnalysis != nil {
		return f.createAnalysis
	}
	f.mu.Lock()
	f.analyses = append(f.analyses, fa)
	f.mu.Unlock()
	return nil
}

func (f *fakeFeedbackStore) PendingAnalyses(context.Context, int) ([]*models.FailureAnalysis, error) {
	if f.improvements == nil {
		return f.pendingAnalyses, nil
	}
	var out []*models.FailureAnalysis
	for _, fa := range f.pendingAnalyses {
		if !f.improvements.hasImprovementFor(fa.ID) {
			out = append(out, fa)
		}
	}
	return out, nil
}

func (f *fakeFeedbackStore) PendingSuggestions(context.Context, int) ([]*repository.AnalysisSuggestion, error) {
	return f.pendingSuggested, nil
}

func (f *fakeFeedbackStore) analysisCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.analyses)
}

type fakeCycleStore struct {
	mu           sync.Mutex
	cycles       []*models.LearningCycle
	createErr    error
	improvements []*models.SystemImprovement
}

func (f *fakeCycleStore) CreateCycle(_ context.Context, cycle *models.LearningCycle) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	f.cycles = append(f.cycles, cycle)
	f.mu.Unlock()
	return nil
}

func (f *fakeCycleStore) LatestCycle(context.Context) (*models.LearningCycle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.cycles) == 0 {
		return nil, nil
	}
	return f.cycles[len(f.cycles)-1], nil
}

func (f *fakeCycleStore) RecentCycles(context.Context, int) ([]*models.LearningCycle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.LearningCycle, len(f.cycles))
	for i, c := range f.cycles {
		out[len(f.cycles)-1-i] = c
	}
	return out, nil
}

func (f *fakeCycleStore) AllCyclesAsc(context.Context) ([]*models.LearningCycle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.LearningCycle(nil), f.cycles...), nil
}

func (f *fakeCycleStore) CreateImprovement(_ context.Context, imp *models.SystemImprovement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.improvements {
		if existing.AnalysisID == imp.AnalysisID {
			return nil
		}
	}
	f.improvements = append(f.improvements, imp)
	return nil
}

func (f *fakeCycleStore) hasImprovementFor(analysisID uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, imp := range f.improvements {
		if imp.AnalysisID == analysisID {
			return true
		}
	}
	return false
}

func (f *fakeCycleStore) cycleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cycles)
}

func testGuardrailsConfig() *config.GuardrailsConfig {
	return &config.GuardrailsConfig{
		MinQuestionLength:   5,
		MaxQuestionLength:   500,
		ConfidenceThreshold: 0.7,
		AllowedTopics: []string{
			"algebra", "calculus", "geometry", "trigonometry", "statistics",
			"probability", "arithmetic", "number_theory", "word_problem", "general",
		},
	}
}

func testRetrievalConfig() *config.RetrievalConfig {
	return &config.RetrievalConfig{TopK: 5, SimilarityThreshold: 0.7}
}

func testLearningConfig() *config.LearningConfig {
	return &config.LearningConfig{
		FailureRatingCutoff: 2,
		TrainingRatingFloor: 4,
		MinTrainingExamples: 5,
		MaxTrainingExamples: 50,
		MaxDemos:            4,
		FeedbackThreshold:   100,
		PollInterval:        time.Minute,
		HealthInterval:      time.Hour,
		DailyCycleHour:      2,
		RecentCorrections:   3,
	}
}
