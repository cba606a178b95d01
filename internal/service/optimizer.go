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

// Optimization outcomes.
const (
	OptimizationSkipped = "skipped"
	OptimizationSuccess = "success"
	OptimizationFailed  = "failed"
)

// Metric scores a predicted answer against the expected one, in [0, 1].
type Metric func(predicted, expected string) float64

// WordOverlap is the default metric: the fraction of the expected answer's
// words that appear in the prediction.
func WordOverlap(predicted, expected string) float64 {
	expectedWords := tokenize(expected)
	if len(expectedWords) == 0 {
		return 0
	}
	predictedWords := make(map[string]struct{})
	for _, w := range tokenize(predicted) {
		predictedWords[w] = struct{}{}
	}

	hits := 0
	seen := make(map[string]struct{})
	total := 0
	for _, w := range expectedWords {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		total++
		if _, ok := predictedWords[w]; ok {
			hits++
		}
	}
	return float64(hits) / float64(total)
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// OptimizationResult describes one optimization attempt. Demos are only set
// on success.
type OptimizationResult struct {
	Status       string
	Score        float64
	Demos        []models.TrainingExample
	ExampleCount int
	Reason       string
}

// TrainingSource supplies the feedback rows that become training examples.
type TrainingSource interface {
	HighRated(ctx context.Context, ratingFloor, limit int) ([]*models.FeedbackRecord, error)
}

// Optimizer searches for the few-shot demonstration set that best reproduces
// high-rated answers. Candidates are prefixes of the training split, so the
// search is bounded by MaxDemos regardless of corpus size.
type Optimizer struct {
	generator capability.TextGenerator
	source    TrainingSource
	config    *config.LearningConfig
	metric    Metric
	logger    *zap.Logger
}

func NewOptimizer(generator capability.TextGenerator, source TrainingSource, cfg *config.LearningConfig, logger *zap.Logger) *Optimizer {
	return &Optimizer{
		generator: generator,
		source:    source,
		config:    cfg,
		metric:    WordOverlap,
		logger:    logger,
	}
}

// WithMetric replaces the scoring metric. Intended for evaluation and tests.
func (o *Optimizer) WithMetric(m Metric) *Optimizer {
	o.metric = m
	return o
}

// TrainingExamples builds the training corpus from high-rated feedback:
// newest first, deduplicated by question, user corrections overriding the
// original answer.
func (o *Optimizer) TrainingExamples(ctx context.Context) ([]models.TrainingExample, error) {
	records, err := o.source.HighRated(ctx, o.config.TrainingRatingFloor, o.config.MaxTrainingExamples*2)
	if err != nil {
		return nil, fmt.Errorf("%w: load training feedback: %v", ErrPersistence, err)
	}

	seen := make(map[string]struct{})
	var examples []models.TrainingExample
	for _, r := range records {
		key := strings.ToLower(strings.TrimSpace(r.Question))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		answer := r.Answer
		if r.Correction != "" {
			answer = r.Correction
		}
		examples = append(examples, models.TrainingExample{
			Question: r.Question,
			Answer:   answer,
		})
		if len(examples) >= o.config.MaxTrainingExamples {
			break
		}
	}
	return examples, nil
}

// Optimize evaluates candidate demo sets on a held-out split and returns the
// best one. Below the minimum corpus size the attempt is skipped entirely so
// a handful of reviews cannot steer the solver.
func (o *Optimizer) Optimize(ctx context.Context, examples []models.TrainingExample) *OptimizationResult {
	if len(examples) < o.config.MinTrainingExamples {
		return &OptimizationResult{
			Status:       OptimizationSkipped,
			ExampleCount: len(examples),
			Reason: fmt.Sprintf("%d examples, need at least %d",
				len(examples), o.config.MinTrainingExamples),
		}
	}

	trainN := len(examples) * 4 / 5
	if trainN >= len(examples) {
		trainN = len(examples) - 1
	}
	train, holdout := examples[:trainN], examples[trainN:]

	maxDemos := o.config.MaxDemos
	if maxDemos > len(train) {
		maxDemos = len(train)
	}

	best := -1.0
	var bestDemos []models.TrainingExample
	anyScored := false

	for n := 1; n <= maxDemos; n++ {
		demos := train[:n]
		score, ok := o.scoreCandidate(ctx, demos, holdout)
		if !ok {
			continue
		}
		anyScored = true
		o.logger.Debug("Candidate demo set scored",
			zap.Int("demos", n),
			zap.Float64("score", score),
		)
		if score > best {
			best = score
			bestDemos = demos
		}
	}

	if !anyScored {
		return &OptimizationResult{
			Status:       OptimizationFailed,
			ExampleCount: len(examples),
			Reason:       "no candidate could be evaluated",
		}
	}

	return &OptimizationResult{
		Status:       OptimizationSuccess,
		Score:        best,
		Demos:        bestDemos,
		ExampleCount: len(examples),
	}
}

// scoreCandidate averages the metric over the holdout set. A candidate whose
// every evaluation call failed is unusable.
func (o *Optimizer) scoreCandidate(ctx context.Context, demos, holdout []models.TrainingExample) (float64, bool) {
	var total float64
	evaluated := 0
	for _, h := range holdout {
		predicted, err := o.generator.Generate(ctx, demoPrompt(demos, h.Question), capability.GenerateOptions{
			SystemInstruction: "You are an expert mathematics tutor. Answer concisely.",
			Temperature:       0.1,
		})
		if err != nil {
			o.logger.Warn("Holdout evaluation call failed", zap.Error(err))
			continue
		}
		total += o.metric(predicted, h.Answer)
		evaluated++
	}
	if evaluated == 0 {
		return 0, false
	}
	return total / float64(evaluated), true
}

func demoPrompt(demos []models.TrainingExample, question string) string {
	var b strings.Builder
	b.WriteString("Here are examples of well-solved problems:\n\n")
	for _, d := range demos {
		fmt.Fprintf(&b, "Question: %s\nAnswer: %s\n\n", d.Question, d.Answer)
	}
	fmt.Fprintf(&b, "Question: %s\n", question)
	return b.String()
}
