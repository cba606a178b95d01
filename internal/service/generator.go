package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"mathagent/internal/capability"
	"mathagent/internal/models"
	"mathagent/pkg/config"

	"go.uber.org/zap"
)

var stepRe = regexp.MustCompile(`Step (\d+):\s*([^\n]+)`)

const solverSystemInstruction = `You are an expert mathematics tutor. Solve the question step by step.

Format your answer exactly as:
Step 1: <first step>
Step 2: <next step>
...
Final Answer: <the result>
Key Concepts: <comma-separated concepts used>`

// Confidence model. The base is adjusted by retrieval strength, the
// published solver's holdout score, and a penalty when the answer did not
// parse into steps, then blended with the input classification confidence.
const (
	confidenceBase   = 0.5
	kbBonus          = 0.3
	webBonus         = 0.2
	solverBonus      = 0.1
	noStepsPenalty   = 0.2
	answerWeight     = 0.85
	classifierWeight = 0.15
)

// CorrectionSource supplies recent user corrections for prompt context.
type CorrectionSource interface {
	RecentCorrections(ctx context.Context, ratingFloor, limit int) ([]*models.Correction, error)
}

// Generator produces the final solution text. It always reads the currently
// published solver, so a cycle finishing mid-flight affects the next request,
// not this one.
type Generator struct {
	generator   capability.TextGenerator
	solvers     *SolverStore
	corrections CorrectionSource
	config      *config.LearningConfig
	logger      *zap.Logger
}

func NewGenerator(
	generator capability.TextGenerator,
	solvers *SolverStore,
	corrections CorrectionSource,
	cfg *config.LearningConfig,
	logger *zap.Logger,
) *Generator {
	return &Generator{
		generator:   generator,
		solvers:     solvers,
		corrections: corrections,
		config:      cfg,
		logger:      logger,
	}
}

// Generate runs one completion for the question. A generation failure is
// fatal to the request; everything after the LLM call degrades gracefully.
func (g *Generator) Generate(ctx context.Context, question, topic string, rc *RetrievalContext, classifierConfidence float64) (*models.Solution, error) {
	solver := g.solvers.Current()
	prompt := g.buildPrompt(ctx, question, rc, solver)

	content, err := g.generator.Generate(ctx, prompt, capability.GenerateOptions{
		SystemInstruction: solverSystemInstruction,
		Temperature:       0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: answer generation: %v", ErrCapability, err)
	}

	answer := strings.TrimSpace(sanitizeUTF8(content))
	steps := extractSteps(answer)
	parsed := len(steps) > 0
	if !parsed {
		// Unstructured output still gets delivered, as a single step.
		steps = []models.SolutionStep{{Number: 1, Description: answer}}
	}

	solution := &models.Solution{
		Answer:            answer,
		Steps:             steps,
		Confidence:        g.confidence(rc, solver, classifierConfidence, parsed),
		Sources:           collectSources(rc),
		RoutingDecision:   rc.Decision,
		Topic:             topic,
		UsedExternalTool:  rc.UsedWeb,
		RetrievalFallback: rc.Fallback,
	}

	g.logger.Info("Solution generated",
		zap.String("topic", topic),
		zap.Int("steps", len(steps)),
		zap.Float64("confidence", solution.Confidence),
		zap.Bool("used_web", rc.UsedWeb),
	)

	return solution, nil
}

func (g *Generator) buildPrompt(ctx context.Context, question string, rc *RetrievalContext, solver *OptimizedSolver) string {
	var b strings.Builder

	if solver != nil {
		b.WriteString("Here are examples of well-solved problems:\n\n")
		for _, demo := range solver.Demos {
			fmt.Fprintf(&b, "Question: %s\nAnswer: %s\n\n", demo.Question, demo.Answer)
		}
	}

	if corrections := g.recentCorrections(ctx); len(corrections) > 0 {
		b.WriteString("Corrections from earlier mistakes, do not repeat them:\n\n")
		for _, c := range corrections {
			fmt.Fprintf(&b, "Question: %s\nCorrected answer: %s\n\n", c.Question, c.CorrectedAnswer)
		}
	}

	if material := renderContext(rc); material != "" {
		b.WriteString("Supporting material:\n\n")
		b.WriteString(material)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Question: %s\n", question)
	return b.String()
}

func (g *Generator) recentCorrections(ctx context.Context) []*models.Correction {
	corrections, err := g.corrections.RecentCorrections(ctx, g.config.TrainingRatingFloor, g.config.RecentCorrections)
	if err != nil {
		g.logger.Warn("Failed to load recent corrections for prompt", zap.Error(err))
		return nil
	}
	return corrections
}

func (g *Generator) confidence(rc *RetrievalContext, solver *OptimizedSolver, classifierConfidence float64, parsed bool) float64 {
	c := confidenceBase
	if len(rc.Entries) > 0 {
		c += kbBonus * rc.Entries[0].Similarity
	} else if rc.UsedWeb {
		c += webBonus
	}
	if solver != nil {
		c += solverBonus * solver.Score
	}
	if !parsed {
		c -= noStepsPenalty
	}

	c = answerWeight*c + classifierWeight*classifierConfidence
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func renderContext(rc *RetrievalContext) string {
	var b strings.Builder
	for _, e := range rc.Entries {
		fmt.Fprintf(&b, "Similar solved problem (%s):\nQ: %s\nA: %s\n\n", e.Topic, e.Question, e.Answer)
	}
	if rc.WebAnswer != "" {
		fmt.Fprintf(&b, "Web summary: %s\n\n", rc.WebAnswer)
	}
	for _, r := range rc.WebResults {
		fmt.Fprintf(&b, "Source (%s): %s\n\n", r.Title, r.Content)
	}
	return b.String()
}

func collectSources(rc *RetrievalContext) []string {
	var sources []string
	for _, e := range rc.Entries {
		sources = append(sources, "knowledge_base: "+e.Question)
	}
	for _, r := range rc.WebResults {
		sources = append(sources, r.URL)
	}
	return sources
}

func extractSteps(answer string) []models.SolutionStep {
	matches := stepRe.FindAllStringSubmatch(answer, -1)
	steps := make([]models.SolutionStep, 0, len(matches))
	for _, m := range matches {
		number, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		steps = append(steps, models.SolutionStep{
			Number:      number,
			Description: strings.TrimSpace(m[2]),
		})
	}
	return steps
}
