package service

import (
	"context"
	"fmt"
	"time"

	"mathagent/internal/models"

	"go.uber.org/zap"
)

// Pipeline runs the request stages strictly in order: input guardrail,
// routing, retrieval, generation, output guardrail. A guardrail rejection is
// terminal; later stages never run for a rejected question.
type Pipeline struct {
	guardrails *GuardrailService
	router     *Router
	generator  *Generator
	logger     *zap.Logger
}

func NewPipeline(guardrails *GuardrailService, router *Router, generator *Generator, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		guardrails: guardrails,
		router:     router,
		generator:  generator,
		logger:     logger,
	}
}

// Ask processes one question end to end. The error return is reserved for
// failures (generation, cancellation); refusals come back as a Rejection
// value with a nil error.
func (p *Pipeline) Ask(ctx context.Context, question string) (*models.Solution, *Rejection, error) {
	start := time.Now()

	input := p.guardrails.CheckInput(ctx, question)
	if !input.Accepted {
		p.logger.Info("Question rejected by input guardrail",
			zap.String("code", input.Code),
			zap.String("reason", input.Reason),
		)
		return nil, &Rejection{Code: input.Code, Reason: input.Reason}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("request cancelled after input guardrail: %w", err)
	}

	decision := p.router.Route(ctx, input.Sanitized, input.Topic)
	retrieved := p.router.Retrieve(ctx, input.Sanitized, decision)

	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("request cancelled after retrieval: %w", err)
	}

	solution, err := p.generator.Generate(ctx, input.Sanitized, input.Topic, retrieved, input.Confidence)
	if err != nil {
		return nil, nil, err
	}

	output := p.guardrails.CheckOutput(ctx, input.Sanitized, solution.Answer)
	if !output.Accepted {
		p.logger.Warn("Answer rejected by output guardrail",
			zap.String("code", output.Code),
			zap.String("reason", output.Reason),
		)
		return nil, &Rejection{Code: output.Code, Reason: output.Reason}, nil
	}
	solution.Answer = output.Sanitized

	p.logger.Info("Question answered",
		zap.String("topic", solution.Topic),
		zap.String("routing", string(solution.RoutingDecision)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return solution, nil, nil
}
