package dto

import "mathagent/internal/models"

type AskRequest struct {
	Question string `json:"question" validate:"required"`
	UserID   string `json:"user_id,omitempty"`
}

type SolutionStepResponse struct {
	StepNumber  int    `json:"step_number"`
	Description string `json:"description"`
}

type AskResponse struct {
	Status            string                 `json:"status"`
	Answer            string                 `json:"answer,omitempty"`
	Steps             []SolutionStepResponse `json:"solution_steps,omitempty"`
	ConfidenceScore   float64                `json:"confidence_score,omitempty"`
	Sources           []string               `json:"sources,omitempty"`
	RoutingDecision   string                 `json:"routing_decision,omitempty"`
	Topic             string                 `json:"topic,omitempty"`
	UsedExternalTool  bool                   `json:"used_external_tool"`
	RetrievalFallback bool                   `json:"retrieval_fallback"`
	RejectionCode     string                 `json:"rejection_code,omitempty"`
	RejectionReason   string                 `json:"rejection_reason,omitempty"`
}

func NewAskResponse(s *models.Solution) AskResponse {
	steps := make([]SolutionStepResponse, 0, len(s.Steps))
	for _, step := range s.Steps {
		steps = append(steps, SolutionStepResponse{
			StepNumber:  step.Number,
			Description: step.Description,
		})
	}
	return AskResponse{
		Status:            "answered",
		Answer:            s.Answer,
		Steps:             steps,
		ConfidenceScore:   s.Confidence,
		Sources:           s.Sources,
		RoutingDecision:   string(s.RoutingDecision),
		Topic:             s.Topic,
		UsedExternalTool:  s.UsedExternalTool,
		RetrievalFallback: s.RetrievalFallback,
	}
}

func NewRejectedResponse(code, reason string) AskResponse {
	return AskResponse{
		Status:          "rejected",
		RejectionCode:   code,
		RejectionReason: reason,
	}
}
