package handlers

import (
	"mathagent/internal/dto"
	"mathagent/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AskHandler struct {
	pipeline *service.Pipeline
	logger   *zap.Logger
}

func NewAskHandler(pipeline *service.Pipeline, logger *zap.Logger) *AskHandler {
	return &AskHandler{
		pipeline: pipeline,
		logger:   logger,
	}
}

// Ask godoc
// @Summary Answer a math question
// @Description Run a question through guardrails, retrieval, and generation
// @Tags ask
// @Accept json
// @Produce json
// @Param request body dto.AskRequest true "Question"
// @Success 200 {object} dto.AskResponse
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/v1/ask [post]
func (h *AskHandler) Ask(c *fiber.Ctx) error {
	var req dto.AskRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Question == "" {
		return respondError(c, fiber.StatusBadRequest, "Question is required")
	}

	h.logger.Info("Question received", zap.String("user_id", req.UserID))

	solution, rejection, err := h.pipeline.Ask(c.Context(), req.Question)
	if err != nil {
		h.logger.Error("Failed to answer question", zap.Error(err))
		return respondError(c, statusForError(err), "Failed to answer question")
	}
	if rejection != nil {
		return c.JSON(dto.NewRejectedResponse(rejection.Code, rejection.Reason))
	}

	return c.JSON(dto.NewAskResponse(solution))
}
