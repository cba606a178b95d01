package handlers

import (
	"mathagent/internal/dto"
	"mathagent/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type LearningHandler struct {
	learning  *service.LearningService
	scheduler *service.Scheduler
	logger    *zap.Logger
}

func NewLearningHandler(learning *service.LearningService, scheduler *service.Scheduler, logger *zap.Logger) *LearningHandler {
	return &LearningHandler{
		learning:  learning,
		scheduler: scheduler,
		logger:    logger,
	}
}

// TriggerCycle godoc
// @Summary Run a learning cycle now
// @Description Start a manual learning cycle, joining one already in flight
// @Tags learning
// @Produce json
// @Security Bearer
// @Success 200 {object} dto.TriggerCycleResponse
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /api/v1/learning/cycle [post]
func (h *LearningHandler) TriggerCycle(c *fiber.Ctx) error {
	cycle, joined, err := h.scheduler.TriggerNow(c.Context())
	if err != nil {
		h.logger.Error("Manual learning cycle failed", zap.Error(err))
		return respondError(c, statusForError(err), "Learning cycle failed")
	}
	return c.JSON(dto.TriggerCycleResponse{
		Cycle:  dto.NewCycleResponse(cycle),
		Joined: joined,
	})
}

// Status godoc
// @Summary Learning subsystem status
// @Tags learning
// @Produce json
// @Success 200 {object} dto.LearningStatusResponse
// @Router /api/v1/learning/status [get]
func (h *LearningHandler) Status(c *fiber.Ctx) error {
	status, err := h.learning.Status(c.Context())
	if err != nil {
		h.logger.Error("Failed to read learning status", zap.Error(err))
		return respondError(c, statusForError(err), "Failed to read learning status")
	}

	resp := dto.LearningStatusResponse{
		FeedbackSinceLastCycle: status.FeedbackSinceLastCycle,
		FeedbackThreshold:      status.FeedbackThreshold,
		Solver:                 status.Solver,
		Scheduler:              h.scheduler.Status(),
	}
	if status.LatestCycle != nil {
		cycle := dto.NewCycleResponse(status.LatestCycle)
		resp.LatestCycle = &cycle
	}
	return c.JSON(resp)
}

// History godoc
// @Summary Learning cycle history
// @Tags learning
// @Produce json
// @Param limit query int false "Max cycles"
// @Success 200 {object} dto.CycleHistoryResponse
// @Router /api/v1/learning/history [get]
func (h *LearningHandler) History(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)

	cycles, err := h.learning.History(c.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to read cycle history", zap.Error(err))
		return respondError(c, statusForError(err), "Failed to read cycle history")
	}

	resp := dto.CycleHistoryResponse{Cycles: make([]dto.CycleResponse, 0, len(cycles))}
	for _, c2 := range cycles {
		resp.Cycles = append(resp.Cycles, dto.NewCycleResponse(c2))
	}
	return c.JSON(resp)
}

// Metrics godoc
// @Summary Learning trend metrics
// @Tags learning
// @Produce json
// @Success 200 {object} service.LearningMetrics
// @Router /api/v1/learning/metrics [get]
func (h *LearningHandler) Metrics(c *fiber.Ctx) error {
	metrics, err := h.learning.Metrics(c.Context())
	if err != nil {
		h.logger.Error("Failed to compute learning metrics", zap.Error(err))
		return respondError(c, statusForError(err), "Failed to compute learning metrics")
	}
	return c.JSON(metrics)
}
