package handlers

import (
	"context"
	"time"

	"mathagent/internal/dto"
	"mathagent/internal/models"
	"mathagent/internal/service"
	"mathagent/pkg/config"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type FeedbackHandler struct {
	feedback  *service.FeedbackService
	learning  *service.LearningService
	scheduler *service.Scheduler
	config    *config.LearningConfig
	logger    *zap.Logger
}

func NewFeedbackHandler(
	feedback *service.FeedbackService,
	learning *service.LearningService,
	scheduler *service.Scheduler,
	cfg *config.LearningConfig,
	logger *zap.Logger,
) *FeedbackHandler {
	return &FeedbackHandler{
		feedback:  feedback,
		learning:  learning,
		scheduler: scheduler,
		config:    cfg,
		logger:    logger,
	}
}

// Submit godoc
// @Summary Submit feedback on an answer
// @Description Record a rating; low ratings trigger a failure analysis
// @Tags feedback
// @Accept json
// @Produce json
// @Param request body dto.FeedbackRequest true "Feedback"
// @Success 201 {object} dto.FeedbackResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/feedback [post]
func (h *FeedbackHandler) Submit(c *fiber.Ctx) error {
	var req dto.FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	fb := &models.FeedbackRecord{
		Question:   req.Question,
		Answer:     req.Answer,
		Rating:     req.Rating,
		Comment:    req.Comment,
		Correction: req.Correction,
		IsCorrect:  req.IsCorrect,
	}
	if err := h.feedback.Submit(c.Context(), fb); err != nil {
		h.logger.Error("Failed to submit feedback", zap.Error(err))
		return respondError(c, statusForError(err), "Failed to submit feedback")
	}

	// Let a threshold-triggered cycle start without waiting for the next
	// scheduler poll.
	go h.maybeTriggerCycle()

	return c.Status(fiber.StatusCreated).JSON(dto.FeedbackResponse{
		FeedbackID: fb.ID.String(),
		Status:     "recorded",
	})
}

func (h *FeedbackHandler) maybeTriggerCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	count, err := h.learning.CountSinceLastCycle(ctx)
	if err != nil {
		h.logger.Warn("Post-feedback threshold check failed", zap.Error(err))
		return
	}
	if count < h.config.FeedbackThreshold {
		return
	}
	if _, _, err := h.scheduler.TriggerNow(ctx); err != nil {
		h.logger.Error("Post-feedback learning cycle failed", zap.Error(err))
	}
}

// List godoc
// @Summary List feedback
// @Tags feedback
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} dto.FeedbackListResponse
// @Router /api/v1/feedback [get]
func (h *FeedbackHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	records, total, err := h.feedback.List(c.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list feedback", zap.Error(err))
		return respondError(c, statusForError(err), "Failed to list feedback")
	}

	items := make([]dto.FeedbackItem, 0, len(records))
	for _, fb := range records {
		items = append(items, dto.NewFeedbackItem(fb))
	}
	return c.JSON(dto.FeedbackListResponse{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// Stats godoc
// @Summary Aggregate feedback statistics
// @Tags feedback
// @Produce json
// @Success 200 {object} models.FeedbackStats
// @Router /api/v1/feedback/stats [get]
func (h *FeedbackHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.feedback.Stats(c.Context())
	if err != nil {
		h.logger.Error("Failed to compute feedback stats", zap.Error(err))
		return respondError(c, statusForError(err), "Failed to compute feedback stats")
	}
	return c.JSON(stats)
}

// Suggestions godoc
// @Summary Improvement suggestions from failure analyses
// @Tags feedback
// @Produce json
// @Param limit query int false "Max suggestions"
// @Success 200 {array} models.Suggestion
// @Router /api/v1/feedback/suggestions [get]
func (h *FeedbackHandler) Suggestions(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 10)

	suggestions, err := h.feedback.Suggestions(c.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to build suggestions", zap.Error(err))
		return respondError(c, statusForError(err), "Failed to build suggestions")
	}
	return c.JSON(fiber.Map{"suggestions": suggestions})
}
