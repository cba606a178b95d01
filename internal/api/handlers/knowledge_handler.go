package handlers

import (
	"mathagent/internal/dto"
	"mathagent/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type KnowledgeHandler struct {
	knowledge *service.KnowledgeService
	logger    *zap.Logger
}

func NewKnowledgeHandler(knowledge *service.KnowledgeService, logger *zap.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{
		knowledge: knowledge,
		logger:    logger,
	}
}

// Add godoc
// @Summary Add a knowledge base entry
// @Description Embed and store a solved problem; same question overwrites
// @Tags knowledge
// @Accept json
// @Produce json
// @Param request body dto.AddKnowledgeRequest true "Entry"
// @Security Bearer
// @Success 201 {object} dto.KnowledgeEntryResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/v1/knowledge [post]
func (h *KnowledgeHandler) Add(c *fiber.Ctx) error {
	var req dto.AddKnowledgeRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	entry, err := h.knowledge.Add(c.Context(), req.Question, req.Answer, req.Topic)
	if err != nil {
		h.logger.Error("Failed to add knowledge entry", zap.Error(err))
		return respondError(c, statusForError(err), "Failed to add knowledge entry")
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewKnowledgeEntryResponse(entry))
}

// Search godoc
// @Summary Search the knowledge base
// @Tags knowledge
// @Produce json
// @Param q query string true "Query text"
// @Param top_k query int false "Max results"
// @Success 200 {object} dto.KnowledgeSearchResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/knowledge/search [get]
func (h *KnowledgeHandler) Search(c *fiber.Ctx) error {
	query := c.Query("q")
	topK := c.QueryInt("top_k", 0)

	entries, err := h.knowledge.Search(c.Context(), query, topK)
	if err != nil {
		h.logger.Error("Knowledge search failed", zap.Error(err))
		return respondError(c, statusForError(err), "Knowledge search failed")
	}

	resp := dto.KnowledgeSearchResponse{Results: make([]dto.ScoredKnowledgeEntryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Results = append(resp.Results, dto.ScoredKnowledgeEntryResponse{
			KnowledgeEntryResponse: dto.NewKnowledgeEntryResponse(&e.KnowledgeEntry),
			Similarity:             e.Similarity,
		})
	}
	return c.JSON(resp)
}

// Stats godoc
// @Summary Knowledge base statistics
// @Tags knowledge
// @Produce json
// @Success 200 {object} models.KnowledgeStats
// @Router /api/v1/knowledge/stats [get]
func (h *KnowledgeHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.knowledge.Stats(c.Context())
	if err != nil {
		h.logger.Error("Failed to read knowledge stats", zap.Error(err))
		return respondError(c, statusForError(err), "Failed to read knowledge stats")
	}
	return c.JSON(stats)
}
