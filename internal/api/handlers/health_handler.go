package handlers

import (
	"context"
	"time"

	"mathagent/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type HealthHandler struct {
	db        *pgxpool.Pool
	scheduler *service.Scheduler
	logger    *zap.Logger
}

func NewHealthHandler(db *pgxpool.Pool, scheduler *service.Scheduler, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		scheduler: scheduler,
		logger:    logger,
	}
}

// Health godoc
// @Summary Service health
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	status := fiber.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Error("Health check database ping failed", zap.Error(err))
		dbStatus = "unavailable"
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"status":    dbStatus,
		"database":  dbStatus,
		"scheduler": h.scheduler.Status(),
		"time":      time.Now().UTC(),
	})
}
