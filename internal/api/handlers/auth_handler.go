package handlers

import (
	"errors"

	"mathagent/internal/dto"
	"mathagent/pkg/auth"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuthHandler struct {
	jwtManager *auth.JWTManager
	logger     *zap.Logger
}

func NewAuthHandler(jwtManager *auth.JWTManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		jwtManager: jwtManager,
		logger:     logger,
	}
}

// Token godoc
// @Summary Exchange the admin key for a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body dto.TokenRequest true "Admin key"
// @Success 200 {object} dto.TokenResponse
// @Failure 401 {object} map[string]string
// @Router /auth/token [post]
func (h *AuthHandler) Token(c *fiber.Ctx) error {
	if !h.jwtManager.Enabled() {
		return respondError(c, fiber.StatusForbidden, "Admin authentication is not configured")
	}

	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	token, err := h.jwtManager.IssueAdminToken(req.AdminKey)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidAdminKey) {
			return respondError(c, fiber.StatusUnauthorized, "Invalid admin key")
		}
		h.logger.Error("Failed to issue admin token", zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "Failed to issue token")
	}

	return c.JSON(dto.TokenResponse{
		Token:     token,
		TokenType: "Bearer",
	})
}
