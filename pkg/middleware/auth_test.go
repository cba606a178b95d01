package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"mathagent/pkg/auth"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, jwtManager *auth.JWTManager) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Post("/admin", AdminOnly(jwtManager, zap.NewNop()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestAdminOnly(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-key"), bcrypt.MinCost)
	require.NoError(t, err)
	jwtManager := auth.NewJWTManager("secret", time.Hour, string(hash))
	app := newTestApp(t, jwtManager)

	token, err := jwtManager.IssueAdminToken("admin-key")
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/admin", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("POST", "/admin", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("POST", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAdminOnlyDisabled(t *testing.T) {
	app := newTestApp(t, auth.NewJWTManager("secret", time.Hour, ""))

	req := httptest.NewRequest("POST", "/admin", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
