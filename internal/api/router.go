package api

import (
	"mathagent/internal/api/handlers"
	"mathagent/pkg/auth"
	"mathagent/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func SetupRouter(
	askHandler *handlers.AskHandler,
	feedbackHandler *handlers.FeedbackHandler,
	learningHandler *handlers.LearningHandler,
	knowledgeHandler *handlers.KnowledgeHandler,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	jwtManager *auth.JWTManager,
	appLogger *zap.Logger,
) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(logger.New())

	app.Get("/health", healthHandler.Health)
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "math-agent",
			"docs":    "/api/v1",
		})
	})

	// Auth routes (public)
	app.Post("/auth/token", authHandler.Token)

	api := app.Group("/api/v1")

	api.Post("/ask", askHandler.Ask)

	feedback := api.Group("/feedback")
	feedback.Post("", feedbackHandler.Submit)
	feedback.Get("", feedbackHandler.List)
	feedback.Get("/stats", feedbackHandler.Stats)
	feedback.Get("/suggestions", feedbackHandler.Suggestions)

	learning := api.Group("/learning")
	learning.Get("/status", learningHandler.Status)
	learning.Get("/history", learningHandler.History)
	learning.Get("/metrics", learningHandler.Metrics)
	learning.Post("/cycle", middleware.AdminOnly(jwtManager, appLogger), learningHandler.TriggerCycle)

	knowledge := api.Group("/knowledge")
	knowledge.Get("/search", knowledgeHandler.Search)
	knowledge.Get("/stats", knowledgeHandler.Stats)
	knowledge.Post("", middleware.AdminOnly(jwtManager, appLogger), knowledgeHandler.Add)

	return app
}
