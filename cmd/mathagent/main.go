package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mathagent/internal/api"
	"mathagent/internal/api/handlers"
	"mathagent/internal/capability"
	"mathagent/internal/repository"
	"mathagent/internal/service"
	"mathagent/pkg/auth"
	"mathagent/pkg/config"
	"mathagent/pkg/logger"
	"mathagent/pkg/postgres"

	"go.uber.org/zap"
	_ "go.uber.org/automaxprocs"
)

// @title Math Agent API
// @version 1.0
// @description Math question answering service with continuous learning from user feedback

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting math agent service")

	// Initialize database
	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories
	feedbackRepo := repository.NewFeedbackRepository(db, appLogger)
	learningRepo := repository.NewLearningRepository(db, appLogger)
	knowledgeRepo := repository.NewKnowledgeRepository(db, appLogger)

	// Initialize capabilities
	gigachat, err := capability.NewGigaChat(ctx, &cfg.GigaChat, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize GigaChat client", zap.Error(err))
	}
	defer gigachat.Close()

	search := capability.NewTavilySearch(&cfg.Search, appLogger)

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecretKey, cfg.Auth.Expiration, cfg.Auth.AdminKeyHash)

	// Initialize services
	solvers := service.NewSolverStore()
	guardrails := service.NewGuardrailService(gigachat, &cfg.Guardrails, appLogger)
	router := service.NewRouter(gigachat, gigachat, search, knowledgeRepo, &cfg.Retrieval, appLogger)
	generator := service.NewGenerator(gigachat, solvers, feedbackRepo, &cfg.Learning, appLogger)
	pipeline := service.NewPipeline(guardrails, router, generator, appLogger)

	feedbackService := service.NewFeedbackService(feedbackRepo, gigachat, &cfg.Learning, appLogger)
	optimizer := service.NewOptimizer(gigachat, feedbackRepo, &cfg.Learning, appLogger)
	learningService := service.NewLearningService(
		feedbackRepo, learningRepo, knowledgeRepo, gigachat, optimizer, solvers, &cfg.Learning, appLogger)
	knowledgeService := service.NewKnowledgeService(knowledgeRepo, gigachat, &cfg.Retrieval, appLogger)

	scheduler := service.NewScheduler(learningService, &cfg.Learning, appLogger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	// Initialize handlers
	askHandler := handlers.NewAskHandler(pipeline, appLogger)
	feedbackHandler := handlers.NewFeedbackHandler(feedbackService, learningService, scheduler, &cfg.Learning, appLogger)
	learningHandler := handlers.NewLearningHandler(learningService, scheduler, appLogger)
	knowledgeHandler := handlers.NewKnowledgeHandler(knowledgeService, appLogger)
	authHandler := handlers.NewAuthHandler(jwtManager, appLogger)
	healthHandler := handlers.NewHealthHandler(db, scheduler, appLogger)

	// Setup router
	app := api.SetupRouter(
		askHandler, feedbackHandler, learningHandler, knowledgeHandler,
		authHandler, healthHandler, jwtManager, appLogger)

	// Start server
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
}
