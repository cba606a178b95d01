package main

import (
	"bufio"
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mathagent/internal/capability"
	"mathagent/internal/models"
	"mathagent/internal/repository"
	"mathagent/pkg/config"
	"mathagent/pkg/logger"
	"mathagent/pkg/postgres"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// seedEntry is one line of the JSONL seed file.
type seedEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Topic    string `json:"topic"`
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	appLogger := logger.Get()

	// Connect to database
	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	knowledgeRepo := repository.NewKnowledgeRepository(db, appLogger)

	gigachat, err := capability.NewGigaChat(ctx, &cfg.GigaChat, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize GigaChat client", zap.Error(err))
	}
	defer gigachat.Close()

	seedFile := filepath.Join("cmd", "seed", "problems.jsonl")
	if len(os.Args) > 1 {
		seedFile = os.Args[1]
	}

	appLogger.Info("Starting knowledge base seeding", zap.String("file", seedFile))
	if err := seedKnowledgeBase(ctx, seedFile, knowledgeRepo, gigachat, appLogger); err != nil {
		appLogger.Fatal("Failed to seed knowledge base", zap.Error(err))
	}
	appLogger.Info("Knowledge base seeding completed")
}

// seedKnowledgeBase reads a JSONL file of solved problems, embeds each
// question, and upserts it. Bad lines and embedding failures are skipped,
// not fatal.
func seedKnowledgeBase(
	ctx context.Context,
	path string,
	repo *repository.KnowledgeRepository,
	embedder *capability.GigaChat,
	appLogger *zap.Logger,
) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	seeded, skipped, line := 0, 0, 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var entry seedEntry
		if err := json.Unmarshal([]byte(text), &entry); err != nil {
			appLogger.Warn("Skipping malformed seed line", zap.Int("line", line), zap.Error(err))
			skipped++
			continue
		}
		if entry.Question == "" || entry.Answer == "" {
			appLogger.Warn("Skipping incomplete seed line", zap.Int("line", line))
			skipped++
			continue
		}
		if entry.Topic == "" {
			entry.Topic = "general"
		}

		embedding, err := embedder.Embed(ctx, entry.Question)
		if err != nil {
			appLogger.Warn("Embedding failed, skipping entry", zap.Int("line", line), zap.Error(err))
			skipped++
			continue
		}

		now := time.Now().UTC()
		if err := repo.Upsert(ctx, &models.KnowledgeEntry{
			ID:        uuid.New(),
			Question:  entry.Question,
			Answer:    entry.Answer,
			Topic:     strings.ToLower(entry.Topic),
			Source:    "seed",
			Embedding: embedding,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			appLogger.Warn("Upsert failed, skipping entry", zap.Int("line", line), zap.Error(err))
			skipped++
			continue
		}
		seeded++
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	appLogger.Info("Seeding finished", zap.Int("seeded", seeded), zap.Int("skipped", skipped))
	return nil
}
