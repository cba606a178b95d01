package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	GigaChat   GigaChatConfig
	Search     SearchConfig
	Guardrails GuardrailsConfig
	Retrieval  RetrievalConfig
	Learning   LearningConfig
	Logger     LoggerConfig
}

type LoggerConfig struct {
	Level string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AuthConfig struct {
	JWTSecretKey string
	Expiration   time.Duration
	// Bcrypt hash of the admin key allowed to mint tokens. Empty disables
	// the token endpoint and all admin routes.
	AdminKeyHash string
}

type GigaChatConfig struct {
	APIKey             string
	Scope              string
	Model              string
	EmbeddingModel     string
	InsecureSkipVerify bool
}

type SearchConfig struct {
	APIKey         string
	BaseURL        string
	MaxResults     int
	IncludeDomains []string
	// Requests per second against the search provider.
	RateLimit float64
}

type GuardrailsConfig struct {
	MinQuestionLength   int
	MaxQuestionLength   int
	ConfidenceThreshold float64
	AllowedTopics       []string
}

type RetrievalConfig struct {
	TopK                int
	SimilarityThreshold float64
}

type LearningConfig struct {
	FailureRatingCutoff int
	TrainingRatingFloor int
	MinTrainingExamples int
	MaxTrainingExamples int
	MaxDemos            int
	FeedbackThreshold   int
	PollInterval        time.Duration
	HealthInterval      time.Duration
	DailyCycleHour      int
	RecentCorrections   int
}

func Load() (*Config, error) {
	// Try to load .env file from current directory or project root
	envFiles := []string{".env", "../.env", "../../.env"}
	for _, envFile := range envFiles {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}
	// If no .env file was found, continue with plain environment variables
	// (useful for Docker/K8s)

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "60"))
	jwtExp, _ := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))
	insecureSkipVerify := getEnv("GIGACHAT_INSECURE_SKIP_VERIFY", "true") == "true"

	minLen, _ := strconv.Atoi(getEnv("GUARDRAILS_MIN_QUESTION_LENGTH", "5"))
	maxLen, _ := strconv.Atoi(getEnv("GUARDRAILS_MAX_QUESTION_LENGTH", "500"))

	topK, _ := strconv.Atoi(getEnv("RETRIEVAL_TOP_K", "5"))
	maxResults, _ := strconv.Atoi(getEnv("SEARCH_MAX_RESULTS", "5"))

	failureCutoff, _ := strconv.Atoi(getEnv("LEARNING_FAILURE_RATING_CUTOFF", "2"))
	trainingFloor, _ := strconv.Atoi(getEnv("LEARNING_TRAINING_RATING_FLOOR", "4"))
	minExamples, _ := strconv.Atoi(getEnv("LEARNING_MIN_TRAINING_EXAMPLES", "5"))
	maxExamples, _ := strconv.Atoi(getEnv("LEARNING_MAX_TRAINING_EXAMPLES", "50"))
	maxDemos, _ := strconv.Atoi(getEnv("LEARNING_MAX_DEMOS", "4"))
	feedbackThreshold, _ := strconv.Atoi(getEnv("LEARNING_FEEDBACK_THRESHOLD", "100"))
	pollMinutes, _ := strconv.Atoi(getEnv("LEARNING_POLL_INTERVAL_MINUTES", "60"))
	healthHours, _ := strconv.Atoi(getEnv("LEARNING_HEALTH_INTERVAL_HOURS", "6"))
	cycleHour, _ := strconv.Atoi(getEnv("LEARNING_DAILY_CYCLE_HOUR", "2"))
	recentCorrections, _ := strconv.Atoi(getEnv("LEARNING_RECENT_CORRECTIONS", "3"))

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "mathagent"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecretKey: getEnv("JWT_SECRET_KEY", "change-me-in-production"),
			Expiration:   time.Duration(jwtExp) * time.Hour,
			AdminKeyHash: getEnv("ADMIN_KEY_HASH", ""),
		},
		GigaChat: GigaChatConfig{
			APIKey:             getEnv("GIGACHAT_API_KEY", ""),
			Scope:              getEnv("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
			Model:              getEnv("GIGACHAT_MODEL", "GigaChat"),
			EmbeddingModel:     getEnv("GIGACHAT_EMBEDDING_MODEL", "Embeddings"),
			InsecureSkipVerify: insecureSkipVerify,
		},
		Search: SearchConfig{
			APIKey:     getEnv("SEARCH_API_KEY", ""),
			BaseURL:    getEnv("SEARCH_BASE_URL", "https://api.tavily.com"),
			MaxResults: maxResults,
			IncludeDomains: getEnvList("SEARCH_INCLUDE_DOMAINS",
				"khanacademy.org,mathworld.wolfram.com,wikipedia.org,brilliant.org,mathsisfun.com,math.stackexchange.com"),
			RateLimit: getEnvFloat("SEARCH_RATE_LIMIT", 2),
		},
		Guardrails: GuardrailsConfig{
			MinQuestionLength:   minLen,
			MaxQuestionLength:   maxLen,
			ConfidenceThreshold: getEnvFloat("GUARDRAILS_CONFIDENCE_THRESHOLD", 0.7),
			AllowedTopics: getEnvList("GUARDRAILS_ALLOWED_TOPICS",
				"algebra,calculus,geometry,trigonometry,statistics,probability,arithmetic,number_theory,word_problem,general"),
		},
		Retrieval: RetrievalConfig{
			TopK:                topK,
			SimilarityThreshold: getEnvFloat("RETRIEVAL_SIMILARITY_THRESHOLD", 0.7),
		},
		Learning: LearningConfig{
			FailureRatingCutoff: failureCutoff,
			TrainingRatingFloor: trainingFloor,
			MinTrainingExamples: minExamples,
			MaxTrainingExamples: maxExamples,
			MaxDemos:            maxDemos,
			FeedbackThreshold:   feedbackThreshold,
			PollInterval:        time.Duration(pollMinutes) * time.Minute,
			HealthInterval:      time.Duration(healthHours) * time.Hour,
			DailyCycleHour:      cycleHour,
			RecentCorrections:   recentCorrections,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvList(key, defaultValue string) []string {
	parts := strings.Split(getEnv(key, defaultValue), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
