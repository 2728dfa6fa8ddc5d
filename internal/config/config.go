package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	Host        string
	Port        string
	Environment string
	GinMode     string

	// Database
	DatabaseURL string

	// Redis job broker. Empty means the broker is not configured and ingestion
	// runs in degraded mode: documents stay in "uploaded" status, no indexing.
	RedisURL string

	// LLM provider (OpenAI compatible)
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	EmbeddingModel      string
	EmbeddingDimensions int
	CompletionModel     string

	// Chunking
	MaxChunkSize      int
	ChunkOverlap      int
	SplitOnPageBreaks bool

	// Job processing
	JobAttempts    int
	JobBackoff     time.Duration
	WorkerInline   bool
	WorkerPollWait time.Duration

	// File storage
	StoragePath   string
	MaxUploadSize int64
}

func Load() *Config {
	return &Config{
		Host:        getEnv("HOST", "0.0.0.0"),
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		GinMode:     getEnv("GIN_MODE", "debug"),

		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/ragserver?sslmode=disable"),
		RedisURL:    getEnv("REDIS_URL", ""),

		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		EmbeddingModel:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimensions: int(getEnvInt64("EMBEDDING_DIMENSIONS", 1536)),
		CompletionModel:     getEnv("COMPLETION_MODEL", "gpt-4o"),

		MaxChunkSize:      int(getEnvInt64("MAX_CHUNK_SIZE", 1000)),
		ChunkOverlap:      int(getEnvInt64("CHUNK_OVERLAP", 200)),
		SplitOnPageBreaks: getEnvBool("SPLIT_ON_PAGE_BREAKS", true),

		JobAttempts:    int(getEnvInt64("JOB_ATTEMPTS", 3)),
		JobBackoff:     getEnvDuration("JOB_BACKOFF", 5*time.Second),
		WorkerInline:   getEnvBool("WORKER_INLINE", true),
		WorkerPollWait: getEnvDuration("WORKER_POLL_WAIT", 2*time.Second),

		StoragePath:   getEnv("STORAGE_PATH", "./storage"),
		MaxUploadSize: getEnvInt64("MAX_UPLOAD_SIZE", 50*1024*1024), // 50MB
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// QueueConfigured reports whether the durable job broker is available. Resolved
// once at startup; callers treat a false value as degraded mode, not an error.
func (c *Config) QueueConfigured() bool {
	return c.RedisURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
