package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jacoblazdade/rag-template-starter/internal/config"
	"github.com/jacoblazdade/rag-template-starter/internal/database"
	"github.com/jacoblazdade/rag-template-starter/internal/llm"
	"github.com/jacoblazdade/rag-template-starter/internal/queue"
	"github.com/jacoblazdade/rag-template-starter/internal/repository"
	"github.com/jacoblazdade/rag-template-starter/internal/search"
	"github.com/jacoblazdade/rag-template-starter/internal/worker"
)

// Standalone ingestion worker. Any number of these can run against the same
// queue; the broker hands each job to exactly one of them.
func main() {
	godotenv.Load()

	cfg := config.Load()
	if !cfg.QueueConfigured() {
		log.Fatal("REDIS_URL is required for the worker")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	policy := queue.RetryPolicy{MaxAttempts: cfg.JobAttempts, InitialBackoff: cfg.JobBackoff}
	jobs, err := queue.NewRedisQueue(cfg.RedisURL, policy, cfg.WorkerPollWait)
	if err != nil {
		log.Fatalf("Failed to connect to job queue: %v", err)
	}
	defer jobs.Close()

	provider := llm.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel, cfg.CompletionModel, cfg.EmbeddingDimensions)
	index := search.NewIndex(db)
	docRepo := repository.NewDocumentRepository(db)
	ingestor := worker.NewIngestor(provider, index, docRepo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := jobs.Run(ctx, ingestor); err != nil && ctx.Err() == nil {
		log.Fatalf("Worker stopped: %v", err)
	}
	log.Println("Worker shut down")
}
