package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/jacoblazdade/rag-template-starter/internal/config"
	"github.com/jacoblazdade/rag-template-starter/internal/database"
	"github.com/jacoblazdade/rag-template-starter/internal/handler"
	"github.com/jacoblazdade/rag-template-starter/internal/llm"
	"github.com/jacoblazdade/rag-template-starter/internal/queue"
	"github.com/jacoblazdade/rag-template-starter/internal/repository"
	"github.com/jacoblazdade/rag-template-starter/internal/search"
	"github.com/jacoblazdade/rag-template-starter/internal/service"
	"github.com/jacoblazdade/rag-template-starter/internal/worker"
)

func main() {
	// Load .env file if exists
	godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// LLM provider and search index
	provider := llm.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel, cfg.CompletionModel, cfg.EmbeddingDimensions)
	index := search.NewIndex(db)
	docRepo := repository.NewDocumentRepository(db)

	// Job broker is optional; without it ingestion degrades to upload-only.
	var jobs *queue.RedisQueue
	var jobQueue service.JobQueue
	if cfg.QueueConfigured() {
		policy := queue.RetryPolicy{MaxAttempts: cfg.JobAttempts, InitialBackoff: cfg.JobBackoff}
		jobs, err = queue.NewRedisQueue(cfg.RedisURL, policy, cfg.WorkerPollWait)
		if err != nil {
			log.Fatalf("Failed to connect to job queue: %v", err)
		}
		defer jobs.Close()
		jobQueue = jobs
	} else {
		log.Printf("REDIS_URL not set, running without async indexing")
	}

	ingestionSvc := service.NewIngestionService(docRepo, index, jobQueue, cfg)
	querySvc := service.NewQueryService(provider, index)

	// Inline worker processes jobs inside the API process. Additional
	// cmd/worker processes may run against the same queue.
	if jobs != nil && cfg.WorkerInline {
		ingestor := worker.NewIngestor(provider, index, docRepo)
		go func() {
			if err := jobs.Run(context.Background(), ingestor); err != nil {
				log.Printf("worker stopped: %v", err)
			}
		}()
	}

	// Setup router
	r := handler.SetupRouter(cfg, &handler.Deps{
		Ingestion: ingestionSvc,
		Query:     querySvc,
		Index:     index,
		Jobs:      jobs,
	})

	// Start server
	addr := cfg.Host + ":" + cfg.Port
	log.Printf("RAG Service starting on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
