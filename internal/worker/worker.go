package worker

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/jacoblazdade/rag-template-starter/internal/model"
	"github.com/jacoblazdade/rag-template-starter/internal/queue"
)

// Embedder is the slice of the LLM provider the worker needs.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([]pgvector.Vector, error)
}

// ChunkIndex is the slice of the search index the worker needs.
type ChunkIndex interface {
	Upsert(ctx context.Context, entries []model.ChunkEntry) error
}

// DocumentStatusStore updates document records on terminal job outcomes.
type DocumentStatusStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.DocumentStatus, errorMsg string) error
}

// Ingestor processes ingestion jobs: batch-embed a document's passages, then
// bulk-index the resulting entries. A failed step fails the whole attempt so
// embeddings are never committed without their index entries.
type Ingestor struct {
	embedder Embedder
	index    ChunkIndex
	docs     DocumentStatusStore
}

func NewIngestor(embedder Embedder, index ChunkIndex, docs DocumentStatusStore) *Ingestor {
	return &Ingestor{embedder: embedder, index: index, docs: docs}
}

var _ queue.Consumer = (*Ingestor)(nil)

func (w *Ingestor) ProcessJob(ctx context.Context, job *queue.Job, report queue.ProgressFunc) (*queue.Result, error) {
	passages := job.Payload.Passages
	log.Printf("processing document %s with %d chunks", job.Payload.DocumentID, len(passages))

	report(10)

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}

	// One provider call for the whole document, not one per passage.
	embeddings, err := w.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(passages) {
		return nil, fmt.Errorf("embedding count mismatch: %d passages, %d embeddings", len(passages), len(embeddings))
	}

	report(50)

	docID, err := uuid.Parse(job.Payload.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("invalid document id %q: %w", job.Payload.DocumentID, err)
	}

	entries := make([]model.ChunkEntry, len(passages))
	for i, p := range passages {
		entries[i] = model.ChunkEntry{
			ID:          p.ID,
			DocumentID:  docID,
			ChunkIndex:  p.ChunkIndex,
			Content:     p.Text,
			Embedding:   embeddings[i],
			PageNumber:  p.PageNumber,
			TotalChunks: p.TotalChunks,
		}
	}

	report(75)

	if err := w.index.Upsert(ctx, entries); err != nil {
		return nil, fmt.Errorf("failed to index chunks: %w", err)
	}

	report(100)

	return &queue.Result{
		DocumentID:    job.Payload.DocumentID,
		IndexedChunks: len(entries),
	}, nil
}

func (w *Ingestor) JobCompleted(ctx context.Context, job *queue.Job, result *queue.Result) {
	docID, err := uuid.Parse(job.Payload.DocumentID)
	if err != nil {
		return
	}
	if err := w.docs.UpdateStatus(ctx, docID, model.DocumentStatusIndexed, ""); err != nil {
		log.Printf("failed to mark document %s indexed: %v", docID, err)
	}
}

func (w *Ingestor) JobFailed(ctx context.Context, job *queue.Job, jobErr error) {
	docID, err := uuid.Parse(job.Payload.DocumentID)
	if err != nil {
		return
	}
	if err := w.docs.UpdateStatus(ctx, docID, model.DocumentStatusFailed, jobErr.Error()); err != nil {
		log.Printf("failed to mark document %s failed: %v", docID, err)
	}
}
