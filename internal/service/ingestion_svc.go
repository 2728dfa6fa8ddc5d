package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/jacoblazdade/rag-template-starter/internal/chunker"
	"github.com/jacoblazdade/rag-template-starter/internal/config"
	"github.com/jacoblazdade/rag-template-starter/internal/model"
	"github.com/jacoblazdade/rag-template-starter/internal/queue"
	"github.com/jacoblazdade/rag-template-starter/internal/repository"
)

// JobQueue is the slice of the durable broker the ingestion service needs.
// A nil JobQueue means the broker is not configured (degraded mode).
type JobQueue interface {
	Enqueue(ctx context.Context, payload queue.Payload) (string, error)
}

// ChunkRemover removes a document's entries from the search index.
type ChunkRemover interface {
	DeleteByDocument(ctx context.Context, documentID uuid.UUID) (int64, error)
}

// DocumentStore is the metadata store for document records.
type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Document, error)
	List(ctx context.Context, limit, offset int) ([]model.Document, int64, error)
	RecordEnqueue(ctx context.Context, id uuid.UUID, jobID string, chunkCount int) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetStats(ctx context.Context) (*repository.Stats, error)
}

var allowedContentTypes = map[string]bool{
	"text/plain":    true,
	"text/markdown": true,
}

// IngestionService owns the upload-to-enqueue path: store the raw file,
// extract its text, chunk it, and hand the passages to the job queue.
type IngestionService struct {
	docRepo DocumentStore
	index   ChunkRemover
	jobs    JobQueue
	cfg     *config.Config
}

func NewIngestionService(docRepo DocumentStore, index ChunkRemover, jobs JobQueue, cfg *config.Config) *IngestionService {
	return &IngestionService{docRepo: docRepo, index: index, jobs: jobs, cfg: cfg}
}

func (s *IngestionService) chunkOptions() chunker.Options {
	return chunker.Options{
		MaxChunkSize:      s.cfg.MaxChunkSize,
		ChunkOverlap:      s.cfg.ChunkOverlap,
		SplitOnPageBreaks: s.cfg.SplitOnPageBreaks,
	}
}

// Ingest chunks raw text for a document. Pure entry point; no storage or
// provider calls.
func (s *IngestionService) Ingest(rawText, documentID string) []chunker.Passage {
	return chunker.Chunk(rawText, documentID, s.chunkOptions())
}

// UploadResult is what the upload endpoint returns to the caller.
type UploadResult struct {
	DocumentID string               `json:"document_id"`
	Filename   string               `json:"filename"`
	Size       int64                `json:"size"`
	PageCount  int                  `json:"page_count"`
	ChunkCount int                  `json:"chunk_count"`
	Status     model.DocumentStatus `json:"status"`
	JobID      string               `json:"job_id,omitempty"`
}

// Upload stores a document, chunks its text, and queues it for indexing. When
// the job broker is absent the document stays in uploaded status — degraded
// mode, not an error.
func (s *IngestionService) Upload(ctx context.Context, filename, contentType string, size int64, reader io.Reader) (*UploadResult, error) {
	if !allowedContentTypes[normalizeContentType(contentType)] {
		return nil, fmt.Errorf("unsupported file type: %s", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(reader, s.cfg.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxUploadSize {
		return nil, fmt.Errorf("file exceeds maximum upload size of %d bytes", s.cfg.MaxUploadSize)
	}

	text := string(data)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("document contains no text")
	}

	docID := uuid.New()
	storagePath := filepath.Join(s.cfg.StoragePath, docID.String(), filename)
	if err := os.MkdirAll(filepath.Dir(storagePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	if err := os.WriteFile(storagePath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	passages := s.Ingest(text, docID.String())
	pageCount := countPages(passages)

	doc := &model.Document{
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		StoragePath: storagePath,
		ParseMethod: "native",
		PageCount:   pageCount,
		ChunkCount:  len(passages),
		Status:      model.DocumentStatusUploaded,
	}
	doc.ID = docID

	if err := s.docRepo.Create(ctx, doc); err != nil {
		os.Remove(storagePath)
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	jobID, queued, err := s.EnqueueIngestion(ctx, docID, passages)
	if err != nil {
		return nil, err
	}

	status := model.DocumentStatusUploaded
	if queued {
		status = model.DocumentStatusProcessing
	}

	return &UploadResult{
		DocumentID: docID.String(),
		Filename:   filename,
		Size:       size,
		PageCount:  pageCount,
		ChunkCount: len(passages),
		Status:     status,
		JobID:      jobID,
	}, nil
}

// EnqueueIngestion queues a document's passages for embedding and indexing.
// Returns queued=false without error when the broker is not configured.
func (s *IngestionService) EnqueueIngestion(ctx context.Context, documentID uuid.UUID, passages []chunker.Passage) (string, bool, error) {
	if s.jobs == nil {
		log.Printf("job queue not configured, document %s left unindexed", documentID)
		return "", false, nil
	}

	jobID, err := s.jobs.Enqueue(ctx, queue.Payload{
		DocumentID: documentID.String(),
		Passages:   passages,
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to enqueue ingestion job: %w", err)
	}

	if err := s.docRepo.RecordEnqueue(ctx, documentID, jobID, len(passages)); err != nil {
		log.Printf("failed to record job %s on document %s: %v", jobID, documentID, err)
	}

	return jobID, true, nil
}

func (s *IngestionService) Get(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	return s.docRepo.FindByID(ctx, id)
}

func (s *IngestionService) List(ctx context.Context, limit, offset int) ([]model.Document, int64, error) {
	return s.docRepo.List(ctx, limit, offset)
}

func (s *IngestionService) Stats(ctx context.Context) (*repository.Stats, error) {
	return s.docRepo.GetStats(ctx)
}

// Delete removes a document: its index entries, its stored file, and its
// record.
func (s *IngestionService) Delete(ctx context.Context, id uuid.UUID) error {
	doc, err := s.docRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.index.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to remove index entries: %w", err)
	}

	if doc.StoragePath != "" {
		os.Remove(doc.StoragePath)
	}

	return s.docRepo.Delete(ctx, id)
}

func normalizeContentType(contentType string) string {
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.TrimSpace(strings.ToLower(contentType))
}

func countPages(passages []chunker.Passage) int {
	pages := 0
	for _, p := range passages {
		if p.PageNumber != nil && *p.PageNumber > pages {
			pages = *p.PageNumber
		}
	}
	if pages == 0 && len(passages) > 0 {
		pages = 1
	}
	return pages
}
