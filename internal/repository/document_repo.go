package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jacoblazdade/rag-template-starter/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *DocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepository) List(ctx context.Context, limit, offset int) ([]model.Document, int64, error) {
	var docs []model.Document
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Document{})
	query.Count(&total)
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&docs).Error
	return docs, total, err
}

func (r *DocumentRepository) Update(ctx context.Context, doc *model.Document) error {
	return r.db.WithContext(ctx).Save(doc).Error
}

// UpdateStatus transitions a document's status. errorMsg is recorded only for
// failures; IndexedAt is stamped when the document reaches indexed.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.DocumentStatus, errorMsg string) error {
	updates := map[string]interface{}{"status": status}
	if errorMsg != "" {
		updates["error_message"] = errorMsg
	}
	if status == model.DocumentStatusIndexed {
		now := time.Now()
		updates["indexed_at"] = &now
	}
	return r.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// RecordEnqueue marks a document as processing and attaches its job id and
// chunk count in one write.
func (r *DocumentRepository) RecordEnqueue(ctx context.Context, id uuid.UUID, jobID string, chunkCount int) error {
	return r.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      model.DocumentStatusProcessing,
			"job_id":      jobID,
			"chunk_count": chunkCount,
		}).Error
}

func (r *DocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Document{}, "id = ?", id).Error
}

// Stats summarizes the document corpus for the admin dashboard.
type Stats struct {
	TotalDocuments   int64 `json:"total_documents"`
	TotalChunks      int64 `json:"total_chunks"`
	IndexedDocuments int64 `json:"indexed_documents"`
	AvgChunksPerDoc  int64 `json:"avg_chunks_per_doc"`
}

func (r *DocumentRepository) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats

	q := r.db.WithContext(ctx).Model(&model.Document{})
	if err := q.Count(&stats.TotalDocuments).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&model.Document{}).
		Select("COALESCE(SUM(chunk_count), 0)").
		Scan(&stats.TotalChunks).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&model.Document{}).
		Where("status = ?", model.DocumentStatusIndexed).
		Count(&stats.IndexedDocuments).Error; err != nil {
		return nil, err
	}
	if stats.TotalDocuments > 0 {
		stats.AvgChunksPerDoc = stats.TotalChunks / stats.TotalDocuments
	}
	return &stats, nil
}
