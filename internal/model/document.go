package model

import (
	"time"
)

type DocumentStatus string

const (
	DocumentStatusUploaded   DocumentStatus = "uploaded"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusIndexed    DocumentStatus = "indexed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document is the metadata record for an uploaded document. Its status is
// driven by the ingestion job lifecycle: processing on enqueue, indexed on job
// completion, failed once retries are exhausted.
type Document struct {
	BaseModel
	Filename     string         `gorm:"size:500;not null" json:"filename"`
	ContentType  string         `gorm:"size:100" json:"content_type"`
	Size         int64          `gorm:"not null" json:"size"`
	StoragePath  string         `gorm:"size:1000" json:"-"`
	ParseMethod  string         `gorm:"size:50" json:"parse_method"`
	PageCount    int            `gorm:"default:0" json:"page_count"`
	ChunkCount   int            `gorm:"default:0" json:"chunk_count"`
	Status       DocumentStatus `gorm:"size:50;default:'uploaded';index" json:"status"`
	JobID        string         `gorm:"size:100" json:"job_id,omitempty"`
	ErrorMessage string         `gorm:"type:text" json:"error_message,omitempty"`
	IndexedAt    *time.Time     `json:"indexed_at,omitempty"`
	Metadata     JSONMap        `gorm:"type:jsonb" json:"metadata,omitempty"`
}

func (Document) TableName() string {
	return "documents"
}
