package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// ChunkEntry is one indexed passage in the search index. The primary key is
// the deterministic passage id ("{documentID}-chunk-{index}"), so re-ingesting
// a document overwrites its previous entries instead of accumulating them.
type ChunkEntry struct {
	ID          string          `gorm:"primaryKey;size:255" json:"id"`
	DocumentID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"document_id"`
	ChunkIndex  int             `gorm:"not null" json:"chunk_index"`
	Content     string          `gorm:"type:text;not null" json:"content"`
	Embedding   pgvector.Vector `gorm:"type:vector(1536)" json:"-"`
	PageNumber  *int            `gorm:"index" json:"page_number,omitempty"`
	TotalChunks int             `gorm:"default:0" json:"total_chunks"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (ChunkEntry) TableName() string {
	return "document_chunks"
}
