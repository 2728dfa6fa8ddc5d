package search

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jacoblazdade/rag-template-starter/internal/model"
)

const (
	defaultTop     = 5
	deletePageSize = 500

	// Hybrid ranking weights: cosine similarity dominates, keyword rank
	// breaks ties and rewards exact term matches.
	vectorWeight  = 0.7
	keywordWeight = 0.3
)

// Index is the vector+keyword search index over document chunks, backed by a
// pgvector column and Postgres full-text search on the same table.
type Index struct {
	db *gorm.DB
}

func NewIndex(db *gorm.DB) *Index {
	return &Index{db: db}
}

// Result is one ranked hit, ephemeral per query.
type Result struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	PageNumber *int    `json:"page_number,omitempty"`
}

// Options scope a search. Top defaults to 5. DocumentID, when set, restricts
// results to one document. HybridSearch combines vector similarity with
// keyword relevance; vector-only otherwise.
type Options struct {
	Top          int
	DocumentID   *uuid.UUID
	HybridSearch bool
}

// Upsert writes chunk entries to the index. Entries are keyed by passage id,
// so a re-ingested document replaces its rows in place.
func (idx *Index) Upsert(ctx context.Context, entries []model.ChunkEntry) error {
	if len(entries) == 0 {
		return nil
	}
	err := idx.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&entries).Error
	if err != nil {
		return fmt.Errorf("failed to index chunks: %w", err)
	}
	return nil
}

// Search runs a ranked query against the index. An empty result set is valid
// and distinct from a query failure.
func (idx *Index) Search(ctx context.Context, queryEmbedding pgvector.Vector, queryText string, opts Options) ([]Result, error) {
	top := opts.Top
	if top <= 0 {
		top = defaultTop
	}

	var rows []struct {
		model.ChunkEntry
		Score float64 `gorm:"column:score"`
	}

	query := idx.db.WithContext(ctx).
		Table("document_chunks").
		Where("embedding IS NOT NULL")

	if opts.HybridSearch && queryText != "" {
		// ts_rank is unbounded above; rank/(1+rank) maps it into [0,1) so the
		// weighted sum stays comparable with the cosine term.
		query = query.Select(
			"*, (? * (1 - (embedding <=> ?)) + ? * (ts_rank(to_tsvector('english', content), plainto_tsquery('english', ?)) / (1 + ts_rank(to_tsvector('english', content), plainto_tsquery('english', ?))))) AS score",
			vectorWeight, queryEmbedding, keywordWeight, queryText, queryText,
		)
	} else {
		query = query.Select("*, (1 - (embedding <=> ?)) AS score", queryEmbedding)
	}

	if opts.DocumentID != nil {
		query = query.Where("document_id = ?", *opts.DocumentID)
	}

	if err := query.Order("score DESC").Limit(top).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}

	results := make([]Result, 0, len(rows))
	for _, r := range rows {
		results = append(results, Result{
			ID:         r.ID,
			DocumentID: r.DocumentID.String(),
			Text:       r.Content,
			Score:      r.Score,
			PageNumber: r.PageNumber,
		})
	}
	return results, nil
}

// DeleteByDocument removes every chunk of a document from the index. The
// lookup is paginated so large documents are cleared in bounded batches.
func (idx *Index) DeleteByDocument(ctx context.Context, documentID uuid.UUID) (int64, error) {
	var total int64
	for {
		var ids []string
		err := idx.db.WithContext(ctx).
			Model(&model.ChunkEntry{}).
			Where("document_id = ?", documentID).
			Order("chunk_index ASC").
			Limit(deletePageSize).
			Pluck("id", &ids).Error
		if err != nil {
			return total, fmt.Errorf("failed to look up chunks: %w", err)
		}
		if len(ids) == 0 {
			return total, nil
		}

		res := idx.db.WithContext(ctx).
			Where("id IN ?", ids).
			Delete(&model.ChunkEntry{})
		if res.Error != nil {
			return total, fmt.Errorf("failed to delete chunks: %w", res.Error)
		}
		total += res.RowsAffected

		if len(ids) < deletePageSize {
			return total, nil
		}
	}
}

// ListByDocument returns a document's chunks in chunk order, for inspection.
func (idx *Index) ListByDocument(ctx context.Context, documentID uuid.UUID, limit, offset int) ([]model.ChunkEntry, int64, error) {
	var entries []model.ChunkEntry
	var total int64

	query := idx.db.WithContext(ctx).Model(&model.ChunkEntry{}).
		Where("document_id = ?", documentID)

	query.Count(&total)
	err := query.Order("chunk_index ASC").Limit(limit).Offset(offset).Find(&entries).Error
	return entries, total, err
}

// CountChunks returns the total number of indexed chunks.
func (idx *Index) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := idx.db.WithContext(ctx).Model(&model.ChunkEntry{}).Count(&count).Error
	return count, err
}
