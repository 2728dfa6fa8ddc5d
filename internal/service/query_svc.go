package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/jacoblazdade/rag-template-starter/internal/llm"
	"github.com/jacoblazdade/rag-template-starter/internal/search"
)

const systemPrompt = `You are a helpful AI assistant that answers questions based on the provided context.
If the context doesn't contain relevant information, say so.
Always cite your sources using the [N] notation.`

const noResultsAnswer = "I could not find any relevant information in the documents."

const sourcePreviewLength = 200

// LLMProvider is the slice of the completion/embedding provider the query
// path needs.
type LLMProvider interface {
	GenerateEmbedding(ctx context.Context, text string) (pgvector.Vector, error)
	GenerateCompletion(ctx context.Context, systemPrompt, userPrompt, contextBlock string) (*llm.CompletionResult, error)
	GenerateCompletionStream(ctx context.Context, systemPrompt, userPrompt, contextBlock string) (<-chan llm.StreamChunk, error)
}

// Searcher is the slice of the search index the query path needs.
type Searcher interface {
	Search(ctx context.Context, queryEmbedding pgvector.Vector, queryText string, opts search.Options) ([]search.Result, error)
}

// QueryService answers questions over the indexed corpus: hybrid retrieval
// followed by grounded answer synthesis, buffered or streamed.
type QueryService struct {
	provider LLMProvider
	index    Searcher
}

func NewQueryService(provider LLMProvider, index Searcher) *QueryService {
	return &QueryService{provider: provider, index: index}
}

// QueryOptions scope a question.
type QueryOptions struct {
	TopK       int
	DocumentID *uuid.UUID
}

// Source is a citation: the owning document, a bounded text preview, the
// relevance score, and the page the passage came from.
type Source struct {
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	PageNumber *int    `json:"page_number,omitempty"`
}

// QueryResponse is a buffered answer with citations and token accounting.
type QueryResponse struct {
	Answer     string          `json:"answer"`
	Sources    []Source        `json:"sources"`
	TokenUsage *llm.TokenUsage `json:"token_usage,omitempty"`
}

// Query answers a question in buffered mode.
func (s *QueryService) Query(ctx context.Context, question string, opts QueryOptions) (*QueryResponse, error) {
	results, err := s.retrieve(ctx, question, opts)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return &QueryResponse{Answer: noResultsAnswer, Sources: []Source{}}, nil
	}

	completion, err := s.provider.GenerateCompletion(ctx, systemPrompt, question, buildContext(results))
	if err != nil {
		log.Printf("completion error: %v", err)
		return nil, fmt.Errorf("failed to generate answer")
	}

	return &QueryResponse{
		Answer:     completion.Text,
		Sources:    buildSources(results),
		TokenUsage: &completion.TokenUsage,
	}, nil
}

type StreamEventType string

const (
	StreamEventSources StreamEventType = "sources"
	StreamEventAnswer  StreamEventType = "answer"
	StreamEventDone    StreamEventType = "done"
	StreamEventError   StreamEventType = "error"
)

// StreamEvent is one increment of a streaming answer. Sources arrive once
// before any answer fragments; exactly one done or error event terminates the
// sequence.
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Content string          `json:"content,omitempty"`
	Sources []Source        `json:"sources,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// QueryStream answers a question as an ordered, finite event sequence. The
// returned channel is closed after the terminal event. Cancelling ctx stops
// provider consumption promptly.
func (s *QueryService) QueryStream(ctx context.Context, question string, opts QueryOptions) (<-chan StreamEvent, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("query is required")
	}

	out := make(chan StreamEvent)
	go func() {
		defer close(out)

		emit := func(ev StreamEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		results, err := s.retrieve(ctx, question, opts)
		if err != nil {
			log.Printf("streaming retrieval error: %v", err)
			emit(StreamEvent{Type: StreamEventError, Error: "failed to process query"})
			return
		}

		if len(results) == 0 {
			if emit(StreamEvent{Type: StreamEventAnswer, Content: noResultsAnswer}) {
				emit(StreamEvent{Type: StreamEventDone})
			}
			return
		}

		if !emit(StreamEvent{Type: StreamEventSources, Sources: buildSources(results)}) {
			return
		}

		chunks, err := s.provider.GenerateCompletionStream(ctx, systemPrompt, question, buildContext(results))
		if err != nil {
			log.Printf("streaming completion error: %v", err)
			emit(StreamEvent{Type: StreamEventError, Error: "failed to generate answer"})
			return
		}

		for chunk := range chunks {
			if chunk.Err != nil {
				log.Printf("stream interrupted: %v", chunk.Err)
				emit(StreamEvent{Type: StreamEventError, Error: "answer stream interrupted"})
				return
			}
			if !emit(StreamEvent{Type: StreamEventAnswer, Content: chunk.Content}) {
				return
			}
		}

		emit(StreamEvent{Type: StreamEventDone})
	}()

	return out, nil
}

// retrieve embeds the question and runs hybrid search. Validation happens
// before any provider call.
func (s *QueryService) retrieve(ctx context.Context, question string, opts QueryOptions) ([]search.Result, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("query is required")
	}

	queryEmbedding, err := s.provider.GenerateEmbedding(ctx, question)
	if err != nil {
		log.Printf("query embedding error: %v", err)
		return nil, fmt.Errorf("failed to process query")
	}

	results, err := s.index.Search(ctx, queryEmbedding, question, search.Options{
		Top:          opts.TopK,
		DocumentID:   opts.DocumentID,
		HybridSearch: true,
	})
	if err != nil {
		log.Printf("search error: %v", err)
		return nil, fmt.Errorf("failed to search documents")
	}
	return results, nil
}

// buildContext concatenates ranked passages, each prefixed with its 1-based
// citation index.
func buildContext(results []search.Result) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("[%d] %s", i+1, r.Text)
	}
	return strings.Join(parts, "\n\n")
}

func buildSources(results []search.Result) []Source {
	sources := make([]Source, len(results))
	for i, r := range results {
		text := r.Text
		if runes := []rune(text); len(runes) > sourcePreviewLength {
			text = string(runes[:sourcePreviewLength]) + "..."
		}
		sources[i] = Source{
			DocumentID: r.DocumentID,
			Text:       text,
			Score:      r.Score,
			PageNumber: r.PageNumber,
		}
	}
	return sources
}
