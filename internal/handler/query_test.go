package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacoblazdade/rag-template-starter/internal/llm"
	"github.com/jacoblazdade/rag-template-starter/internal/search"
	"github.com/jacoblazdade/rag-template-starter/internal/service"
)

type stubProvider struct {
	answer string
	chunks []string
}

func (s *stubProvider) GenerateEmbedding(ctx context.Context, text string) (pgvector.Vector, error) {
	return pgvector.NewVector([]float32{0.5}), nil
}

func (s *stubProvider) GenerateCompletion(ctx context.Context, systemPrompt, userPrompt, contextBlock string) (*llm.CompletionResult, error) {
	return &llm.CompletionResult{Text: s.answer, TokenUsage: llm.TokenUsage{Total: 9}}, nil
}

func (s *stubProvider) GenerateCompletionStream(ctx context.Context, systemPrompt, userPrompt, contextBlock string) (<-chan llm.StreamChunk, error) {
	out := make(chan llm.StreamChunk, len(s.chunks))
	for _, c := range s.chunks {
		out <- llm.StreamChunk{Content: c}
	}
	close(out)
	return out, nil
}

type stubSearcher struct {
	results []search.Result
}

func (s *stubSearcher) Search(ctx context.Context, queryEmbedding pgvector.Vector, queryText string, opts search.Options) ([]search.Result, error) {
	return s.results, nil
}

func queryRouter(provider *stubProvider, searcher *stubSearcher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewQueryHandler(service.NewQueryService(provider, searcher))
	r.POST("/v1/query", h.Query)
	r.POST("/v1/query/stream", h.QueryStream)
	return r
}

func TestQueryEndpointRejectsEmptyQuery(t *testing.T) {
	r := queryRouter(&stubProvider{}, &stubSearcher{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"query":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryEndpointReturnsAnswerAndSources(t *testing.T) {
	page := 3
	r := queryRouter(
		&stubProvider{answer: "It works [1]."},
		&stubSearcher{results: []search.Result{
			{ID: "d1-chunk-0", DocumentID: "d1", Text: "Relevant passage.", Score: 0.9, PageNumber: &page},
		}},
	)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"query":"does it work?","top_k":2}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp service.QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "It works [1].", resp.Answer)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "d1", resp.Sources[0].DocumentID)
	require.NotNil(t, resp.Sources[0].PageNumber)
	assert.Equal(t, 3, *resp.Sources[0].PageNumber)
	require.NotNil(t, resp.TokenUsage)
	assert.Equal(t, 9, resp.TokenUsage.Total)
}

func TestQueryEndpointInvalidDocumentFilter(t *testing.T) {
	r := queryRouter(&stubProvider{}, &stubSearcher{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"query":"q","document_id":"not-a-uuid"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func readSSEEvents(t *testing.T, body string) []service.StreamEvent {
	t.Helper()
	var events []service.StreamEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev service.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func TestQueryStreamEndpoint(t *testing.T) {
	r := queryRouter(
		&stubProvider{chunks: []string{"Str", "eamed [1]."}},
		&stubSearcher{results: []search.Result{
			{ID: "d1-chunk-0", DocumentID: "d1", Text: "Relevant passage.", Score: 0.9},
		}},
	)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/query/stream", strings.NewReader(`{"query":"stream it"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := readSSEEvents(t, w.Body.String())
	require.Len(t, events, 4)
	assert.Equal(t, service.StreamEventSources, events[0].Type)
	require.Len(t, events[0].Sources, 1)
	assert.Equal(t, service.StreamEventAnswer, events[1].Type)
	assert.Equal(t, "Str", events[1].Content)
	assert.Equal(t, service.StreamEventAnswer, events[2].Type)
	assert.Equal(t, service.StreamEventDone, events[3].Type)
}

func TestQueryStreamEndpointNoResults(t *testing.T) {
	r := queryRouter(&stubProvider{}, &stubSearcher{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/query/stream", strings.NewReader(`{"query":"anything"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	events := readSSEEvents(t, w.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, service.StreamEventAnswer, events[0].Type)
	assert.Equal(t, service.StreamEventDone, events[1].Type)
}
