package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient("test-key", baseURL, "text-embedding-3-small", "gpt-4o", 3)
}

func TestGenerateEmbeddingsOrderPreserved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		inputs := req.Input.([]interface{})

		// Respond out of order; the index field is authoritative.
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"object":"list","data":[
			{"object":"embedding","index":1,"embedding":[1,1,1]},
			{"object":"embedding","index":0,"embedding":[0,0,0]}
		],"model":"text-embedding-3-small","usage":{"prompt_tokens":%d,"total_tokens":%d}}`, len(inputs), len(inputs))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	vectors, err := client.GenerateEmbeddings(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0, 0, 0}, vectors[0].Slice())
	assert.Equal(t, []float32{1, 1, 1}, vectors[1].Slice())
}

func TestGenerateEmbeddingsEmptyInput(t *testing.T) {
	client := newTestClient("http://unreachable.invalid")
	vectors, err := client.GenerateEmbeddings(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestGenerateEmbeddingsCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[1,2,3]}]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GenerateEmbeddings(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2 embeddings")
}

func TestGenerateEmbeddingAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GenerateEmbedding(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestGenerateCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 3)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "system", req.Messages[1].Role)
		assert.Contains(t, req.Messages[1].Content, "Context:\n")
		assert.Equal(t, "user", req.Messages[2].Role)
		assert.False(t, req.Stream)

		fmt.Fprint(w, `{"choices":[{"message":{"content":"Answer [1]."},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":20,"completion_tokens":8,"total_tokens":28}}`)
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).GenerateCompletion(context.Background(), "sys", "question", "[1] context")
	require.NoError(t, err)
	assert.Equal(t, "Answer [1].", result.Text)
	assert.Equal(t, TokenUsage{Prompt: 20, Completion: 8, Total: 28}, result.TokenUsage)
}

func TestGenerateCompletionNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GenerateCompletion(context.Background(), "sys", "q", "")
	require.Error(t, err)
}

func sseChunk(content string) string {
	data, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{{"delta": map[string]string{"content": content}}},
	})
	return "data: " + string(data) + "\n\n"
}

func TestGenerateCompletionStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("Hello"))
		fmt.Fprint(w, sseChunk(" world"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	chunks, err := newTestClient(srv.URL).GenerateCompletionStream(context.Background(), "sys", "q", "ctx")
	require.NoError(t, err)

	var collected []string
	for c := range chunks {
		require.NoError(t, c.Err)
		collected = append(collected, c.Content)
	}
	assert.Equal(t, []string{"Hello", " world"}, collected)
}

func TestGenerateCompletionStreamTruncation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("partial"))
		// Connection closes without the [DONE] terminator.
	}))
	defer srv.Close()

	chunks, err := newTestClient(srv.URL).GenerateCompletionStream(context.Background(), "sys", "q", "ctx")
	require.NoError(t, err)

	var contents []string
	var streamErr error
	for c := range chunks {
		if c.Err != nil {
			streamErr = c.Err
			continue
		}
		contents = append(contents, c.Content)
	}
	assert.Equal(t, []string{"partial"}, contents)
	require.Error(t, streamErr, "truncation must be surfaced, not silent")
}

func TestGenerateCompletionStreamHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GenerateCompletionStream(context.Background(), "sys", "q", "ctx")
	require.Error(t, err)
}

func TestGenerateCompletionStreamCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("first"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	chunks, err := newTestClient(srv.URL).GenerateCompletionStream(ctx, "sys", "q", "ctx")
	require.NoError(t, err)

	first := <-chunks
	require.NoError(t, first.Err)
	assert.Equal(t, "first", first.Content)

	cancel()

	// The channel closes promptly and without a spurious error chunk.
	for c := range chunks {
		assert.NoError(t, c.Err)
	}
}
