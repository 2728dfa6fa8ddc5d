package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	completionTemperature = 0.7
	completionMaxTokens   = 1000
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream,omitempty"`
}

type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// TokenUsage is the provider's token accounting for one completion.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// CompletionResult is a buffered completion plus token accounting.
type CompletionResult struct {
	Text       string
	TokenUsage TokenUsage
}

// StreamChunk is one increment of a streaming completion. Exactly one of
// Content or Err is meaningful; a chunk with Err set is the last one sent.
type StreamChunk struct {
	Content string
	Err     error
}

func buildMessages(model, systemPrompt, userPrompt, contextBlock string) ChatRequest {
	messages := []ChatMessage{{Role: "system", Content: systemPrompt}}
	if contextBlock != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: "Context:\n" + contextBlock})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: userPrompt})

	return ChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: completionTemperature,
		MaxTokens:   completionMaxTokens,
	}
}

// GenerateCompletion issues a buffered chat completion.
func (c *Client) GenerateCompletion(ctx context.Context, systemPrompt, userPrompt, contextBlock string) (*CompletionResult, error) {
	reqBody := buildMessages(c.completionModel, systemPrompt, userPrompt, contextBlock)

	body, err := c.post(ctx, "/chat/completions", reqBody)
	if err != nil {
		return nil, err
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no completion returned")
	}

	return &CompletionResult{
		Text: chatResp.Choices[0].Message.Content,
		TokenUsage: TokenUsage{
			Prompt:     chatResp.Usage.PromptTokens,
			Completion: chatResp.Usage.CompletionTokens,
			Total:      chatResp.Usage.TotalTokens,
		},
	}, nil
}

type streamDelta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// GenerateCompletionStream issues a streaming chat completion. Fragments
// arrive on the returned channel in generation order; the channel is closed
// after the final fragment. A provider failure mid-stream is delivered as a
// chunk with Err set before the channel closes. Cancelling ctx stops the
// stream promptly.
func (c *Client) GenerateCompletionStream(ctx context.Context, systemPrompt, userPrompt, contextBlock string) (<-chan StreamChunk, error) {
	reqBody := buildMessages(c.completionModel, systemPrompt, userPrompt, contextBlock)
	reqBody.Stream = true

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, fmt.Errorf("API error (status %d)", resp.StatusCode)
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		done := false
		for !done && scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				done = true
				break
			}

			var delta streamDelta
			if err := json.Unmarshal([]byte(payload), &delta); err != nil {
				continue
			}
			if len(delta.Choices) == 0 || delta.Choices[0].Delta.Content == "" {
				continue
			}

			select {
			case out <- StreamChunk{Content: delta.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}

		if done || ctx.Err() != nil {
			return
		}

		// The provider terminates a healthy stream with [DONE]; anything else
		// is a truncation and must be surfaced, not swallowed.
		err := scanner.Err()
		if err == nil {
			err = fmt.Errorf("stream ended without terminator")
		}
		select {
		case out <- StreamChunk{Err: fmt.Errorf("stream interrupted: %w", err)}:
		case <-ctx.Done():
		}
	}()

	return out, nil
}
