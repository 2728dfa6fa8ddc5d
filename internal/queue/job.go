package queue

import (
	"context"
	"time"

	"github.com/jacoblazdade/rag-template-starter/internal/chunker"
)

const PayloadVersion = 1

type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// Payload is the closed, versioned job payload: one document's complete,
// ordered chunking output. A job is retried as a whole, never partially.
type Payload struct {
	Version    int               `json:"version"`
	DocumentID string            `json:"document_id"`
	Passages   []chunker.Passage `json:"passages"`
}

// Job is one claimed unit of work.
type Job struct {
	ID       string
	Attempts int
	Payload  Payload
}

// Result summarizes a successfully processed job.
type Result struct {
	DocumentID    string `json:"document_id"`
	IndexedChunks int    `json:"indexed_chunks"`
}

// Status is the observable state of a job, served to the admin API.
type Status struct {
	ID       string   `json:"id"`
	State    JobState `json:"state"`
	Attempts int      `json:"attempts"`
	Progress int      `json:"progress"`
	Error    string   `json:"error,omitempty"`
	Result   *Result  `json:"result,omitempty"`
}

// RetryPolicy controls at-least-once redelivery.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 5 * time.Second,
	}
}

// Delay returns the backoff before redelivering a job that has already been
// attempted `attempt` times. Doubles per attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.InitialBackoff << (attempt - 1)
}

// ProgressFunc reports relative job progress (0-100).
type ProgressFunc func(percent int)

// Consumer processes claimed jobs. ProcessJob runs one attempt; JobCompleted
// and JobFailed fire exactly once per job, on terminal success or after the
// retry budget is exhausted.
type Consumer interface {
	ProcessJob(ctx context.Context, job *Job, report ProgressFunc) (*Result, error)
	JobCompleted(ctx context.Context, job *Job, result *Result)
	JobFailed(ctx context.Context, job *Job, err error)
}
