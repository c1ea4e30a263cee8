// Package jobs defines the asynchronous unit of work for inbound messages
// and the queue interfaces it moves through.
package jobs

import (
	"context"
	"time"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ProcessMessageJob carries one inbound text message through the pipeline.
// Message jobs are never retried: by the time a job finishes, a reply went
// out, and re-running it would mutate the ledger twice.
type ProcessMessageJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// UserID is the messaging platform's stable user id.
	UserID string `json:"user_id"`

	// ReplyToken authorizes exactly one reply to this message.
	ReplyToken string `json:"reply_token"`

	// Text is the raw message text.
	Text string `json:"text"`

	// ReceivedAt is when the webhook delivered the message.
	ReceivedAt time.Time `json:"received_at"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`
}

// Publisher enqueues message jobs.
type Publisher interface {
	// PublishMessage publishes a message-processing job.
	PublishMessage(ctx context.Context, job *ProcessMessageJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer drains message jobs into a handler.
type Consumer interface {
	// Start begins consuming jobs. The handler is called once per job.
	Start(ctx context.Context, handler Handler) error

	// Stop stops consuming and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// Handler processes one message job. The pipeline itself never fails —
// every failure collapses into a reply — so the returned error is for
// logging only.
type Handler func(ctx context.Context, job *ProcessMessageJob) error
