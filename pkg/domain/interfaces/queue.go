package interfaces

import (
	"context"
	"time"

	"github.com/everstory-ai/everstory/pkg/domain/types"
)

// JobQueue is the durable, at-least-once work queue boundary. Handlers must
// tolerate re-runs: retries re-execute the full handler.
type JobQueue interface {
	// Add enqueues a job. The payload is JSON-marshaled.
	Add(ctx context.Context, name types.JobName, payload any, opts ...JobOption) error
}

// JobConfig holds per-enqueue settings
type JobConfig struct {
	// Delay defers the first run
	Delay time.Duration
	// JobID makes the enqueue idempotent: a pending job with the same ID
	// rejects the duplicate
	JobID string
	// MaxAttempts overrides the default retry budget
	MaxAttempts int
}

// JobOption customizes one enqueue
type JobOption func(*JobConfig)

// WithDelay defers the first run of the job
func WithDelay(d time.Duration) JobOption {
	return func(c *JobConfig) {
		c.Delay = d
	}
}

// WithJobID sets a deterministic job ID for idempotent enqueueing
func WithJobID(id string) JobOption {
	return func(c *JobConfig) {
		c.JobID = id
	}
}

// WithMaxAttempts overrides the retry budget
func WithMaxAttempts(n int) JobOption {
	return func(c *JobConfig) {
		c.MaxAttempts = n
	}
}
