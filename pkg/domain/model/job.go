package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/everstory-ai/everstory/pkg/domain/types"
)

const (
	// JobMaxAttempts is the default retry budget per job
	JobMaxAttempts = 3
	// JobBackoffBase is the base delay of the exponential retry backoff
	JobBackoffBase = 5 * time.Second
)

// NewJobID generates a random job identifier. Callers that need idempotent
// enqueueing pass their own deterministic ID instead.
func NewJobID() string {
	return uuid.New().String()
}

// Job is one unit of durable background work. Completed jobs are pruned,
// failed jobs are retained for operator inspection.
type Job struct {
	ID          string
	Name        types.JobName
	Payload     json.RawMessage
	Attempts    int
	MaxAttempts int
	LastError   string
	NextRunAt   time.Time
	CreatedAt   time.Time
}

// Backoff returns the delay before the given attempt (1-based) is retried:
// exponential over JobBackoffBase, i.e. 5s, 10s, 20s, ...
func (j *Job) Backoff(base time.Duration) time.Duration {
	d := base
	for i := 1; i < j.Attempts; i++ {
		d *= 2
	}
	return d
}

// ExtractMemoriesPayload is the payload of an extract-memories job
type ExtractMemoriesPayload struct {
	CallID CallID `json:"callId"`
	UserID UserID `json:"userId"`
}

// CalculateCallCostPayload is the payload of a calculate-call-cost job
type CalculateCallCostPayload struct {
	CallID      CallID `json:"callId"`
	DurationSec int    `json:"durationSeconds"`
}

// RegenerateChapterPayload is the payload of a regenerate-chapter job
type RegenerateChapterPayload struct {
	UserID    UserID    `json:"userId"`
	ChapterID ChapterID `json:"chapterId"`
	Timestamp time.Time `json:"timestamp"`
}
