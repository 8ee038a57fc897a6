package usecase_test

import (
	"context"
	"sync"

	"github.com/m-mizutani/gollem"

	"github.com/everstory-ai/everstory/pkg/domain/interfaces"
	"github.com/everstory-ai/everstory/pkg/domain/types"
)

// mockLLMSession is a mock gollem Session for testing
type mockLLMSession struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	if s.generateContentFn != nil {
		return s.generateContentFn(ctx, input...)
	}
	return &gollem.Response{
		Texts: []string{"That sounds like a wonderful memory. Tell me more?"},
	}, nil
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

// mockLLMClient is a mock gollem LLMClient for testing
type mockLLMClient struct {
	newSessionFn        func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error)
	generateEmbeddingFn func(ctx context.Context, dimension int, input []string) ([][]float64, error)
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	if c.newSessionFn != nil {
		return c.newSessionFn(ctx, options...)
	}
	return &mockLLMSession{}, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	if c.generateEmbeddingFn != nil {
		return c.generateEmbeddingFn(ctx, dimension, input)
	}
	embeddings := make([][]float64, len(input))
	for i := range input {
		embeddings[i] = make([]float64, dimension)
	}
	return embeddings, nil
}

// sequencedLLMClient hands out one canned session per NewSession call, in
// order. The last session is reused when the sequence runs out.
type sequencedLLMClient struct {
	mockLLMClient
	mu       sync.Mutex
	sessions []gollem.Session
	calls    int
}

func (c *sequencedLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.calls
	c.calls++
	if idx >= len(c.sessions) {
		idx = len(c.sessions) - 1
	}
	return c.sessions[idx], nil
}

func jsonSession(text string) *mockLLMSession {
	return &mockLLMSession{
		generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
			return &gollem.Response{Texts: []string{text}}, nil
		},
	}
}

// inputText flattens gollem text inputs so mocks can branch on prompt content
func inputText(input ...gollem.Input) string {
	var out string
	for _, in := range input {
		if text, ok := in.(gollem.Text); ok {
			out += string(text)
		}
	}
	return out
}

type enqueuedJob struct {
	Name    types.JobName
	JobID   string
	Payload any
}

// recordingQueue is a mock job queue that records enqueues without running
// anything
type recordingQueue struct {
	mu   sync.Mutex
	jobs []enqueuedJob
}

func (q *recordingQueue) Add(ctx context.Context, name types.JobName, payload any, opts ...interfaces.JobOption) error {
	cfg := &interfaces.JobConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, enqueuedJob{Name: name, JobID: cfg.JobID, Payload: payload})
	return nil
}

func (q *recordingQueue) Jobs() []enqueuedJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	result := make([]enqueuedJob, len(q.jobs))
	copy(result, q.jobs)
	return result
}

func (q *recordingQueue) JobsNamed(name types.JobName) []enqueuedJob {
	var result []enqueuedJob
	for _, job := range q.Jobs() {
		if job.Name == name {
			result = append(result, job)
		}
	}
	return result
}
