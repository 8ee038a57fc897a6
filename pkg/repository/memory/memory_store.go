package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/everstory-ai/everstory/pkg/domain/model"
)

type memoryRepository struct {
	mu      sync.RWMutex
	entries map[model.UserID]map[model.MemoryID]*model.Memory
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		entries: make(map[model.UserID]map[model.MemoryID]*model.Memory),
	}
}

func copyMemoryEntry(m *model.Memory) *model.Memory {
	copied := *m
	if m.Embedding != nil {
		copied.Embedding = make([]float32, len(m.Embedding))
		copy(copied.Embedding, m.Embedding)
	}
	return &copied
}

func (r *memoryRepository) Create(ctx context.Context, mem *model.Memory) (*model.Memory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[mem.UserID]; !exists {
		r.entries[mem.UserID] = make(map[model.MemoryID]*model.Memory)
	}

	created := copyMemoryEntry(mem)
	if created.ID == "" {
		created.ID = model.NewMemoryID()
	}
	created.IsActive = true
	created.CreatedAt = time.Now().UTC()

	r.entries[mem.UserID][created.ID] = created
	return copyMemoryEntry(created), nil
}

func (r *memoryRepository) ListActiveByUser(ctx context.Context, userID model.UserID, limit int) ([]*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket := r.entries[userID]
	result := make([]*model.Memory, 0, len(bucket))
	for _, m := range bucket {
		if !m.IsActive {
			continue
		}
		result = append(result, copyMemoryEntry(m))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}

	return result, nil
}

func (r *memoryRepository) FindByEmbedding(ctx context.Context, userID model.UserID, embedding []float32, limit int) ([]*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		memory *model.Memory
		score  float64
	}

	var candidates []scored
	for _, m := range r.entries[userID] {
		if !m.IsActive || len(m.Embedding) == 0 {
			continue
		}
		s := cosineSimilarity(embedding, m.Embedding)
		candidates = append(candidates, scored{memory: copyMemoryEntry(m), score: s})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if limit > len(candidates) {
		limit = len(candidates)
	}

	result := make([]*model.Memory, limit)
	for i := 0; i < limit; i++ {
		result[i] = candidates[i].memory
	}

	return result, nil
}

func (r *memoryRepository) Deactivate(ctx context.Context, userID model.UserID, memoryID model.MemoryID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, exists := r.entries[userID]
	if !exists {
		return goerr.Wrap(ErrNotFound, "memory not found", goerr.V("memoryID", memoryID))
	}

	mem, exists := bucket[memoryID]
	if !exists {
		return goerr.Wrap(ErrNotFound, "memory not found", goerr.V("memoryID", memoryID))
	}

	mem.IsActive = false
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}

	return dot / denom
}
