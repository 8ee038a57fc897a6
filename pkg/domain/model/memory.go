package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/everstory-ai/everstory/pkg/domain/types"
)

// EmbeddingDimension is the vector size used for memory similarity search
const EmbeddingDimension = 768

// MemoryID is a UUID-based identifier for Memory
type MemoryID string

// NewMemoryID generates a new UUID v4 MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// Memory is a deduplicated semantic fact about a user, produced by the
// extraction pipeline or manual entry. Soft-deleted via IsActive, never
// hard-deleted.
type Memory struct {
	ID         MemoryID
	UserID     UserID
	Content    string
	Category   types.MemoryCategory
	Importance float64 // [0,1]
	Embedding  []float32
	IsActive   bool
	CreatedAt  time.Time
}
