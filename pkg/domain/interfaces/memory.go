package interfaces

import (
	"context"

	"github.com/everstory-ai/everstory/pkg/domain/model"
)

// MemoryRepository defines the interface for Memory data persistence
type MemoryRepository interface {
	// Create creates a new memory entry
	Create(ctx context.Context, mem *model.Memory) (*model.Memory, error)

	// ListActiveByUser retrieves up to limit active memories of a user,
	// newest first. limit <= 0 means no limit.
	ListActiveByUser(ctx context.Context, userID model.UserID, limit int) ([]*model.Memory, error)

	// FindByEmbedding performs vector similarity search over the user's
	// active memories using cosine distance
	FindByEmbedding(ctx context.Context, userID model.UserID, embedding []float32, limit int) ([]*model.Memory, error)

	// Deactivate soft-deletes a memory entry
	Deactivate(ctx context.Context, userID model.UserID, memoryID model.MemoryID) error
}
