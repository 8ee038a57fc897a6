package interfaces

import (
	"context"

	"github.com/everstory-ai/everstory/pkg/domain/model"
)

// UserRepository defines the interface for User profile persistence
type UserRepository interface {
	// Create creates a new user profile
	Create(ctx context.Context, user *model.User) (*model.User, error)

	// Get retrieves a user by ID
	Get(ctx context.Context, id model.UserID) (*model.User, error)

	// GetByPhone retrieves a user by phone number
	GetByPhone(ctx context.Context, phone string) (*model.User, error)

	// Update persists changed fields of an existing user
	Update(ctx context.Context, user *model.User) error
}
