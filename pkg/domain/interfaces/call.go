package interfaces

import (
	"context"

	"github.com/everstory-ai/everstory/pkg/domain/model"
)

// CallRepository defines the interface for Call data persistence
type CallRepository interface {
	// Create creates a new call record
	Create(ctx context.Context, call *model.Call) (*model.Call, error)

	// Get retrieves a call by ID
	Get(ctx context.Context, id model.CallID) (*model.Call, error)

	// GetByCallSID retrieves a call by the telephony provider's call SID
	GetByCallSID(ctx context.Context, callSID string) (*model.Call, error)

	// GetByConversationID retrieves a call by the voice-AI provider's
	// conversation identifier stored at initiation time
	GetByConversationID(ctx context.Context, conversationID string) (*model.Call, error)

	// Update persists changed fields of an existing call
	Update(ctx context.Context, call *model.Call) error
}
