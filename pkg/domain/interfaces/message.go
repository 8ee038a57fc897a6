package interfaces

import (
	"context"

	"github.com/everstory-ai/everstory/pkg/domain/model"
)

// MessageRepository defines the interface for ConversationMessage persistence.
// Messages are append-only.
type MessageRepository interface {
	// Append stores a new message
	Append(ctx context.Context, msg *model.ConversationMessage) (*model.ConversationMessage, error)

	// ListByCall retrieves all messages of a call ordered by TimestampMS
	ListByCall(ctx context.Context, callID model.CallID) ([]*model.ConversationMessage, error)

	// CountByCall returns the number of messages stored for a call
	CountByCall(ctx context.Context, callID model.CallID) (int, error)
}
