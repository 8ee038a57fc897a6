package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/everstory-ai/everstory/pkg/domain/types"
)

// MessageID is a UUID-based identifier for ConversationMessage
type MessageID string

// NewMessageID generates a new UUID v4 MessageID
func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

// ConversationMessage is one utterance in a call transcript. Append-only.
// TimestampMS orders messages within a call; callers must add a sequence
// offset when several messages share the same wall-clock millisecond.
type ConversationMessage struct {
	ID          MessageID
	CallID      CallID
	Role        types.MessageRole
	Content     string
	AudioURL    string // optional reference to synthesized audio
	TimestampMS int64
	CreatedAt   time.Time
}

// MessageTimestamp builds a collision-free message timestamp from wall-clock
// time and a per-call sequence offset.
func MessageTimestamp(now time.Time, seq int) int64 {
	return now.UnixMilli() + int64(seq)
}
