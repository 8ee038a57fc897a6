package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/everstory-ai/everstory/pkg/domain/types"
)

// CallID is a UUID-based identifier for Call
type CallID string

// NewCallID generates a new UUID v4 CallID
func NewCallID() CallID {
	return CallID(uuid.New().String())
}

// Call is the durable record of a phone call. It is created at call start,
// updated on every provider status transition, and never deleted. Two
// independent webhook providers write to it: the telephony provider (keyed by
// CallSID) and the conversational-voice provider (keyed by ConversationID).
type Call struct {
	ID             CallID
	UserID         UserID // empty until the caller is identified
	CallSID        string
	ConversationID string // voice-AI provider's conversation identifier
	CallerPhone    string
	Direction      types.CallDirection
	Status         string // free-form provider status string
	DurationSec    int
	CostCents      int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
