package model

import (
	"time"

	"github.com/google/uuid"
)

// UserID is a UUID-based identifier for User
type UserID string

// NewUserID generates a new UUID v4 UserID
func NewUserID() UserID {
	return UserID(uuid.New().String())
}

// User is the profile row this core reads and writes. Full account
// management lives elsewhere; the orchestrator only needs identification by
// phone, onboarding completion and the call balance.
type User struct {
	ID            UserID
	PreferredName string
	Phone         string
	Onboarded     bool
	BalanceCents  int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
