package interfaces

import (
	"context"

	"github.com/everstory-ai/everstory/pkg/domain/model"
)

// SessionStore manages ephemeral per-call state in a TTL-expiring key/value
// store. All mutations are read-modify-write and refresh the TTL on every
// successful write. A missing key (never created, deleted, or expired) is
// reported as session.ErrSessionNotFound, never a panic: callers must treat
// it as "conversation lost" and degrade gracefully.
type SessionStore interface {
	// Create stores a fresh session for the call SID
	Create(ctx context.Context, callSID, callerPhone string, opts ...model.SessionOption) (*model.CallSession, error)

	// Get retrieves the live session for the call SID
	Get(ctx context.Context, callSID string) (*model.CallSession, error)

	// Update applies mutate to the stored session and writes it back
	Update(ctx context.Context, callSID string, mutate func(*model.CallSession)) (*model.CallSession, error)

	// Delete removes the session. Deleting a missing session is an error so
	// callers can use it as an idempotency gate.
	Delete(ctx context.Context, callSID string) error

	// Extend refreshes the TTL without changing session data
	Extend(ctx context.Context, callSID string) error

	// SetContext stores a transient per-call flag
	SetContext(ctx context.Context, callSID, key, value string) error

	// GetContext reads a transient per-call flag; missing keys return ""
	GetContext(ctx context.Context, callSID, key string) (string, error)
}
