package model

import (
	"time"

	"github.com/everstory-ai/everstory/pkg/domain/types"
)

// SessionTTL bounds the lifetime of a call session in the TTL store. Every
// successful mutation refreshes it. Expiry is a failure mode, not a normal
// path: sessions are deleted explicitly on call end.
const SessionTTL = time.Hour

// SessionKeyPrefix is prepended to the call SID to form the store key
const SessionKeyPrefix = "call_session:"

// SessionKey returns the TTL store key for a call SID
func SessionKey(callSID string) string {
	return SessionKeyPrefix + callSID
}

// CallSession is the ephemeral per-call state. At most one live session
// exists per CallSID. It is JSON-serialized into the TTL store and survives
// across webhook round-trips until call end or expiry.
type CallSession struct {
	CallSID       string            `json:"call_sid"`
	CallID        CallID            `json:"call_id"`
	UserID        UserID            `json:"user_id,omitempty"`
	State         types.CallState   `json:"state"`
	CallerPhone   string            `json:"caller_phone"`
	PreferredName string            `json:"preferred_name,omitempty"`
	MessageCount  int               `json:"message_count"`
	Context       map[string]string `json:"context,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Clone returns a deep copy so callers cannot mutate stored state
func (s *CallSession) Clone() *CallSession {
	copied := *s
	if s.Context != nil {
		copied.Context = make(map[string]string, len(s.Context))
		for k, v := range s.Context {
			copied.Context[k] = v
		}
	}
	return &copied
}

// SessionOption customizes a session at creation time
type SessionOption func(*CallSession)

// WithSessionUser links the session to a known user
func WithSessionUser(userID UserID) SessionOption {
	return func(s *CallSession) {
		s.UserID = userID
	}
}

// WithSessionState sets the initial conversation state
func WithSessionState(state types.CallState) SessionOption {
	return func(s *CallSession) {
		s.State = state
	}
}

// WithSessionCall links the session to its durable call record
func WithSessionCall(callID CallID) SessionOption {
	return func(s *CallSession) {
		s.CallID = callID
	}
}

// WithSessionName sets the caller's preferred name
func WithSessionName(name string) SessionOption {
	return func(s *CallSession) {
		s.PreferredName = name
	}
}
