package types

import "fmt"

// CallState represents the conversation phase of a live call session
type CallState string

const (
	// CallStateIdentifying is the initial phase before the caller is resolved
	CallStateIdentifying CallState = "identifying"
	// CallStateOnboarding collects the caller's name on their first calls
	CallStateOnboarding CallState = "onboarding"
	// CallStateActive is the normal conversation phase
	CallStateActive CallState = "active"
	// CallStateEnding means the next response ends the call
	CallStateEnding CallState = "ending"
)

// AllCallStates returns all valid call states
func AllCallStates() []CallState {
	return []CallState{
		CallStateIdentifying,
		CallStateOnboarding,
		CallStateActive,
		CallStateEnding,
	}
}

// IsValid checks if the call state is valid
func (s CallState) IsValid() bool {
	switch s {
	case CallStateIdentifying,
		CallStateOnboarding,
		CallStateActive,
		CallStateEnding:
		return true
	default:
		return false
	}
}

// String returns the string representation of the call state
func (s CallState) String() string {
	return string(s)
}

// ParseCallState parses a string into a CallState
func ParseCallState(s string) (CallState, error) {
	state := CallState(s)
	if !state.IsValid() {
		return "", fmt.Errorf("invalid call state: %s", s)
	}
	return state, nil
}
