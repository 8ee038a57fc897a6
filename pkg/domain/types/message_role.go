package types

import "fmt"

// MessageRole represents the author of a conversation message
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// IsValid checks if the message role is valid
func (r MessageRole) IsValid() bool {
	switch r {
	case MessageRoleUser, MessageRoleAssistant, MessageRoleSystem:
		return true
	default:
		return false
	}
}

// String returns the string representation of the message role
func (r MessageRole) String() string {
	return string(r)
}

// ParseMessageRole parses a string into a MessageRole. The voice-AI provider
// reports the assistant side as "agent", which is accepted as an alias.
func ParseMessageRole(s string) (MessageRole, error) {
	if s == "agent" {
		return MessageRoleAssistant, nil
	}
	r := MessageRole(s)
	if !r.IsValid() {
		return "", fmt.Errorf("invalid message role: %s", s)
	}
	return r, nil
}
