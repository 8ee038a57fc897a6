package types

import "fmt"

// StorySource represents where a chapter story originated
type StorySource string

const (
	StorySourceChat   StorySource = "chat"
	StorySourceCall   StorySource = "call"
	StorySourceManual StorySource = "manual"
	StorySourceGuest  StorySource = "guest"
)

// IsValid checks if the story source is valid
func (s StorySource) IsValid() bool {
	switch s {
	case StorySourceChat, StorySourceCall, StorySourceManual, StorySourceGuest:
		return true
	default:
		return false
	}
}

// String returns the string representation of the story source
func (s StorySource) String() string {
	return string(s)
}

// ParseStorySource parses a string into a StorySource
func ParseStorySource(s string) (StorySource, error) {
	src := StorySource(s)
	if !src.IsValid() {
		return "", fmt.Errorf("invalid story source: %s", s)
	}
	return src, nil
}
