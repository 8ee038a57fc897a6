package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/everstory-ai/everstory/pkg/domain/types"
)

// StoryID is a UUID-based identifier for ChapterStory
type StoryID string

// NewStoryID generates a new UUID v4 StoryID
func NewStoryID() StoryID {
	return StoryID(uuid.New().String())
}

// ChapterStory is a narrative passage assigned to a memoir chapter.
// ContentHash is the dedup fingerprint computed over normalized content.
type ChapterStory struct {
	ID          StoryID
	ChapterID   ChapterID
	UserID      UserID
	Title       string
	Content     string
	Summary     string
	TimePeriod  string
	ContentHash string
	Source      types.StorySource
	SourceID    string // call or chat session that produced it
	IsActive    bool
	CreatedAt   time.Time
}
