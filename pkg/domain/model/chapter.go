package model

import (
	"time"

	"github.com/google/uuid"
)

// ChapterID is a UUID-based identifier for Chapter
type ChapterID string

// NewChapterID generates a new UUID v4 ChapterID
func NewChapterID() ChapterID {
	return ChapterID(uuid.New().String())
}

// Chapter groups stories into a section of the user's memoir
type Chapter struct {
	ID         ChapterID
	UserID     UserID
	Title      string
	Summary    string
	OrderIndex int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
