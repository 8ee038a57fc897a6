package interfaces

import (
	"context"

	"github.com/everstory-ai/everstory/pkg/domain/model"
)

// StoryRepository defines the interface for ChapterStory persistence
type StoryRepository interface {
	// Create stores a new story
	Create(ctx context.Context, story *model.ChapterStory) (*model.ChapterStory, error)

	// ListActiveByUser retrieves all active stories of a user, newest first
	ListActiveByUser(ctx context.Context, userID model.UserID) ([]*model.ChapterStory, error)

	// ListByChapter retrieves all active stories of a chapter, oldest first
	ListByChapter(ctx context.Context, chapterID model.ChapterID) ([]*model.ChapterStory, error)

	// Deactivate soft-deletes a story
	Deactivate(ctx context.Context, userID model.UserID, storyID model.StoryID) error
}

// ChapterRepository defines the interface for Chapter persistence
type ChapterRepository interface {
	// Create stores a new chapter
	Create(ctx context.Context, chapter *model.Chapter) (*model.Chapter, error)

	// Get retrieves a chapter by ID
	Get(ctx context.Context, id model.ChapterID) (*model.Chapter, error)

	// ListByUser retrieves all chapters of a user ordered by OrderIndex
	ListByUser(ctx context.Context, userID model.UserID) ([]*model.Chapter, error)

	// Update persists changed fields of an existing chapter
	Update(ctx context.Context, chapter *model.Chapter) error
}
