package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/everstory-ai/everstory/pkg/domain/model"
)

type storyRepository struct {
	mu      sync.RWMutex
	stories map[model.UserID]map[model.StoryID]*model.ChapterStory
}

func newStoryRepository() *storyRepository {
	return &storyRepository{
		stories: make(map[model.UserID]map[model.StoryID]*model.ChapterStory),
	}
}

func copyStory(s *model.ChapterStory) *model.ChapterStory {
	copied := *s
	return &copied
}

func (r *storyRepository) Create(ctx context.Context, story *model.ChapterStory) (*model.ChapterStory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stories[story.UserID]; !exists {
		r.stories[story.UserID] = make(map[model.StoryID]*model.ChapterStory)
	}

	created := copyStory(story)
	if created.ID == "" {
		created.ID = model.NewStoryID()
	}
	created.IsActive = true
	created.CreatedAt = time.Now().UTC()

	r.stories[story.UserID][created.ID] = created
	return copyStory(created), nil
}

func (r *storyRepository) ListActiveByUser(ctx context.Context, userID model.UserID) ([]*model.ChapterStory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket := r.stories[userID]
	result := make([]*model.ChapterStory, 0, len(bucket))
	for _, s := range bucket {
		if !s.IsActive {
			continue
		}
		result = append(result, copyStory(s))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

func (r *storyRepository) ListByChapter(ctx context.Context, chapterID model.ChapterID) ([]*model.ChapterStory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.ChapterStory
	for _, bucket := range r.stories {
		for _, s := range bucket {
			if s.IsActive && s.ChapterID == chapterID {
				result = append(result, copyStory(s))
			}
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

func (r *storyRepository) Deactivate(ctx context.Context, userID model.UserID, storyID model.StoryID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, exists := r.stories[userID]
	if !exists {
		return goerr.Wrap(ErrNotFound, "story not found", goerr.V("storyID", storyID))
	}

	story, exists := bucket[storyID]
	if !exists {
		return goerr.Wrap(ErrNotFound, "story not found", goerr.V("storyID", storyID))
	}

	story.IsActive = false
	return nil
}
