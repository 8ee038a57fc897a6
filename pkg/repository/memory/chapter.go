package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/everstory-ai/everstory/pkg/domain/model"
)

type chapterRepository struct {
	mu       sync.RWMutex
	chapters map[model.ChapterID]*model.Chapter
}

func newChapterRepository() *chapterRepository {
	return &chapterRepository{
		chapters: make(map[model.ChapterID]*model.Chapter),
	}
}

func copyChapter(c *model.Chapter) *model.Chapter {
	copied := *c
	return &copied
}

func (r *chapterRepository) Create(ctx context.Context, chapter *model.Chapter) (*model.Chapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := copyChapter(chapter)
	if created.ID == "" {
		created.ID = model.NewChapterID()
	}
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	r.chapters[created.ID] = created
	return copyChapter(created), nil
}

func (r *chapterRepository) Get(ctx context.Context, id model.ChapterID) (*model.Chapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chapter, exists := r.chapters[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "chapter not found", goerr.V("chapterID", id))
	}
	return copyChapter(chapter), nil
}

func (r *chapterRepository) ListByUser(ctx context.Context, userID model.UserID) ([]*model.Chapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.Chapter
	for _, c := range r.chapters {
		if c.UserID == userID {
			result = append(result, copyChapter(c))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OrderIndex < result[j].OrderIndex
	})

	return result, nil
}

func (r *chapterRepository) Update(ctx context.Context, chapter *model.Chapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.chapters[chapter.ID]
	if !exists {
		return goerr.Wrap(ErrNotFound, "chapter not found", goerr.V("chapterID", chapter.ID))
	}

	updated := copyChapter(chapter)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	r.chapters[chapter.ID] = updated
	return nil
}
