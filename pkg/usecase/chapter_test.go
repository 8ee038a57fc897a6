package usecase_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"

	"github.com/everstory-ai/everstory/pkg/domain/model"
	"github.com/everstory-ai/everstory/pkg/domain/types"
)

func TestRegenerateChapter(t *testing.T) {
	ctx := context.Background()

	t.Run("summary is composed from the chapter's stories", func(t *testing.T) {
		llm := &mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return &mockLLMSession{
					generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
						return &gollem.Response{Texts: []string{"A childhood spent outdoors, full of treehouses and scraped knees."}}, nil
					},
				}, nil
			},
		}
		uc, repo, _, _ := newTestUseCases(llm)

		_, err := repo.Chapter().Create(ctx, &model.Chapter{
			ID:     "ch-40",
			UserID: "user-40",
			Title:  "Childhood",
		})
		gt.NoError(t, err).Required()

		_, err = repo.Story().Create(ctx, &model.ChapterStory{
			ID:        model.NewStoryID(),
			ChapterID: "ch-40",
			UserID:    "user-40",
			Title:     "The Treehouse",
			Content:   "My brother and I built a treehouse the summer I turned nine.",
			Source:    types.StorySourceCall,
			IsActive:  true,
		})
		gt.NoError(t, err).Required()

		gt.NoError(t, uc.RegenerateChapter(ctx, "user-40", "ch-40"))

		chapter, err := repo.Chapter().Get(ctx, "ch-40")
		gt.NoError(t, err).Required()
		gt.Value(t, chapter.Summary).Equal("A childhood spent outdoors, full of treehouses and scraped knees.")
	})

	t.Run("empty chapter is skipped", func(t *testing.T) {
		uc, repo, _, _ := newTestUseCases(&mockLLMClient{})

		_, err := repo.Chapter().Create(ctx, &model.Chapter{
			ID:     "ch-41",
			UserID: "user-41",
			Title:  "Untold",
		})
		gt.NoError(t, err).Required()

		gt.NoError(t, uc.RegenerateChapter(ctx, "user-41", "ch-41"))

		chapter, err := repo.Chapter().Get(ctx, "ch-41")
		gt.NoError(t, err).Required()
		gt.Value(t, chapter.Summary).Equal("")
	})

	t.Run("foreign chapter is rejected", func(t *testing.T) {
		uc, repo, _, _ := newTestUseCases(&mockLLMClient{})

		_, err := repo.Chapter().Create(ctx, &model.Chapter{
			ID:     "ch-42",
			UserID: "user-42",
			Title:  "Private",
		})
		gt.NoError(t, err).Required()

		gt.Error(t, uc.RegenerateChapter(ctx, "user-other", "ch-42"))
	})

	t.Run("missing chapter is an error", func(t *testing.T) {
		uc, _, _, _ := newTestUseCases(&mockLLMClient{})
		gt.Error(t, uc.RegenerateChapter(ctx, "user-43", "ch-missing"))
	})
}
