package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"

	"github.com/everstory-ai/everstory/pkg/domain/model"
	"github.com/everstory-ai/everstory/pkg/utils/logging"
)

// RegenerateChapter recomposes a chapter's summary from its active stories
func (uc *UseCases) RegenerateChapter(ctx context.Context, userID model.UserID, chapterID model.ChapterID) error {
	logger := logging.From(ctx)

	chapter, err := uc.repo.Chapter().Get(ctx, chapterID)
	if err != nil {
		return goerr.Wrap(err, "failed to load chapter", goerr.V("chapterID", chapterID))
	}
	if chapter.UserID != userID {
		return goerr.New("chapter does not belong to user",
			goerr.V("chapterID", chapterID),
			goerr.V("userID", userID),
		)
	}

	stories, err := uc.repo.Story().ListByChapter(ctx, chapterID)
	if err != nil {
		return goerr.Wrap(err, "failed to load chapter stories", goerr.V("chapterID", chapterID))
	}
	if len(stories) == 0 {
		logger.Info("chapter has no stories, skipping regeneration", "chapter_id", chapterID)
		return nil
	}

	llmSession, err := uc.llm.NewSession(ctx,
		gollem.WithSessionSystemPrompt("You summarize a memoir chapter in two or three warm sentences, written in the third person about the author's life."),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to create summary session")
	}

	var sb strings.Builder
	sb.WriteString("## Chapter: ")
	sb.WriteString(chapter.Title)
	sb.WriteString("\n\n")
	for _, story := range stories {
		sb.WriteString("### ")
		sb.WriteString(story.Title)
		sb.WriteString("\n")
		if story.Summary != "" {
			sb.WriteString(story.Summary)
		} else {
			sb.WriteString(story.Content)
		}
		sb.WriteString("\n\n")
	}

	resp, err := llmSession.GenerateContent(ctx, gollem.Text(sb.String()))
	if err != nil {
		return goerr.Wrap(err, "failed to summarize chapter", goerr.V("chapterID", chapterID))
	}
	if len(resp.Texts) == 0 || strings.TrimSpace(resp.Texts[0]) == "" {
		return goerr.New("empty chapter summary", goerr.V("chapterID", chapterID))
	}

	chapter.Summary = strings.TrimSpace(resp.Texts[0])
	chapter.UpdatedAt = time.Now().UTC()
	if err := uc.repo.Chapter().Update(ctx, chapter); err != nil {
		return goerr.Wrap(err, "failed to persist chapter summary", goerr.V("chapterID", chapterID))
	}

	logger.Info("chapter summary regenerated", "chapter_id", chapterID, "stories", len(stories))
	return nil
}
