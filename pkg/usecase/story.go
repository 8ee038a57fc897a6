package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"

	"github.com/everstory-ai/everstory/pkg/domain/model"
	"github.com/everstory-ai/everstory/pkg/domain/types"
	"github.com/everstory-ai/everstory/pkg/service/dedup"
	"github.com/everstory-ai/everstory/pkg/utils/logging"
)

// ErrDuplicateStory is returned when a submitted story is rejected as a
// likely retelling of an existing one. The wrapping message carries the
// rejection reason.
var ErrDuplicateStory = errors.New("duplicate story")

// minTitleLenForCheck is the shortest title subject to the word-overlap check
const minTitleLenForCheck = 5

// fallbackChapterTitle is created when a user has no chapters yet
const fallbackChapterTitle = "Early Stories"

// StoryInput is a candidate memoir passage before deduplication
type StoryInput struct {
	UserID     model.UserID
	ChapterID  model.ChapterID // empty means auto-assign
	Title      string
	Content    string
	Summary    string
	TimePeriod string
	Source     types.StorySource
	SourceID   string
}

// SubmitStory runs a candidate story through content-hash and title-overlap
// deduplication and, when accepted, inserts it into a chapter (auto-assigned
// when unspecified).
func (uc *UseCases) SubmitStory(ctx context.Context, input *StoryInput) (*model.ChapterStory, error) {
	if input.UserID == "" {
		return nil, goerr.New("story requires a user")
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, goerr.New("story requires content")
	}

	existing, err := uc.repo.Story().ListActiveByUser(ctx, input.UserID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load existing stories", goerr.V("userID", input.UserID))
	}

	hash := dedup.ContentHash(input.Content)
	for _, story := range existing {
		if story.ContentHash == hash {
			return nil, goerr.Wrap(ErrDuplicateStory,
				fmt.Sprintf("content matches existing story %q", story.Title),
				goerr.V("storyID", story.ID),
			)
		}
	}

	if len(input.Title) > minTitleLenForCheck {
		words := dedup.SignificantWords(input.Title)
		for _, story := range existing {
			if dedup.TitlesConflict(words, story.Title) {
				return nil, goerr.Wrap(ErrDuplicateStory,
					fmt.Sprintf("title overlaps existing story %q", story.Title),
					goerr.V("storyID", story.ID),
				)
			}
		}
	}

	chapterID := input.ChapterID
	if chapterID == "" {
		chapterID, err = uc.assignChapter(ctx, input.UserID, input.Title, input.Summary)
		if err != nil {
			return nil, err
		}
	}

	story := &model.ChapterStory{
		ID:          model.NewStoryID(),
		ChapterID:   chapterID,
		UserID:      input.UserID,
		Title:       input.Title,
		Content:     input.Content,
		Summary:     input.Summary,
		TimePeriod:  input.TimePeriod,
		ContentHash: hash,
		Source:      input.Source,
		SourceID:    input.SourceID,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := uc.repo.Story().Create(ctx, story); err != nil {
		return nil, goerr.Wrap(err, "failed to store story", goerr.V("userID", input.UserID))
	}

	logging.From(ctx).Info("story accepted",
		"story_id", story.ID,
		"chapter_id", chapterID,
		"user_id", input.UserID,
		"source", input.Source,
	)
	return story, nil
}

// assignChapter picks the best existing chapter for the story via the LLM,
// falling back to the most recent chapter when the choice is unusable and
// creating a starter chapter when the user has none.
func (uc *UseCases) assignChapter(ctx context.Context, userID model.UserID, title, summary string) (model.ChapterID, error) {
	logger := logging.From(ctx)

	chapters, err := uc.repo.Chapter().ListByUser(ctx, userID)
	if err != nil {
		return "", goerr.Wrap(err, "failed to load chapters", goerr.V("userID", userID))
	}

	if len(chapters) == 0 {
		now := time.Now().UTC()
		chapter := &model.Chapter{
			ID:        model.NewChapterID(),
			UserID:    userID,
			Title:     fallbackChapterTitle,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := uc.repo.Chapter().Create(ctx, chapter); err != nil {
			return "", goerr.Wrap(err, "failed to create starter chapter", goerr.V("userID", userID))
		}
		logger.Info("starter chapter created", "user_id", userID, "chapter_id", chapter.ID)
		return chapter.ID, nil
	}

	if len(chapters) == 1 {
		return chapters[0].ID, nil
	}

	chosen, err := uc.chooseChapter(ctx, chapters, title, summary)
	if err != nil {
		logger.Warn("chapter choice failed, using most recent", "user_id", userID, "error", err)
		return chapters[len(chapters)-1].ID, nil
	}
	return chosen, nil
}

type chapterChoice struct {
	ChapterID string `json:"chapter_id"`
}

func (uc *UseCases) chooseChapter(ctx context.Context, chapters []*model.Chapter, title, summary string) (model.ChapterID, error) {
	llmSession, err := uc.llm.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(chapterChoiceSchema()),
		gollem.WithSessionSystemPrompt("You assign a memoir story to the chapter it fits best, judging by chapter titles and summaries. Respond with the chosen chapter's id."),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create chapter choice session")
	}

	var sb strings.Builder
	sb.WriteString("## Chapters:\n\n")
	for _, ch := range chapters {
		sb.WriteString(fmt.Sprintf("- id: %s, title: %s", ch.ID, ch.Title))
		if ch.Summary != "" {
			sb.WriteString(", summary: ")
			sb.WriteString(ch.Summary)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n## Story:\n\n")
	sb.WriteString("title: ")
	sb.WriteString(title)
	if summary != "" {
		sb.WriteString("\nsummary: ")
		sb.WriteString(summary)
	}

	resp, err := llmSession.GenerateContent(ctx, gollem.Text(sb.String()))
	if err != nil {
		return "", goerr.Wrap(err, "failed to choose chapter")
	}
	if len(resp.Texts) == 0 {
		return "", goerr.New("empty chapter choice response")
	}

	var choice chapterChoice
	if err := json.Unmarshal([]byte(resp.Texts[0]), &choice); err != nil {
		return "", goerr.Wrap(err, "failed to parse chapter choice", goerr.V("response", resp.Texts[0]))
	}

	for _, ch := range chapters {
		if string(ch.ID) == choice.ChapterID {
			return ch.ID, nil
		}
	}
	return "", goerr.New("chapter choice not among user's chapters", goerr.V("chapterID", choice.ChapterID))
}

func chapterChoiceSchema() *gollem.Parameter {
	return &gollem.Parameter{
		Title:       "ChapterChoiceResponse",
		Description: "The chapter the story belongs in",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"chapter_id": {
				Type:        gollem.TypeString,
				Description: "The id of the chosen chapter",
			},
		},
		Required: []string{"chapter_id"},
	}
}
