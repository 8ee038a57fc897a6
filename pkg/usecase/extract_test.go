package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"

	"github.com/everstory-ai/everstory/pkg/domain/model"
	"github.com/everstory-ai/everstory/pkg/domain/types"
	"github.com/everstory-ai/everstory/pkg/repository/memory"
	"github.com/everstory-ai/everstory/pkg/usecase"
)

func seedTranscript(t *testing.T, repo *memory.Memory, callID model.CallID, lines ...string) {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC()
	for i, line := range lines {
		role := types.MessageRoleUser
		if i%2 == 1 {
			role = types.MessageRoleAssistant
		}
		_, err := repo.Message().Append(ctx, &model.ConversationMessage{
			ID:          model.NewMessageID(),
			CallID:      callID,
			Role:        role,
			Content:     line,
			TimestampMS: model.MessageTimestamp(now, i),
			CreatedAt:   now,
		})
		gt.NoError(t, err).Required()
	}
}

const noStoryJSON = `{"has_story": false, "title": "", "content": "", "summary": "", "time_period": ""}`

func TestExtractMemories(t *testing.T) {
	ctx := context.Background()

	t.Run("short transcript is skipped", func(t *testing.T) {
		uc, repo, _, _ := newTestUseCases(&mockLLMClient{})

		seedTranscript(t, repo, "call-10", "Hello?")

		gt.NoError(t, uc.ExtractMemories(ctx, "call-10", "user-10"))

		memories, err := repo.Memory().ListActiveByUser(ctx, "user-10", 0)
		gt.NoError(t, err)
		gt.Array(t, memories).Length(0)
	})

	t.Run("memories are stored with normalized fields", func(t *testing.T) {
		llm := &sequencedLLMClient{
			sessions: []gollem.Session{
				jsonSession(`{"memories": [
					{"content": "Grew up on a farm in Ohio.", "category": "fact", "importance": 0.8},
					{"content": "Wants to be called in the mornings.", "category": "scheduling", "importance": 1.7}
				]}`),
				jsonSession(noStoryJSON),
			},
		}
		uc, repo, _, _ := newTestUseCases(llm)

		seedTranscript(t, repo, "call-11",
			"I grew up on a farm in Ohio.",
			"What was that like?",
			"Oh, and please call me in the mornings.",
		)

		gt.NoError(t, uc.ExtractMemories(ctx, "call-11", "user-11"))

		memories, err := repo.Memory().ListActiveByUser(ctx, "user-11", 0)
		gt.NoError(t, err).Required()
		gt.Array(t, memories).Length(2).Required()

		byContent := make(map[string]*model.Memory)
		for _, mem := range memories {
			byContent[mem.Content] = mem
			gt.Bool(t, mem.IsActive).True()
			gt.Array(t, mem.Embedding).Length(model.EmbeddingDimension)
		}

		farm := byContent["Grew up on a farm in Ohio."]
		gt.Value(t, farm.Category).Equal(types.MemoryCategoryFact)
		gt.Number(t, farm.Importance).Equal(0.8)

		// Invented category collapses to other, importance clamps to [0,1]
		morning := byContent["Wants to be called in the mornings."]
		gt.Value(t, morning.Category).Equal(types.MemoryCategoryOther)
		gt.Number(t, morning.Importance).Equal(1.0)
	})

	t.Run("empty extraction stores nothing", func(t *testing.T) {
		llm := &sequencedLLMClient{
			sessions: []gollem.Session{jsonSession(`{"memories": []}`)},
		}
		uc, repo, _, _ := newTestUseCases(llm)

		seedTranscript(t, repo, "call-12", "Nice weather today.", "It certainly is!")

		gt.NoError(t, uc.ExtractMemories(ctx, "call-12", "user-12"))

		memories, err := repo.Memory().ListActiveByUser(ctx, "user-12", 0)
		gt.NoError(t, err)
		gt.Array(t, memories).Length(0)
	})

	t.Run("a told story becomes a chapter story", func(t *testing.T) {
		llm := &sequencedLLMClient{
			sessions: []gollem.Session{
				jsonSession(`{"memories": [{"content": "Drove a red pickup as a teenager.", "category": "fact", "importance": 0.6}]}`),
				jsonSession(`{"has_story": true, "title": "The Red Pickup", "content": "I still remember the day my father handed me the keys to his red pickup.", "summary": "Learning to drive in dad's truck.", "time_period": "teenage years"}`),
			},
		}
		uc, repo, _, _ := newTestUseCases(llm)

		seedTranscript(t, repo, "call-13",
			"Let me tell you about my first truck.",
			"I'd love to hear it.",
			"My father handed me the keys to his red pickup when I was sixteen.",
		)

		gt.NoError(t, uc.ExtractMemories(ctx, "call-13", "user-13"))

		stories, err := repo.Story().ListActiveByUser(ctx, "user-13")
		gt.NoError(t, err).Required()
		gt.Array(t, stories).Length(1).Required()

		story := stories[0]
		gt.Value(t, story.Title).Equal("The Red Pickup")
		gt.Value(t, story.Source).Equal(types.StorySourceCall)
		gt.Value(t, story.SourceID).Equal("call-13")
		gt.String(t, story.ContentHash).NotEqual("")

		// First story auto-creates a starter chapter
		chapters, err := repo.Chapter().ListByUser(ctx, "user-13")
		gt.NoError(t, err).Required()
		gt.Array(t, chapters).Length(1).Required()
		gt.Value(t, story.ChapterID).Equal(chapters[0].ID)
	})

	t.Run("duplicate story is logged, not a failure", func(t *testing.T) {
		const retelling = "I still remember the day my father handed me the keys."

		llm := &sequencedLLMClient{
			sessions: []gollem.Session{
				jsonSession(`{"memories": [{"content": "Loves trucks.", "category": "preference", "importance": 0.4}]}`),
				jsonSession(`{"has_story": true, "title": "Another Truck Tale", "content": "` + retelling + `", "summary": "", "time_period": ""}`),
			},
		}
		uc, repo, _, _ := newTestUseCases(llm)

		// The same content was already stored from an earlier call
		_, err := uc.SubmitStory(ctx, &usecase.StoryInput{
			UserID:  "user-14",
			Title:   "Keys to the Pickup",
			Content: retelling,
			Source:  types.StorySourceChat,
		})
		gt.NoError(t, err).Required()

		seedTranscript(t, repo, "call-14", "About that truck again.", "Go on!")

		gt.NoError(t, uc.ExtractMemories(ctx, "call-14", "user-14"))

		stories, err := repo.Story().ListActiveByUser(ctx, "user-14")
		gt.NoError(t, err).Required()
		gt.Array(t, stories).Length(1)
	})
}
