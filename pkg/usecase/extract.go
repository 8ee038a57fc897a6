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
	"golang.org/x/sync/errgroup"

	"github.com/everstory-ai/everstory/pkg/domain/model"
	"github.com/everstory-ai/everstory/pkg/domain/types"
	"github.com/everstory-ai/everstory/pkg/utils/logging"
)

const (
	// minExtractionMessages is the smallest transcript worth extracting from
	minExtractionMessages = 2
	// maxDedupMemories bounds the existing-memory context given to the LLM
	maxDedupMemories = 100
	// maxEmbeddingWorkers bounds parallel embedding generation
	maxEmbeddingWorkers = 4
)

type extractedMemory struct {
	Content    string  `json:"content"`
	Category   string  `json:"category"`
	Importance float64 `json:"importance"`
}

type extractionResponse struct {
	Memories []extractedMemory `json:"memories"`
}

// ExtractMemories mines a finished call's transcript for durable facts about
// the user. Re-runs are tolerated but not fully idempotent: the LLM is shown
// existing memories to avoid resubmitting them, which is soft dedup only.
func (uc *UseCases) ExtractMemories(ctx context.Context, callID model.CallID, userID model.UserID) error {
	logger := logging.From(ctx)

	messages, err := uc.repo.Message().ListByCall(ctx, callID)
	if err != nil {
		return goerr.Wrap(err, "failed to load transcript", goerr.V("callID", callID))
	}

	transcript := filterConversational(messages)
	if len(transcript) < minExtractionMessages {
		logger.Info("transcript too short, skipping extraction",
			"call_id", callID,
			"messages", len(transcript),
		)
		return nil
	}

	existing, err := uc.repo.Memory().ListActiveByUser(ctx, userID, maxDedupMemories)
	if err != nil {
		return goerr.Wrap(err, "failed to load existing memories", goerr.V("userID", userID))
	}

	items, err := uc.extractFromTranscript(ctx, transcript, existing)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		logger.Info("no new memories extracted", "call_id", callID)
		return nil
	}

	embeddings, err := uc.embedAll(ctx, items)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for i, item := range items {
		mem := &model.Memory{
			ID:         model.NewMemoryID(),
			UserID:     userID,
			Content:    item.Content,
			Category:   types.MemoryCategory(item.Category).Normalize(),
			Importance: clampImportance(item.Importance),
			Embedding:  embeddings[i],
			IsActive:   true,
			CreatedAt:  now,
		}
		if _, err := uc.repo.Memory().Create(ctx, mem); err != nil {
			return goerr.Wrap(err, "failed to store memory",
				goerr.V("userID", userID),
				goerr.V("content", item.Content),
			)
		}
	}

	logger.Info("memories extracted", "call_id", callID, "user_id", userID, "count", len(items))

	// Story composition is best-effort: the memories above are already
	// written, so a composition failure must not force a job retry that
	// would duplicate them.
	if err := uc.composeCallStory(ctx, callID, userID, transcript); err != nil {
		logger.Warn("story composition failed", "call_id", callID, "error", err)
	}
	return nil
}

func filterConversational(messages []*model.ConversationMessage) []*model.ConversationMessage {
	var out []*model.ConversationMessage
	for _, msg := range messages {
		if msg.Role == types.MessageRoleUser || msg.Role == types.MessageRoleAssistant {
			out = append(out, msg)
		}
	}
	return out
}

func (uc *UseCases) extractFromTranscript(ctx context.Context, transcript []*model.ConversationMessage, existing []*model.Memory) ([]extractedMemory, error) {
	llmSession, err := uc.llm.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(extractionSchema()),
		gollem.WithSessionSystemPrompt(extractionSystemPrompt),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create extraction session")
	}

	resp, err := llmSession.GenerateContent(ctx, gollem.Text(buildExtractionPrompt(transcript, existing)))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to extract memories")
	}
	if len(resp.Texts) == 0 {
		return nil, goerr.New("empty extraction response")
	}

	var parsed extractionResponse
	if err := json.Unmarshal([]byte(resp.Texts[0]), &parsed); err != nil {
		return nil, goerr.Wrap(err, "failed to parse extraction response", goerr.V("response", resp.Texts[0]))
	}

	var items []extractedMemory
	for _, item := range parsed.Memories {
		if strings.TrimSpace(item.Content) == "" {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// embedAll generates embeddings for all extracted items in parallel
func (uc *UseCases) embedAll(ctx context.Context, items []extractedMemory) ([][]float32, error) {
	embeddings := make([][]float32, len(items))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxEmbeddingWorkers)
	for i, item := range items {
		eg.Go(func() error {
			raw, err := uc.llm.GenerateEmbedding(ctx, model.EmbeddingDimension, []string{item.Content})
			if err != nil {
				return goerr.Wrap(err, "failed to generate embedding", goerr.V("content", item.Content))
			}
			if len(raw) == 0 {
				return goerr.New("no embedding returned", goerr.V("content", item.Content))
			}

			vec := make([]float32, len(raw[0]))
			for j, v := range raw[0] {
				vec[j] = float32(v)
			}
			embeddings[i] = vec
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return embeddings, nil
}

func clampImportance(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

const extractionSystemPrompt = `You extract durable facts about a person from a phone call transcript.
Extract only information worth remembering across calls: preferences, life facts, relationships, tasks, reminders.
Each memory must be a single self-contained sentence about the caller.
Do not resubmit anything already in the known-memories list.
Importance is a number from 0 to 1 reflecting how central the fact is to the caller's life.
If there is nothing new to remember, return an empty list.`

func buildExtractionPrompt(transcript []*model.ConversationMessage, existing []*model.Memory) string {
	var sb strings.Builder

	if len(existing) > 0 {
		sb.WriteString("## Already known memories (do not repeat):\n\n")
		for _, mem := range existing {
			sb.WriteString("- ")
			sb.WriteString(mem.Content)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Call transcript:\n\n")
	for _, msg := range transcript {
		sb.WriteString(string(msg.Role))
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}

	return sb.String()
}

func extractionSchema() *gollem.Parameter {
	categories := make([]string, 0, len(types.AllMemoryCategories()))
	for _, c := range types.AllMemoryCategories() {
		categories = append(categories, c.String())
	}

	return &gollem.Parameter{
		Title:       "MemoryExtractionResponse",
		Description: "New memories found in the transcript",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"memories": {
				Type:        gollem.TypeArray,
				Description: "Memories not already known",
				Items: &gollem.Parameter{
					Type: gollem.TypeObject,
					Properties: map[string]*gollem.Parameter{
						"content": {
							Type:        gollem.TypeString,
							Description: "One self-contained sentence about the caller",
						},
						"category": {
							Type:        gollem.TypeString,
							Description: fmt.Sprintf("One of: %s", strings.Join(categories, ", ")),
						},
						"importance": {
							Type:        gollem.TypeNumber,
							Description: "How central this fact is to the caller's life, 0 to 1",
						},
					},
					Required: []string{"content", "category", "importance"},
				},
			},
		},
		Required: []string{"memories"},
	}
}

type composedStory struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Summary    string `json:"summary"`
	TimePeriod string `json:"time_period"`
	HasStory   bool   `json:"has_story"`
}

// composeCallStory turns the transcript into a narrative memoir passage and
// submits it through story deduplication. A duplicate verdict is normal for
// repeated retellings and is logged, not surfaced.
func (uc *UseCases) composeCallStory(ctx context.Context, callID model.CallID, userID model.UserID, transcript []*model.ConversationMessage) error {
	logger := logging.From(ctx)

	llmSession, err := uc.llm.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(storySchema()),
		gollem.WithSessionSystemPrompt(storySystemPrompt),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to create story session")
	}

	resp, err := llmSession.GenerateContent(ctx, gollem.Text(buildStoryPrompt(transcript)))
	if err != nil {
		return goerr.Wrap(err, "failed to compose story")
	}
	if len(resp.Texts) == 0 {
		return goerr.New("empty story response")
	}

	var story composedStory
	if err := json.Unmarshal([]byte(resp.Texts[0]), &story); err != nil {
		return goerr.Wrap(err, "failed to parse story response", goerr.V("response", resp.Texts[0]))
	}
	if !story.HasStory || strings.TrimSpace(story.Content) == "" {
		logger.Info("no story material in call", "call_id", callID)
		return nil
	}

	_, err = uc.SubmitStory(ctx, &StoryInput{
		UserID:     userID,
		Title:      story.Title,
		Content:    story.Content,
		Summary:    story.Summary,
		TimePeriod: story.TimePeriod,
		Source:     types.StorySourceCall,
		SourceID:   string(callID),
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateStory) {
			logger.Info("composed story rejected as duplicate", "call_id", callID, "reason", err.Error())
			return nil
		}
		return err
	}

	logger.Info("story composed from call", "call_id", callID, "title", story.Title)
	return nil
}

const storySystemPrompt = `You turn a phone call transcript into a short memoir passage written in the caller's voice.
Write in first person, past tense, preserving the caller's own details and phrasings.
Only compose a story when the caller actually told one; small talk is not a story.
time_period is a rough life period like "childhood", "1970s" or "last summer", empty if unclear.`

func buildStoryPrompt(transcript []*model.ConversationMessage) string {
	var sb strings.Builder

	sb.WriteString("## Call transcript:\n\n")
	for _, msg := range transcript {
		sb.WriteString(string(msg.Role))
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}

	return sb.String()
}

func storySchema() *gollem.Parameter {
	return &gollem.Parameter{
		Title:       "StoryCompositionResponse",
		Description: "A memoir passage composed from the transcript",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"has_story": {
				Type:        gollem.TypeBoolean,
				Description: "Whether the call contained an actual story",
			},
			"title": {
				Type:        gollem.TypeString,
				Description: "A short evocative title",
			},
			"content": {
				Type:        gollem.TypeString,
				Description: "The memoir passage in the caller's voice",
			},
			"summary": {
				Type:        gollem.TypeString,
				Description: "One or two sentences summarizing the passage",
			},
			"time_period": {
				Type:        gollem.TypeString,
				Description: "Rough life period the story belongs to, empty if unclear",
			},
		},
		Required: []string{"has_story", "title", "content", "summary", "time_period"},
	}
}
