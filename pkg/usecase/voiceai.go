package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/everstory-ai/everstory/pkg/domain/model"
	"github.com/everstory-ai/everstory/pkg/domain/types"
	"github.com/everstory-ai/everstory/pkg/utils/logging"
)

// TranscriptLine is one provider-reported utterance
type TranscriptLine struct {
	Role    string
	Message string
}

// ResolveProviderCall maps a voice-AI event to its Call record. The explicit
// metadata call ID wins; the provider-side conversation ID stored at
// initiation is the fallback. Neither resolving returns model.ErrNotFound.
func (uc *UseCases) ResolveProviderCall(ctx context.Context, callID, conversationID string) (*model.Call, error) {
	if callID != "" {
		call, err := uc.repo.Call().Get(ctx, model.CallID(callID))
		if err == nil {
			return call, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return nil, goerr.Wrap(err, "failed to resolve call by ID", goerr.V("callID", callID))
		}
	}

	if conversationID != "" {
		call, err := uc.repo.Call().GetByConversationID(ctx, conversationID)
		if err == nil {
			return call, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return nil, goerr.Wrap(err, "failed to resolve call by conversation", goerr.V("conversationID", conversationID))
		}
	}

	return nil, goerr.Wrap(model.ErrNotFound, "provider event does not resolve to a call",
		goerr.V("callID", callID),
		goerr.V("conversationID", conversationID),
	)
}

// LinkConversation stores the provider's conversation identifier on the call
// so later events without metadata can still resolve
func (uc *UseCases) LinkConversation(ctx context.Context, call *model.Call, conversationID string) error {
	if conversationID == "" || call.ConversationID == conversationID {
		return nil
	}

	call.ConversationID = conversationID
	call.UpdatedAt = time.Now().UTC()
	if err := uc.repo.Call().Update(ctx, call); err != nil {
		return goerr.Wrap(err, "failed to link conversation", goerr.V("callID", call.ID))
	}

	logging.From(ctx).Info("conversation linked", "call_id", call.ID, "conversation_id", conversationID)
	return nil
}

// IngestTranscript persists provider transcript lines as conversation
// messages. Lines with unknown roles or empty text are skipped. The current
// message count seeds the timestamp sequence so lines sharing a wall-clock
// millisecond stay ordered.
func (uc *UseCases) IngestTranscript(ctx context.Context, call *model.Call, lines []TranscriptLine) error {
	logger := logging.From(ctx)

	count, err := uc.repo.Message().CountByCall(ctx, call.ID)
	if err != nil {
		return goerr.Wrap(err, "failed to count messages", goerr.V("callID", call.ID))
	}

	now := time.Now().UTC()
	seq := count
	stored := 0
	for _, line := range lines {
		content := strings.TrimSpace(line.Message)
		if content == "" {
			continue
		}

		role, err := types.ParseMessageRole(line.Role)
		if err != nil {
			logger.Warn("skipping transcript line with unknown role", "call_id", call.ID, "role", line.Role)
			continue
		}

		msg := &model.ConversationMessage{
			ID:          model.NewMessageID(),
			CallID:      call.ID,
			Role:        role,
			Content:     content,
			TimestampMS: model.MessageTimestamp(now, seq),
			CreatedAt:   now,
		}
		if _, err := uc.repo.Message().Append(ctx, msg); err != nil {
			return goerr.Wrap(err, "failed to persist transcript line", goerr.V("callID", call.ID))
		}
		seq++
		stored++
	}

	logger.Info("transcript ingested", "call_id", call.ID, "lines", stored)
	return nil
}

// FinalizeProviderCall finalizes a call reported done by the voice-AI
// provider. It shares the session-deletion idempotency gate with the
// telephony status path, so whichever webhook arrives second does nothing.
func (uc *UseCases) FinalizeProviderCall(ctx context.Context, call *model.Call, durationSec int) error {
	return uc.HandleCallEnd(ctx, call.CallSID, durationSec)
}
