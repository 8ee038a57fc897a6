package usecase

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"

	"github.com/everstory-ai/everstory/pkg/domain/model"
	"github.com/everstory-ai/everstory/pkg/domain/types"
	"github.com/everstory-ai/everstory/pkg/service/queue"
)

// RegisterJobHandlers binds the background job names to their use cases
func (uc *UseCases) RegisterJobHandlers(q *queue.Queue) {
	q.Register(types.JobNameExtractMemories, func(ctx context.Context, raw json.RawMessage) error {
		var payload model.ExtractMemoriesPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return goerr.Wrap(err, "invalid extract-memories payload")
		}
		return uc.ExtractMemories(ctx, payload.CallID, payload.UserID)
	})

	q.Register(types.JobNameCalculateCallCost, func(ctx context.Context, raw json.RawMessage) error {
		var payload model.CalculateCallCostPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return goerr.Wrap(err, "invalid calculate-call-cost payload")
		}
		return uc.CalculateCallCost(ctx, payload.CallID, payload.DurationSec)
	})

	q.Register(types.JobNameRegenerateChapter, func(ctx context.Context, raw json.RawMessage) error {
		var payload model.RegenerateChapterPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return goerr.Wrap(err, "invalid regenerate-chapter payload")
		}
		return uc.RegenerateChapter(ctx, payload.UserID, payload.ChapterID)
	})
}
