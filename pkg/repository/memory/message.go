package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/everstory-ai/everstory/pkg/domain/model"
)

type messageRepository struct {
	mu       sync.RWMutex
	messages map[model.CallID][]*model.ConversationMessage
}

func newMessageRepository() *messageRepository {
	return &messageRepository{
		messages: make(map[model.CallID][]*model.ConversationMessage),
	}
}

func copyMessage(m *model.ConversationMessage) *model.ConversationMessage {
	copied := *m
	return &copied
}

func (r *messageRepository) Append(ctx context.Context, msg *model.ConversationMessage) (*model.ConversationMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := copyMessage(msg)
	if created.ID == "" {
		created.ID = model.NewMessageID()
	}
	created.CreatedAt = time.Now().UTC()
	if created.TimestampMS == 0 {
		created.TimestampMS = created.CreatedAt.UnixMilli()
	}

	r.messages[created.CallID] = append(r.messages[created.CallID], created)
	return copyMessage(created), nil
}

func (r *messageRepository) ListByCall(ctx context.Context, callID model.CallID) ([]*model.ConversationMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket := r.messages[callID]
	result := make([]*model.ConversationMessage, 0, len(bucket))
	for _, m := range bucket {
		result = append(result, copyMessage(m))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMS < result[j].TimestampMS
	})

	return result, nil
}

func (r *messageRepository) CountByCall(ctx context.Context, callID model.CallID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.messages[callID]), nil
}
