package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/everstory-ai/everstory/pkg/domain/model"
)

type callRepository struct {
	mu    sync.RWMutex
	calls map[model.CallID]*model.Call
}

func newCallRepository() *callRepository {
	return &callRepository{
		calls: make(map[model.CallID]*model.Call),
	}
}

func copyCall(c *model.Call) *model.Call {
	copied := *c
	return &copied
}

func (r *callRepository) Create(ctx context.Context, call *model.Call) (*model.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := copyCall(call)
	if created.ID == "" {
		created.ID = model.NewCallID()
	}
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	r.calls[created.ID] = created
	return copyCall(created), nil
}

func (r *callRepository) Get(ctx context.Context, id model.CallID) (*model.Call, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	call, exists := r.calls[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "call not found", goerr.V("callID", id))
	}
	return copyCall(call), nil
}

func (r *callRepository) GetByCallSID(ctx context.Context, callSID string) (*model.Call, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, call := range r.calls {
		if call.CallSID == callSID {
			return copyCall(call), nil
		}
	}
	return nil, goerr.Wrap(ErrNotFound, "call not found", goerr.V("callSID", callSID))
}

func (r *callRepository) GetByConversationID(ctx context.Context, conversationID string) (*model.Call, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if conversationID != "" {
		for _, call := range r.calls {
			if call.ConversationID == conversationID {
				return copyCall(call), nil
			}
		}
	}
	return nil, goerr.Wrap(ErrNotFound, "call not found", goerr.V("conversationID", conversationID))
}

func (r *callRepository) Update(ctx context.Context, call *model.Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.calls[call.ID]
	if !exists {
		return goerr.Wrap(ErrNotFound, "call not found", goerr.V("callID", call.ID))
	}

	updated := copyCall(call)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	r.calls[call.ID] = updated
	return nil
}
