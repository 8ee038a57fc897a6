package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/everstory-ai/everstory/pkg/domain/model"
	"github.com/everstory-ai/everstory/pkg/domain/types"
)

type callDoc struct {
	ID             model.CallID `firestore:"ID"`
	UserID         model.UserID `firestore:"UserID,omitempty"`
	CallSID        string       `firestore:"CallSID"`
	ConversationID string       `firestore:"ConversationID,omitempty"`
	CallerPhone    string       `firestore:"CallerPhone"`
	Direction      string       `firestore:"Direction"`
	Status         string       `firestore:"Status"`
	DurationSec    int          `firestore:"DurationSec"`
	CostCents      int          `firestore:"CostCents"`
	CreatedAt      time.Time    `firestore:"CreatedAt"`
	UpdatedAt      time.Time    `firestore:"UpdatedAt"`
}

func toCallDoc(c *model.Call) *callDoc {
	return &callDoc{
		ID:             c.ID,
		UserID:         c.UserID,
		CallSID:        c.CallSID,
		ConversationID: c.ConversationID,
		CallerPhone:    c.CallerPhone,
		Direction:      c.Direction.String(),
		Status:         c.Status,
		DurationSec:    c.DurationSec,
		CostCents:      c.CostCents,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func fromCallDoc(d *callDoc) *model.Call {
	return &model.Call{
		ID:             d.ID,
		UserID:         d.UserID,
		CallSID:        d.CallSID,
		ConversationID: d.ConversationID,
		CallerPhone:    d.CallerPhone,
		Direction:      types.CallDirection(d.Direction),
		Status:         d.Status,
		DurationSec:    d.DurationSec,
		CostCents:      d.CostCents,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type callRepository struct {
	client *firestore.Client
}

func (r *callRepository) Create(ctx context.Context, call *model.Call) (*model.Call, error) {
	if call.ID == "" {
		call.ID = model.NewCallID()
	}
	now := time.Now().UTC()
	call.CreatedAt = now
	call.UpdatedAt = now

	docRef := r.client.Collection(collectionCalls).Doc(string(call.ID))
	if _, err := docRef.Set(ctx, toCallDoc(call)); err != nil {
		return nil, goerr.Wrap(err, "failed to create call", goerr.V("callID", call.ID))
	}

	return call, nil
}

func (r *callRepository) Get(ctx context.Context, id model.CallID) (*model.Call, error) {
	doc, err := r.client.Collection(collectionCalls).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "call not found", goerr.V("callID", id))
		}
		return nil, goerr.Wrap(err, "failed to get call", goerr.V("callID", id))
	}

	var d callDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal call", goerr.V("callID", id))
	}

	return fromCallDoc(&d), nil
}

func (r *callRepository) GetByCallSID(ctx context.Context, callSID string) (*model.Call, error) {
	return r.getByField(ctx, "CallSID", callSID)
}

func (r *callRepository) GetByConversationID(ctx context.Context, conversationID string) (*model.Call, error) {
	if conversationID == "" {
		return nil, goerr.Wrap(ErrNotFound, "call not found", goerr.V("conversationID", conversationID))
	}
	return r.getByField(ctx, "ConversationID", conversationID)
}

func (r *callRepository) getByField(ctx context.Context, field, value string) (*model.Call, error) {
	iter := r.client.Collection(collectionCalls).
		Where(field, "==", value).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, goerr.Wrap(ErrNotFound, "call not found", goerr.V(field, value))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query call", goerr.V(field, value))
	}

	var d callDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal call", goerr.V(field, value))
	}

	return fromCallDoc(&d), nil
}

func (r *callRepository) Update(ctx context.Context, call *model.Call) error {
	call.UpdatedAt = time.Now().UTC()

	docRef := r.client.Collection(collectionCalls).Doc(string(call.ID))
	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "call not found", goerr.V("callID", call.ID))
		}
		return goerr.Wrap(err, "failed to get call", goerr.V("callID", call.ID))
	}

	if _, err := docRef.Set(ctx, toCallDoc(call)); err != nil {
		return goerr.Wrap(err, "failed to update call", goerr.V("callID", call.ID))
	}

	return nil
}
