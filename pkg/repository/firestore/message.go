package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"

	"github.com/everstory-ai/everstory/pkg/domain/model"
	"github.com/everstory-ai/everstory/pkg/domain/types"
)

type messageDoc struct {
	ID          model.MessageID `firestore:"ID"`
	CallID      model.CallID    `firestore:"CallID"`
	Role        string          `firestore:"Role"`
	Content     string          `firestore:"Content"`
	AudioURL    string          `firestore:"AudioURL,omitempty"`
	TimestampMS int64           `firestore:"TimestampMS"`
	CreatedAt   time.Time       `firestore:"CreatedAt"`
}

func toMessageDoc(m *model.ConversationMessage) *messageDoc {
	return &messageDoc{
		ID:          m.ID,
		CallID:      m.CallID,
		Role:        m.Role.String(),
		Content:     m.Content,
		AudioURL:    m.AudioURL,
		TimestampMS: m.TimestampMS,
		CreatedAt:   m.CreatedAt,
	}
}

func fromMessageDoc(d *messageDoc) *model.ConversationMessage {
	return &model.ConversationMessage{
		ID:          d.ID,
		CallID:      d.CallID,
		Role:        types.MessageRole(d.Role),
		Content:     d.Content,
		AudioURL:    d.AudioURL,
		TimestampMS: d.TimestampMS,
		CreatedAt:   d.CreatedAt,
	}
}

type messageRepository struct {
	client *firestore.Client
}

func (r *messageRepository) Append(ctx context.Context, msg *model.ConversationMessage) (*model.ConversationMessage, error) {
	if msg.ID == "" {
		msg.ID = model.NewMessageID()
	}
	msg.CreatedAt = time.Now().UTC()
	if msg.TimestampMS == 0 {
		msg.TimestampMS = msg.CreatedAt.UnixMilli()
	}

	docRef := r.client.Collection(collectionMessages).Doc(string(msg.ID))
	if _, err := docRef.Set(ctx, toMessageDoc(msg)); err != nil {
		return nil, goerr.Wrap(err, "failed to append message", goerr.V("callID", msg.CallID))
	}

	return msg, nil
}

func (r *messageRepository) ListByCall(ctx context.Context, callID model.CallID) ([]*model.ConversationMessage, error) {
	iter := r.client.Collection(collectionMessages).
		Where("CallID", "==", string(callID)).
		OrderBy("TimestampMS", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	messages := make([]*model.ConversationMessage, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate messages", goerr.V("callID", callID))
		}

		var d messageDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal message", goerr.V("callID", callID))
		}

		messages = append(messages, fromMessageDoc(&d))
	}

	return messages, nil
}

func (r *messageRepository) CountByCall(ctx context.Context, callID model.CallID) (int, error) {
	docs, err := r.client.Collection(collectionMessages).
		Where("CallID", "==", string(callID)).
		Select().
		Documents(ctx).
		GetAll()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count messages", goerr.V("callID", callID))
	}
	return len(docs), nil
}
