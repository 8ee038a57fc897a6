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

// memoryDoc is the Firestore document representation of model.Memory.
// Embedding is stored as firestore.Vector32 for FindNearest vector search.
type memoryDoc struct {
	ID         model.MemoryID     `firestore:"ID"`
	UserID     model.UserID       `firestore:"UserID"`
	Content    string             `firestore:"Content"`
	Category   string             `firestore:"Category"`
	Importance float64            `firestore:"Importance"`
	Embedding  firestore.Vector32 `firestore:"Embedding,omitempty"`
	IsActive   bool               `firestore:"IsActive"`
	CreatedAt  time.Time          `firestore:"CreatedAt"`
}

func toMemoryDoc(m *model.Memory) *memoryDoc {
	doc := &memoryDoc{
		ID:         m.ID,
		UserID:     m.UserID,
		Content:    m.Content,
		Category:   m.Category.String(),
		Importance: m.Importance,
		IsActive:   m.IsActive,
		CreatedAt:  m.CreatedAt,
	}
	if len(m.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(m.Embedding)
	}
	return doc
}

func fromMemoryDoc(d *memoryDoc) *model.Memory {
	m := &model.Memory{
		ID:         d.ID,
		UserID:     d.UserID,
		Content:    d.Content,
		Category:   types.MemoryCategory(d.Category),
		Importance: d.Importance,
		IsActive:   d.IsActive,
		CreatedAt:  d.CreatedAt,
	}
	if len(d.Embedding) > 0 {
		m.Embedding = []float32(d.Embedding)
	}
	return m
}

type memoryRepository struct {
	client *firestore.Client
}

func (r *memoryRepository) Create(ctx context.Context, mem *model.Memory) (*model.Memory, error) {
	if mem.ID == "" {
		mem.ID = model.NewMemoryID()
	}
	mem.IsActive = true
	mem.CreatedAt = time.Now().UTC()

	docRef := r.client.Collection(collectionMemories).Doc(string(mem.ID))
	if _, err := docRef.Set(ctx, toMemoryDoc(mem)); err != nil {
		return nil, goerr.Wrap(err, "failed to create memory", goerr.V("userID", mem.UserID))
	}

	return mem, nil
}

func (r *memoryRepository) ListActiveByUser(ctx context.Context, userID model.UserID, limit int) ([]*model.Memory, error) {
	q := r.client.Collection(collectionMemories).
		Where("UserID", "==", string(userID)).
		Where("IsActive", "==", true).
		OrderBy("CreatedAt", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	memories := make([]*model.Memory, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memories", goerr.V("userID", userID))
		}

		var d memoryDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory", goerr.V("userID", userID))
		}

		memories = append(memories, fromMemoryDoc(&d))
	}

	return memories, nil
}

func (r *memoryRepository) FindByEmbedding(ctx context.Context, userID model.UserID, embedding []float32, limit int) ([]*model.Memory, error) {
	vq := r.client.Collection(collectionMemories).
		Where("UserID", "==", string(userID)).
		Where("IsActive", "==", true).
		FindNearest("Embedding", firestore.Vector32(embedding), limit, firestore.DistanceMeasureCosine, nil)

	iter := vq.Documents(ctx)
	defer iter.Stop()

	memories := make([]*model.Memory, 0, limit)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memory vector search results", goerr.V("userID", userID))
		}

		var d memoryDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory from vector search", goerr.V("userID", userID))
		}

		memories = append(memories, fromMemoryDoc(&d))
	}

	return memories, nil
}

func (r *memoryRepository) Deactivate(ctx context.Context, userID model.UserID, memoryID model.MemoryID) error {
	docRef := r.client.Collection(collectionMemories).Doc(string(memoryID))

	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "memory not found", goerr.V("memoryID", memoryID))
		}
		return goerr.Wrap(err, "failed to get memory", goerr.V("memoryID", memoryID))
	}

	if _, err := docRef.Update(ctx, []firestore.Update{
		{Path: "IsActive", Value: false},
	}); err != nil {
		return goerr.Wrap(err, "failed to deactivate memory", goerr.V("memoryID", memoryID))
	}

	return nil
}
