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
)

type chapterDoc struct {
	ID         model.ChapterID `firestore:"ID"`
	UserID     model.UserID    `firestore:"UserID"`
	Title      string          `firestore:"Title"`
	Summary    string          `firestore:"Summary,omitempty"`
	OrderIndex int             `firestore:"OrderIndex"`
	CreatedAt  time.Time       `firestore:"CreatedAt"`
	UpdatedAt  time.Time       `firestore:"UpdatedAt"`
}

func toChapterDoc(c *model.Chapter) *chapterDoc {
	return &chapterDoc{
		ID:         c.ID,
		UserID:     c.UserID,
		Title:      c.Title,
		Summary:    c.Summary,
		OrderIndex: c.OrderIndex,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func fromChapterDoc(d *chapterDoc) *model.Chapter {
	return &model.Chapter{
		ID:         d.ID,
		UserID:     d.UserID,
		Title:      d.Title,
		Summary:    d.Summary,
		OrderIndex: d.OrderIndex,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

type chapterRepository struct {
	client *firestore.Client
}

func (r *chapterRepository) Create(ctx context.Context, chapter *model.Chapter) (*model.Chapter, error) {
	if chapter.ID == "" {
		chapter.ID = model.NewChapterID()
	}
	now := time.Now().UTC()
	chapter.CreatedAt = now
	chapter.UpdatedAt = now

	docRef := r.client.Collection(collectionChapters).Doc(string(chapter.ID))
	if _, err := docRef.Set(ctx, toChapterDoc(chapter)); err != nil {
		return nil, goerr.Wrap(err, "failed to create chapter", goerr.V("userID", chapter.UserID))
	}

	return chapter, nil
}

func (r *chapterRepository) Get(ctx context.Context, id model.ChapterID) (*model.Chapter, error) {
	doc, err := r.client.Collection(collectionChapters).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "chapter not found", goerr.V("chapterID", id))
		}
		return nil, goerr.Wrap(err, "failed to get chapter", goerr.V("chapterID", id))
	}

	var d chapterDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal chapter", goerr.V("chapterID", id))
	}

	return fromChapterDoc(&d), nil
}

func (r *chapterRepository) ListByUser(ctx context.Context, userID model.UserID) ([]*model.Chapter, error) {
	iter := r.client.Collection(collectionChapters).
		Where("UserID", "==", string(userID)).
		OrderBy("OrderIndex", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	chapters := make([]*model.Chapter, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate chapters", goerr.V("userID", userID))
		}

		var d chapterDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal chapter", goerr.V("userID", userID))
		}

		chapters = append(chapters, fromChapterDoc(&d))
	}

	return chapters, nil
}

func (r *chapterRepository) Update(ctx context.Context, chapter *model.Chapter) error {
	chapter.UpdatedAt = time.Now().UTC()

	docRef := r.client.Collection(collectionChapters).Doc(string(chapter.ID))
	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "chapter not found", goerr.V("chapterID", chapter.ID))
		}
		return goerr.Wrap(err, "failed to get chapter", goerr.V("chapterID", chapter.ID))
	}

	if _, err := docRef.Set(ctx, toChapterDoc(chapter)); err != nil {
		return goerr.Wrap(err, "failed to update chapter", goerr.V("chapterID", chapter.ID))
	}

	return nil
}
