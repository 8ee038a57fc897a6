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

type storyDoc struct {
	ID          model.StoryID   `firestore:"ID"`
	ChapterID   model.ChapterID `firestore:"ChapterID"`
	UserID      model.UserID    `firestore:"UserID"`
	Title       string          `firestore:"Title,omitempty"`
	Content     string          `firestore:"Content"`
	Summary     string          `firestore:"Summary,omitempty"`
	TimePeriod  string          `firestore:"TimePeriod,omitempty"`
	ContentHash string          `firestore:"ContentHash"`
	Source      string          `firestore:"Source"`
	SourceID    string          `firestore:"SourceID,omitempty"`
	IsActive    bool            `firestore:"IsActive"`
	CreatedAt   time.Time       `firestore:"CreatedAt"`
}

func toStoryDoc(s *model.ChapterStory) *storyDoc {
	return &storyDoc{
		ID:          s.ID,
		ChapterID:   s.ChapterID,
		UserID:      s.UserID,
		Title:       s.Title,
		Content:     s.Content,
		Summary:     s.Summary,
		TimePeriod:  s.TimePeriod,
		ContentHash: s.ContentHash,
		Source:      s.Source.String(),
		SourceID:    s.SourceID,
		IsActive:    s.IsActive,
		CreatedAt:   s.CreatedAt,
	}
}

func fromStoryDoc(d *storyDoc) *model.ChapterStory {
	return &model.ChapterStory{
		ID:          d.ID,
		ChapterID:   d.ChapterID,
		UserID:      d.UserID,
		Title:       d.Title,
		Content:     d.Content,
		Summary:     d.Summary,
		TimePeriod:  d.TimePeriod,
		ContentHash: d.ContentHash,
		Source:      types.StorySource(d.Source),
		SourceID:    d.SourceID,
		IsActive:    d.IsActive,
		CreatedAt:   d.CreatedAt,
	}
}

type storyRepository struct {
	client *firestore.Client
}

func (r *storyRepository) Create(ctx context.Context, story *model.ChapterStory) (*model.ChapterStory, error) {
	if story.ID == "" {
		story.ID = model.NewStoryID()
	}
	story.IsActive = true
	story.CreatedAt = time.Now().UTC()

	docRef := r.client.Collection(collectionStories).Doc(string(story.ID))
	if _, err := docRef.Set(ctx, toStoryDoc(story)); err != nil {
		return nil, goerr.Wrap(err, "failed to create story", goerr.V("userID", story.UserID))
	}

	return story, nil
}

func (r *storyRepository) ListActiveByUser(ctx context.Context, userID model.UserID) ([]*model.ChapterStory, error) {
	iter := r.client.Collection(collectionStories).
		Where("UserID", "==", string(userID)).
		Where("IsActive", "==", true).
		OrderBy("CreatedAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	return r.collect(iter, userID)
}

func (r *storyRepository) ListByChapter(ctx context.Context, chapterID model.ChapterID) ([]*model.ChapterStory, error) {
	iter := r.client.Collection(collectionStories).
		Where("ChapterID", "==", string(chapterID)).
		Where("IsActive", "==", true).
		OrderBy("CreatedAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	return r.collect(iter, chapterID)
}

func (r *storyRepository) collect(iter *firestore.DocumentIterator, key any) ([]*model.ChapterStory, error) {
	stories := make([]*model.ChapterStory, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate stories", goerr.V("key", key))
		}

		var d storyDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal story", goerr.V("key", key))
		}

		stories = append(stories, fromStoryDoc(&d))
	}

	return stories, nil
}

func (r *storyRepository) Deactivate(ctx context.Context, userID model.UserID, storyID model.StoryID) error {
	docRef := r.client.Collection(collectionStories).Doc(string(storyID))

	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "story not found", goerr.V("storyID", storyID))
		}
		return goerr.Wrap(err, "failed to get story", goerr.V("storyID", storyID))
	}

	if _, err := docRef.Update(ctx, []firestore.Update{
		{Path: "IsActive", Value: false},
	}); err != nil {
		return goerr.Wrap(err, "failed to deactivate story", goerr.V("storyID", storyID))
	}

	return nil
}
