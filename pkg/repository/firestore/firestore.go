package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"

	"github.com/everstory-ai/everstory/pkg/domain/interfaces"
	"github.com/everstory-ai/everstory/pkg/domain/model"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = model.ErrNotFound

const (
	collectionCalls    = "calls"
	collectionMessages = "messages"
	collectionMemories = "memories"
	collectionStories  = "stories"
	collectionChapters = "chapters"
	collectionUsers    = "users"
)

// Firestore is the durable repository backend
type Firestore struct {
	client  *firestore.Client
	call    *callRepository
	message *messageRepository
	memory  *memoryRepository
	story   *storyRepository
	chapter *chapterRepository
	user    *userRepository
}

var _ interfaces.Repository = &Firestore{}

// New creates a Firestore-backed repository. An empty databaseID selects the
// default database.
func New(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID == "" {
		client, err = firestore.NewClient(ctx, projectID)
	} else {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client", goerr.V("projectID", projectID))
	}

	return &Firestore{
		client:  client,
		call:    &callRepository{client: client},
		message: &messageRepository{client: client},
		memory:  &memoryRepository{client: client},
		story:   &storyRepository{client: client},
		chapter: &chapterRepository{client: client},
		user:    &userRepository{client: client},
	}, nil
}

// Client exposes the underlying client for collaborators that share it,
// such as the session store
func (f *Firestore) Client() *firestore.Client {
	return f.client
}

func (f *Firestore) Call() interfaces.CallRepository {
	return f.call
}

func (f *Firestore) Message() interfaces.MessageRepository {
	return f.message
}

func (f *Firestore) Memory() interfaces.MemoryRepository {
	return f.memory
}

func (f *Firestore) Story() interfaces.StoryRepository {
	return f.story
}

func (f *Firestore) Chapter() interfaces.ChapterRepository {
	return f.chapter
}

func (f *Firestore) User() interfaces.UserRepository {
	return f.user
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}
