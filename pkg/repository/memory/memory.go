package memory

import (
	"github.com/everstory-ai/everstory/pkg/domain/interfaces"
	"github.com/everstory-ai/everstory/pkg/domain/model"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = model.ErrNotFound

// Memory is the in-memory repository backend for development and tests
type Memory struct {
	call    *callRepository
	message *messageRepository
	memory  *memoryRepository
	story   *storyRepository
	chapter *chapterRepository
	user    *userRepository
}

var _ interfaces.Repository = &Memory{}

// New creates an empty in-memory repository
func New() *Memory {
	return &Memory{
		call:    newCallRepository(),
		message: newMessageRepository(),
		memory:  newMemoryRepository(),
		story:   newStoryRepository(),
		chapter: newChapterRepository(),
		user:    newUserRepository(),
	}
}

func (m *Memory) Call() interfaces.CallRepository {
	return m.call
}

func (m *Memory) Message() interfaces.MessageRepository {
	return m.message
}

func (m *Memory) Memory() interfaces.MemoryRepository {
	return m.memory
}

func (m *Memory) Story() interfaces.StoryRepository {
	return m.story
}

func (m *Memory) Chapter() interfaces.ChapterRepository {
	return m.chapter
}

func (m *Memory) User() interfaces.UserRepository {
	return m.user
}

func (m *Memory) Close() error {
	return nil
}
