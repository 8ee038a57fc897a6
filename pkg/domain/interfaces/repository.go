package interfaces

// Repository defines the interface for durable data persistence
type Repository interface {
	Call() CallRepository
	Message() MessageRepository
	Memory() MemoryRepository
	Story() StoryRepository
	Chapter() ChapterRepository
	User() UserRepository

	Close() error
}
