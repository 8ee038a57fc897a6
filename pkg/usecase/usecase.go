package usecase

import (
	"github.com/m-mizutani/gollem"

	"github.com/everstory-ai/everstory/pkg/domain/interfaces"
)

// DefaultCostPerMinuteCents is the billing rate applied when the serve
// command does not override it.
const DefaultCostPerMinuteCents = 15

// UseCases bundles the application logic behind the webhook controllers and
// job handlers
type UseCases struct {
	repo     interfaces.Repository
	sessions interfaces.SessionStore
	queue    interfaces.JobQueue
	llm      gollem.LLMClient
	speech   interfaces.SpeechSynthesizer

	costPerMinuteCents int
}

// Option customizes the use cases
type Option func(*UseCases)

// WithSpeechSynthesizer enables audio synthesis of assistant replies. Without
// it, replies carry text only and the telephony layer falls back to Say.
func WithSpeechSynthesizer(speech interfaces.SpeechSynthesizer) Option {
	return func(uc *UseCases) {
		uc.speech = speech
	}
}

// WithCostPerMinuteCents overrides the per-minute billing rate
func WithCostPerMinuteCents(cents int) Option {
	return func(uc *UseCases) {
		uc.costPerMinuteCents = cents
	}
}

// New creates the use case layer
func New(repo interfaces.Repository, sessions interfaces.SessionStore, queue interfaces.JobQueue, llm gollem.LLMClient, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:               repo,
		sessions:           sessions,
		queue:              queue,
		llm:                llm,
		costPerMinuteCents: DefaultCostPerMinuteCents,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}
