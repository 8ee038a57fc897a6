package interfaces

import "context"

// SpeechSynthesizer converts reply text into playable audio and returns a
// URL reference to it. Upload mechanics are the provider's concern; the
// orchestrator only stores the reference.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}
