package config

import (
	"github.com/urfave/cli/v3"

	"github.com/everstory-ai/everstory/pkg/service/voice"
	"github.com/everstory-ai/everstory/pkg/utils/logging"
)

// Voice holds configuration for the text-to-speech client
type Voice struct {
	apiKey  string
	voiceID string
	baseURL string
}

// Flags returns CLI flags for text-to-speech configuration
func (v *Voice) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "voice-api-key",
			Usage:       "Text-to-speech API key (empty disables audio synthesis)",
			Sources:     cli.EnvVars("EVERSTORY_VOICE_API_KEY"),
			Destination: &v.apiKey,
		},
		&cli.StringFlag{
			Name:        "voice-id",
			Usage:       "Voice to synthesize replies with",
			Sources:     cli.EnvVars("EVERSTORY_VOICE_ID"),
			Destination: &v.voiceID,
		},
		&cli.StringFlag{
			Name:        "voice-base-url",
			Usage:       "Text-to-speech API base URL override",
			Sources:     cli.EnvVars("EVERSTORY_VOICE_BASE_URL"),
			Destination: &v.baseURL,
		},
	}
}

// Configure creates the speech synthesis client. Returns nil without error
// when no API key is configured; replies then fall back to provider voices.
func (v *Voice) Configure() (*voice.Client, error) {
	if v.apiKey == "" {
		logging.Default().Info("Voice API key not configured, audio synthesis disabled")
		return nil, nil
	}

	var opts []voice.Option
	if v.baseURL != "" {
		opts = append(opts, voice.WithBaseURL(v.baseURL))
	}

	client, err := voice.New(v.apiKey, v.voiceID, opts...)
	if err != nil {
		return nil, err
	}

	logging.Default().Info("Voice synthesis enabled", "voice_id", v.voiceID)
	return client, nil
}
