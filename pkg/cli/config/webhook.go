package config

import (
	"github.com/urfave/cli/v3"
)

// Webhook holds configuration for inbound webhook verification
type Webhook struct {
	voiceAISecret string
}

// Flags returns CLI flags for webhook configuration
func (w *Webhook) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "voiceai-webhook-secret",
			Usage:       "HMAC secret for voice-AI webhook signatures (empty disables verification)",
			Sources:     cli.EnvVars("EVERSTORY_VOICEAI_WEBHOOK_SECRET"),
			Destination: &w.voiceAISecret,
		},
	}
}

// VoiceAISecret returns the voice-AI webhook signing secret
func (w *Webhook) VoiceAISecret() string {
	return w.voiceAISecret
}
