package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/everstory-ai/everstory/pkg/domain/interfaces"
	"github.com/everstory-ai/everstory/pkg/utils/safe"
)

const defaultBaseURL = "https://api.elevenlabs.io"

// Client wraps the text-to-speech provider's HTTP API. It synthesizes reply
// text and returns a URL reference to the hosted audio; storage of the audio
// itself is the provider's concern.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	voiceID    string
}

var _ interfaces.SpeechSynthesizer = &Client{}

// Option customizes the client
type Option func(*Client)

// WithBaseURL overrides the provider endpoint (tests point it at a local server)
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New creates a speech synthesis client
func New(apiKey, voiceID string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, goerr.New("voice API key is required")
	}
	if voiceID == "" {
		return nil, goerr.New("voice ID is required")
	}

	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		voiceID:    voiceID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type synthesizeRequest struct {
	Text string `json:"text"`
}

type synthesizeResponse struct {
	AudioURL string `json:"audio_url"`
}

// Synthesize converts text to speech and returns the hosted audio URL
func (c *Client) Synthesize(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(&synthesizeRequest{Text: text})
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal synthesize request")
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", c.baseURL, c.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", goerr.Wrap(err, "failed to build synthesize request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", goerr.Wrap(err, "failed to call speech synthesis API")
	}
	defer safe.Close(ctx, resp.Body)

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", goerr.New("speech synthesis API returned error",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(raw)),
		)
	}

	var result synthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", goerr.Wrap(err, "failed to decode synthesize response")
	}
	if result.AudioURL == "" {
		return "", goerr.New("speech synthesis API returned empty audio URL")
	}

	return result.AudioURL, nil
}
