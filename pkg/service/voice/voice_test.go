package voice_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/everstory-ai/everstory/pkg/service/voice"
)

func TestSynthesize(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the hosted audio URL", func(t *testing.T) {
		var gotPath, gotAPIKey, gotText string

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAPIKey = r.Header.Get("xi-api-key")

			var body map[string]string
			gt.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			gotText = body["text"]

			w.Header().Set("Content-Type", "application/json")
			gt.NoError(t, json.NewEncoder(w).Encode(map[string]string{
				"audio_url": "https://cdn.example.com/audio/abc123.mp3",
			}))
		}))
		defer srv.Close()

		client, err := voice.New("test-key", "voice-42", voice.WithBaseURL(srv.URL))
		gt.NoError(t, err).Required()

		audioURL, err := client.Synthesize(ctx, "Hello! What's on your mind today?")
		gt.NoError(t, err).Required()

		gt.Value(t, audioURL).Equal("https://cdn.example.com/audio/abc123.mp3")
		gt.Value(t, gotPath).Equal("/v1/text-to-speech/voice-42")
		gt.Value(t, gotAPIKey).Equal("test-key")
		gt.Value(t, gotText).Equal("Hello! What's on your mind today?")
	})

	t.Run("provider error surfaces", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		client, err := voice.New("test-key", "voice-42", voice.WithBaseURL(srv.URL))
		gt.NoError(t, err).Required()

		_, err = client.Synthesize(ctx, "Hello")
		gt.Error(t, err)
	})

	t.Run("empty audio URL is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gt.NoError(t, json.NewEncoder(w).Encode(map[string]string{"audio_url": ""}))
		}))
		defer srv.Close()

		client, err := voice.New("test-key", "voice-42", voice.WithBaseURL(srv.URL))
		gt.NoError(t, err).Required()

		_, err = client.Synthesize(ctx, "Hello")
		gt.Error(t, err)
	})
}

func TestNew(t *testing.T) {
	t.Run("missing API key is invalid", func(t *testing.T) {
		_, err := voice.New("", "voice-42")
		gt.Error(t, err)
	})

	t.Run("missing voice ID is invalid", func(t *testing.T) {
		_, err := voice.New("test-key", "")
		gt.Error(t, err)
	})
}
