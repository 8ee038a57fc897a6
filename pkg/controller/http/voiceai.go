package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/everstory-ai/everstory/pkg/domain/model"
	"github.com/everstory-ai/everstory/pkg/usecase"
	"github.com/everstory-ai/everstory/pkg/utils/async"
	"github.com/everstory-ai/everstory/pkg/utils/errutil"
	"github.com/everstory-ai/everstory/pkg/utils/logging"
)

const (
	eventConversationInitiated  = "conversation.initiated"
	eventConversationEnded      = "conversation.ended"
	eventConversationTranscript = "conversation.transcript"
	eventPostCallTranscription  = "post_call_transcription"

	// signatureMaxAge is the replay window for signed webhooks
	signatureMaxAge = 5 * time.Minute
)

// verifyVoiceAISignature checks the webhook signature header of the form
// "t=<unix>,v0=<hex>" where the digest is HMAC-SHA256 over "<t>.<body>".
// This is a pure function that can be used independently for testing.
func verifyVoiceAISignature(secret, header string, body []byte, now time.Time) error {
	if header == "" {
		return goerr.New("missing signature header")
	}

	var timestamp, signature string
	for _, part := range strings.Split(header, ",") {
		switch {
		case strings.HasPrefix(part, "t="):
			timestamp = strings.TrimPrefix(part, "t=")
		case strings.HasPrefix(part, "v0="):
			signature = strings.TrimPrefix(part, "v0=")
		}
	}
	if timestamp == "" || signature == "" {
		return goerr.New("malformed signature header", goerr.V("header", header))
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return goerr.Wrap(err, "invalid signature timestamp")
	}
	if now.Unix()-ts > int64(signatureMaxAge.Seconds()) {
		return goerr.New("signature timestamp too old", goerr.V("timestamp", timestamp))
	}

	mac := hmac.New(sha256.New, []byte(secret))
	if _, err := fmt.Fprintf(mac, "%s.%s", timestamp, body); err != nil {
		return goerr.Wrap(err, "failed to compute HMAC")
	}
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return goerr.New("signature mismatch")
	}
	return nil
}

// VoiceAISignatureMiddleware verifies the provider's HMAC signature on every
// request before it reaches the event handler
func VoiceAISignatureMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			body, err := io.ReadAll(r.Body)
			if err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
				return
			}
			if err := r.Body.Close(); err != nil {
				logging.From(ctx).Error("failed to close request body", "error", err)
			}

			header := r.Header.Get("X-VoiceAI-Signature")
			if err := verifyVoiceAISignature(secret, header, body, time.Now()); err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "voice-AI signature verification failed"), http.StatusUnauthorized)
				return
			}

			r.Body = io.NopCloser(bytes.NewBuffer(body))
			next.ServeHTTP(w, r)
		})
	}
}

// voiceAIEvent accepts both historical payload shapes: the nested data.*
// form and the flattened top-level form.
type voiceAIEvent struct {
	Type             string            `json:"type"`
	ConversationID   string            `json:"conversation_id"`
	Data             *voiceAIEventData `json:"data"`
	Transcript       []transcriptLine  `json:"transcript"`
	Metadata         map[string]any    `json:"metadata"`
	CallDurationSecs int               `json:"call_duration_secs"`
}

type voiceAIEventData struct {
	ConversationID  string           `json:"conversation_id"`
	DurationSeconds int              `json:"duration_seconds"`
	Transcript      []transcriptLine `json:"transcript"`
	Metadata        map[string]any   `json:"metadata"`
}

type transcriptLine struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// normalized flattens both shapes into one view
func (e *voiceAIEvent) normalized() (conversationID string, durationSec int, lines []transcriptLine, metadata map[string]any) {
	conversationID = e.ConversationID
	durationSec = e.CallDurationSecs
	lines = e.Transcript
	metadata = e.Metadata

	if e.Data != nil {
		if e.Data.ConversationID != "" {
			conversationID = e.Data.ConversationID
		}
		if e.Data.DurationSeconds > 0 {
			durationSec = e.Data.DurationSeconds
		}
		if len(e.Data.Transcript) > 0 {
			lines = e.Data.Transcript
		}
		if len(e.Data.Metadata) > 0 {
			metadata = e.Data.Metadata
		}
	}
	return
}

// metadataCallID pulls the explicit call ID out of event metadata
func metadataCallID(metadata map[string]any) string {
	for _, key := range []string{"call_id", "callId"} {
		if v, ok := metadata[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// handleVoiceAIEvent dispatches provider events. Unresolvable events are
// logged and acknowledged: provider-side events are fire-and-forget, a 5xx
// would only cause useless redelivery.
func (s *Server) handleVoiceAIEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.From(ctx)

	var event voiceAIEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		errutil.Handle(ctx, goerr.Wrap(err, "failed to decode voice-AI event"), "voice-AI webhook")
		writeJSON(w, map[string]any{"success": false, "error": "invalid payload"})
		return
	}

	conversationID, durationSec, lines, metadata := event.normalized()
	callID := metadataCallID(metadata)

	call, err := s.uc.ResolveProviderCall(ctx, callID, conversationID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			logger.Warn("dropping unresolvable voice-AI event",
				"type", event.Type,
				"conversation_id", conversationID,
				"metadata_call_id", callID,
			)
			writeJSON(w, map[string]bool{"success": true})
			return
		}
		errutil.Handle(ctx, err, "voice-AI event resolution failed")
		writeJSON(w, map[string]any{"success": false, "error": "resolution failed"})
		return
	}

	switch event.Type {
	case eventConversationInitiated:
		if err := s.uc.LinkConversation(ctx, call, conversationID); err != nil {
			errutil.Handle(ctx, err, "conversation link failed")
			writeJSON(w, map[string]any{"success": false, "error": "link failed"})
			return
		}

	case eventConversationTranscript:
		if err := s.uc.IngestTranscript(ctx, call, toTranscript(lines)); err != nil {
			errutil.Handle(ctx, err, "transcript ingestion failed")
			writeJSON(w, map[string]any{"success": false, "error": "ingestion failed"})
			return
		}

	case eventConversationEnded:
		if err := s.uc.FinalizeProviderCall(ctx, call, durationSec); err != nil {
			errutil.Handle(ctx, err, "provider call finalization failed")
			writeJSON(w, map[string]any{"success": false, "error": "finalization failed"})
			return
		}

	case eventPostCallTranscription:
		// Full transcripts can be large; ack first, process detached
		writeJSON(w, map[string]bool{"success": true})
		async.Dispatch(ctx, func(ctx context.Context) error {
			if err := s.uc.IngestTranscript(ctx, call, toTranscript(lines)); err != nil {
				return err
			}
			return s.uc.FinalizeProviderCall(ctx, call, durationSec)
		})
		return

	default:
		logger.Warn("unknown voice-AI event type", "type", event.Type)
	}

	writeJSON(w, map[string]bool{"success": true})
}

func toTranscript(lines []transcriptLine) []usecase.TranscriptLine {
	out := make([]usecase.TranscriptLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, usecase.TranscriptLine{Role: line.Role, Message: line.Message})
	}
	return out
}
