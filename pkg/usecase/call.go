package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"

	"github.com/everstory-ai/everstory/pkg/domain/interfaces"
	"github.com/everstory-ai/everstory/pkg/domain/model"
	"github.com/everstory-ai/everstory/pkg/domain/types"
	"github.com/everstory-ai/everstory/pkg/service/session"
	"github.com/everstory-ai/everstory/pkg/utils/logging"
)

const (
	// maxHistoryMessages bounds how much transcript feeds the reply prompt
	maxHistoryMessages = 10
	// maxRelevantMemories bounds the vector search for reply context
	maxRelevantMemories = 5
	// maxReplyTokens keeps phone replies short
	maxReplyTokens = 300
	// initialBalanceCents is granted to callers created during onboarding
	initialBalanceCents = 600

	// nameSentinel is what the extraction prompt returns when no name is found
	nameSentinel = "NONE"
)

// goodbyePhrases trigger the ending transition on case-insensitive substring
// match
var goodbyePhrases = []string{"goodbye", "bye", "hang up", "end call"}

const (
	lineGreetingNew      = "Hello! I'm Everly, and I'd love to help you capture your life stories. Before we begin, what should I call you?"
	lineGreetingResume   = "Welcome back! We didn't finish getting acquainted last time. What should I call you?"
	lineGreetingRejected = "I'm sorry, but your account is out of call credit right now. Please top up and call me back. Goodbye!"
	lineNameReprompt     = "I'm sorry, I didn't quite catch your name. Could you tell me again?"
	lineFallback         = "I'm sorry, I didn't catch that. Could you say that again?"
	lineApologyEnd       = "I'm sorry, something went wrong on my end. Let's talk again soon. Goodbye!"
	lineFarewell         = "It was lovely talking with you. Take care, and call me anytime. Goodbye!"
)

// CallTurn is the orchestrator's answer to one webhook round-trip: what to
// say, optionally pre-synthesized audio, and whether the call should end
// after playback.
type CallTurn struct {
	Text      string
	AudioURL  string
	ShouldEnd bool
	Session   *model.CallSession
}

// HandleInboundCall resolves the caller by phone number, creates the durable
// call record and the ephemeral session, and returns the opening greeting.
func (uc *UseCases) HandleInboundCall(ctx context.Context, callSID, callerPhone string) (*CallTurn, error) {
	logger := logging.From(ctx)

	user, err := uc.repo.User().GetByPhone(ctx, callerPhone)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, goerr.Wrap(err, "failed to look up caller", goerr.V("callSID", callSID))
	}

	now := time.Now().UTC()
	call := &model.Call{
		ID:          model.NewCallID(),
		CallSID:     callSID,
		CallerPhone: callerPhone,
		Direction:   types.CallDirectionInbound,
		Status:      "initiated",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if user != nil {
		call.UserID = user.ID
	}
	if _, err := uc.repo.Call().Create(ctx, call); err != nil {
		return nil, goerr.Wrap(err, "failed to create call record", goerr.V("callSID", callSID))
	}

	var (
		state     types.CallState
		greeting  string
		shouldEnd bool
	)
	switch {
	case user == nil:
		state = types.CallStateOnboarding
		greeting = lineGreetingNew

	case !user.Onboarded:
		state = types.CallStateOnboarding
		greeting = lineGreetingResume

	case user.BalanceCents > 0:
		state = types.CallStateActive
		greeting = fmt.Sprintf("Hi %s! It's so good to hear from you. What's on your mind today?", user.PreferredName)

	default:
		state = types.CallStateEnding
		greeting = lineGreetingRejected
		shouldEnd = true
	}

	opts := []model.SessionOption{
		model.WithSessionCall(call.ID),
		model.WithSessionState(state),
	}
	if user != nil {
		opts = append(opts, model.WithSessionUser(user.ID), model.WithSessionName(user.PreferredName))
	}

	sess, err := uc.sessions.Create(ctx, callSID, callerPhone, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create call session", goerr.V("callSID", callSID))
	}

	logger.Info("inbound call started",
		"call_sid", callSID,
		"call_id", call.ID,
		"state", state,
		"known_user", user != nil,
	)

	return uc.respond(ctx, sess, greeting, shouldEnd), nil
}

// HandleOutboundCallStart creates the call record and an active session for a
// call this system placed to a known user.
func (uc *UseCases) HandleOutboundCallStart(ctx context.Context, callSID, toPhone string, userID model.UserID) (*model.CallSession, error) {
	user, err := uc.repo.User().Get(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load user for outbound call", goerr.V("userID", userID))
	}

	now := time.Now().UTC()
	call := &model.Call{
		ID:          model.NewCallID(),
		UserID:      user.ID,
		CallSID:     callSID,
		CallerPhone: toPhone,
		Direction:   types.CallDirectionOutbound,
		Status:      "initiated",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := uc.repo.Call().Create(ctx, call); err != nil {
		return nil, goerr.Wrap(err, "failed to create outbound call record", goerr.V("callSID", callSID))
	}

	sess, err := uc.sessions.Create(ctx, callSID, toPhone,
		model.WithSessionCall(call.ID),
		model.WithSessionState(types.CallStateActive),
		model.WithSessionUser(user.ID),
		model.WithSessionName(user.PreferredName),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create outbound call session", goerr.V("callSID", callSID))
	}

	logging.From(ctx).Info("outbound call started", "call_sid", callSID, "user_id", userID)
	return sess, nil
}

// HandleUserInput processes one transcribed utterance according to the
// session's conversation state. A lost session degrades to an apology with
// ShouldEnd set, never an error the caller would turn into a broken call.
func (uc *UseCases) HandleUserInput(ctx context.Context, callSID, speech string) (*CallTurn, error) {
	logger := logging.From(ctx)

	sess, err := uc.sessions.Get(ctx, callSID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			logger.Warn("session lost on user input", "call_sid", callSID)
			return &CallTurn{Text: lineApologyEnd, ShouldEnd: true}, nil
		}
		return nil, goerr.Wrap(err, "failed to load call session", goerr.V("callSID", callSID))
	}

	sess = uc.appendMessage(ctx, sess, types.MessageRoleUser, speech, "")

	switch sess.State {
	case types.CallStateOnboarding:
		return uc.handleOnboardingInput(ctx, sess, speech), nil

	case types.CallStateActive:
		return uc.handleActiveInput(ctx, sess, speech), nil

	case types.CallStateEnding:
		return uc.respond(ctx, sess, lineFarewell, true), nil

	default:
		// Corrupt or pre-greeting state. End gracefully rather than guessing.
		logger.Error("unexpected session state on user input",
			"call_sid", callSID,
			"state", sess.State,
		)
		return uc.respond(ctx, sess, lineApologyEnd, true), nil
	}
}

func (uc *UseCases) handleOnboardingInput(ctx context.Context, sess *model.CallSession, speech string) *CallTurn {
	logger := logging.From(ctx)

	name, err := uc.extractName(ctx, speech)
	if err != nil {
		logger.Warn("name extraction failed", "call_sid", sess.CallSID, "error", err)
		return uc.respond(ctx, sess, lineNameReprompt, false)
	}
	if name == "" {
		return uc.respond(ctx, sess, lineNameReprompt, false)
	}

	userID, err := uc.persistPreferredName(ctx, sess, name)
	if err != nil {
		logger.Error("failed to persist preferred name", "call_sid", sess.CallSID, "error", err)
		return uc.respond(ctx, sess, lineFallback, false)
	}

	updated, err := uc.sessions.Update(ctx, sess.CallSID, func(s *model.CallSession) {
		s.State = types.CallStateActive
		s.UserID = userID
		s.PreferredName = name
	})
	if err != nil {
		logger.Error("failed to advance session to active", "call_sid", sess.CallSID, "error", err)
		updated = sess
	}

	reply := fmt.Sprintf("It's wonderful to meet you, %s! I'm here whenever you want to share a story. What would you like to talk about first?", name)
	return uc.respond(ctx, updated, reply, false)
}

// persistPreferredName stores the name on the existing user, or creates a new
// user linked to the caller's phone and the current call record.
func (uc *UseCases) persistPreferredName(ctx context.Context, sess *model.CallSession, name string) (model.UserID, error) {
	if sess.UserID != "" {
		user, err := uc.repo.User().Get(ctx, sess.UserID)
		if err != nil {
			return "", goerr.Wrap(err, "failed to load user", goerr.V("userID", sess.UserID))
		}
		user.PreferredName = name
		user.Onboarded = true
		user.UpdatedAt = time.Now().UTC()
		if err := uc.repo.User().Update(ctx, user); err != nil {
			return "", goerr.Wrap(err, "failed to update user", goerr.V("userID", user.ID))
		}
		return user.ID, nil
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:            model.NewUserID(),
		PreferredName: name,
		Phone:         sess.CallerPhone,
		Onboarded:     true,
		BalanceCents:  initialBalanceCents,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := uc.repo.User().Create(ctx, user); err != nil {
		return "", goerr.Wrap(err, "failed to create user")
	}

	// Link the durable call record so call-end can enqueue extraction
	if sess.CallID != "" {
		call, err := uc.repo.Call().Get(ctx, sess.CallID)
		if err != nil {
			return user.ID, goerr.Wrap(err, "failed to load call for user link", goerr.V("callID", sess.CallID))
		}
		call.UserID = user.ID
		call.UpdatedAt = now
		if err := uc.repo.Call().Update(ctx, call); err != nil {
			return user.ID, goerr.Wrap(err, "failed to link call to user", goerr.V("callID", call.ID))
		}
	}

	return user.ID, nil
}

func (uc *UseCases) handleActiveInput(ctx context.Context, sess *model.CallSession, speech string) *CallTurn {
	logger := logging.From(ctx)

	if isGoodbye(speech) {
		updated, err := uc.sessions.Update(ctx, sess.CallSID, func(s *model.CallSession) {
			s.State = types.CallStateEnding
		})
		if err != nil {
			logger.Error("failed to advance session to ending", "call_sid", sess.CallSID, "error", err)
			updated = sess
		}

		farewell := lineFarewell
		if updated.PreferredName != "" {
			farewell = fmt.Sprintf("It was lovely talking with you, %s. Take care, and call me anytime. Goodbye!", updated.PreferredName)
		}
		return uc.respond(ctx, updated, farewell, true)
	}

	reply, err := uc.generateReply(ctx, sess, speech)
	if err != nil {
		logger.Error("reply generation failed", "call_sid", sess.CallSID, "error", err)
		return uc.respond(ctx, sess, lineFallback, false)
	}

	return uc.respond(ctx, sess, reply, false)
}

// isGoodbye reports whether the utterance contains a goodbye phrase
func isGoodbye(speech string) bool {
	lowered := strings.ToLower(speech)
	for _, phrase := range goodbyePhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// HandleCallEnd finalizes a call once. Session deletion is the idempotency
// gate: the second invocation observes no session and does nothing, so the
// extraction job is enqueued at most once per call even when both the
// telephony status webhook and the voice-AI ended event fire.
func (uc *UseCases) HandleCallEnd(ctx context.Context, callSID string, durationSec int) error {
	logger := logging.From(ctx)

	sess, err := uc.sessions.Get(ctx, callSID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			logger.Debug("call already finalized", "call_sid", callSID)
			return nil
		}
		return goerr.Wrap(err, "failed to load session for call end", goerr.V("callSID", callSID))
	}

	if err := uc.sessions.Delete(ctx, callSID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			// Lost the race against a concurrent finalizer
			return nil
		}
		return goerr.Wrap(err, "failed to delete session", goerr.V("callSID", callSID))
	}

	if err := uc.queue.Add(ctx, types.JobNameCalculateCallCost,
		&model.CalculateCallCostPayload{CallID: sess.CallID, DurationSec: durationSec},
		interfaces.WithJobID("cost:"+string(sess.CallID)),
	); err != nil {
		return goerr.Wrap(err, "failed to enqueue cost job", goerr.V("callID", sess.CallID))
	}

	if sess.UserID != "" {
		if err := uc.queue.Add(ctx, types.JobNameExtractMemories,
			&model.ExtractMemoriesPayload{CallID: sess.CallID, UserID: sess.UserID},
			interfaces.WithJobID("extract:"+string(sess.CallID)),
		); err != nil {
			return goerr.Wrap(err, "failed to enqueue extraction job", goerr.V("callID", sess.CallID))
		}
	}

	logger.Info("call finalized",
		"call_sid", callSID,
		"call_id", sess.CallID,
		"user_id", sess.UserID,
		"duration_sec", durationSec,
	)
	return nil
}

// UpdateCallStatus records a non-terminal provider status on the call. An
// unknown call SID is logged and ignored: status webhooks can outlive records
// in development resets.
func (uc *UseCases) UpdateCallStatus(ctx context.Context, callSID, status string, durationSec int) error {
	call, err := uc.repo.Call().GetByCallSID(ctx, callSID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			logging.From(ctx).Warn("status for unknown call", "call_sid", callSID, "status", status)
			return nil
		}
		return goerr.Wrap(err, "failed to load call for status update", goerr.V("callSID", callSID))
	}

	call.Status = status
	if durationSec > 0 {
		call.DurationSec = durationSec
	}
	call.UpdatedAt = time.Now().UTC()
	if err := uc.repo.Call().Update(ctx, call); err != nil {
		return goerr.Wrap(err, "failed to update call status", goerr.V("callSID", callSID))
	}
	return nil
}

// respond synthesizes speech for the reply, persists it as an assistant
// message, and packages the turn. Synthesis and persistence failures degrade
// to a text-only turn; the caller must always get something to play.
func (uc *UseCases) respond(ctx context.Context, sess *model.CallSession, text string, shouldEnd bool) *CallTurn {
	audioURL := uc.synthesize(ctx, text)
	sess = uc.appendMessage(ctx, sess, types.MessageRoleAssistant, text, audioURL)

	return &CallTurn{
		Text:      text,
		AudioURL:  audioURL,
		ShouldEnd: shouldEnd,
		Session:   sess,
	}
}

func (uc *UseCases) synthesize(ctx context.Context, text string) string {
	if uc.speech == nil {
		return ""
	}

	audioURL, err := uc.speech.Synthesize(ctx, text)
	if err != nil {
		logging.From(ctx).Warn("speech synthesis failed, falling back to text", "error", err)
		return ""
	}
	return audioURL
}

// appendMessage persists one transcript message and bumps the session's
// message counter. Failures are logged, not propagated: losing a transcript
// line must not break the live call.
func (uc *UseCases) appendMessage(ctx context.Context, sess *model.CallSession, role types.MessageRole, content, audioURL string) *model.CallSession {
	logger := logging.From(ctx)
	now := time.Now().UTC()

	msg := &model.ConversationMessage{
		ID:          model.NewMessageID(),
		CallID:      sess.CallID,
		Role:        role,
		Content:     content,
		AudioURL:    audioURL,
		TimestampMS: model.MessageTimestamp(now, sess.MessageCount),
		CreatedAt:   now,
	}
	if _, err := uc.repo.Message().Append(ctx, msg); err != nil {
		logger.Error("failed to persist message", "call_sid", sess.CallSID, "role", role, "error", err)
	}

	updated, err := uc.sessions.Update(ctx, sess.CallSID, func(s *model.CallSession) {
		s.MessageCount++
	})
	if err != nil {
		logger.Warn("failed to bump message count", "call_sid", sess.CallSID, "error", err)
		sess.MessageCount++
		return sess
	}
	return updated
}

// extractName asks the LLM to pull a name out of free-form speech. An empty
// result means no name was found and the caller should reprompt.
func (uc *UseCases) extractName(ctx context.Context, speech string) (string, error) {
	llmSession, err := uc.llm.NewSession(ctx,
		gollem.WithSessionSystemPrompt(nameExtractionSystemPrompt),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create name extraction session")
	}

	resp, err := llmSession.GenerateContent(ctx, gollem.Text(speech))
	if err != nil {
		return "", goerr.Wrap(err, "failed to extract name")
	}
	if len(resp.Texts) == 0 {
		return "", goerr.New("empty name extraction response")
	}

	name := strings.TrimSpace(resp.Texts[0])
	name = strings.Trim(name, `"'`)
	if name == "" || strings.EqualFold(name, nameSentinel) {
		return "", nil
	}
	return name, nil
}

const nameExtractionSystemPrompt = `You extract a person's preferred name from a spoken sentence.
Rules:
- Respond with the bare name only, no punctuation, no explanation.
- "Call me Alex" -> Alex
- "My name is Rosa Maria" -> Rosa Maria
- If the sentence contains no name, respond with exactly NONE.`

// generateReply builds the conversational context (recent transcript plus
// semantically relevant memories) and asks the LLM for a short reply.
func (uc *UseCases) generateReply(ctx context.Context, sess *model.CallSession, speech string) (string, error) {
	history, err := uc.repo.Message().ListByCall(ctx, sess.CallID)
	if err != nil {
		return "", goerr.Wrap(err, "failed to load transcript", goerr.V("callID", sess.CallID))
	}
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}

	memories := uc.relevantMemories(ctx, sess.UserID, speech)

	llmSession, err := uc.llm.NewSession(ctx,
		gollem.WithSessionSystemPrompt(buildReplySystemPrompt(sess.PreferredName, memories)),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create reply session")
	}

	resp, err := llmSession.GenerateContent(ctx, gollem.Text(buildReplyPrompt(history, speech)))
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate reply")
	}
	if len(resp.Texts) == 0 || strings.TrimSpace(resp.Texts[0]) == "" {
		return "", goerr.New("empty reply from LLM")
	}

	return strings.TrimSpace(resp.Texts[0]), nil
}

// relevantMemories runs a best-effort vector search. Any failure returns an
// empty set: memory context enriches replies, it never blocks them.
func (uc *UseCases) relevantMemories(ctx context.Context, userID model.UserID, speech string) []*model.Memory {
	if userID == "" {
		return nil
	}
	logger := logging.From(ctx)

	embeddings, err := uc.llm.GenerateEmbedding(ctx, model.EmbeddingDimension, []string{speech})
	if err != nil || len(embeddings) == 0 {
		logger.Warn("embedding generation failed for memory search", "error", err)
		return nil
	}

	vec := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		vec[i] = float32(v)
	}

	memories, err := uc.repo.Memory().FindByEmbedding(ctx, userID, vec, maxRelevantMemories)
	if err != nil {
		logger.Warn("memory search failed", "user_id", userID, "error", err)
		return nil
	}
	return memories
}

func buildReplySystemPrompt(preferredName string, memories []*model.Memory) string {
	var sb strings.Builder

	sb.WriteString("You are Everly, a warm phone companion who helps people record their life stories.\n")
	sb.WriteString(fmt.Sprintf("This is a phone call: keep every reply under %d tokens, conversational and easy to hear.\n", maxReplyTokens))
	sb.WriteString("Ask gentle follow-up questions that draw out details of the caller's memories.\n")
	if preferredName != "" {
		sb.WriteString(fmt.Sprintf("The caller's name is %s.\n", preferredName))
	}

	if len(memories) > 0 {
		sb.WriteString("\nThings you already know about the caller:\n")
		for _, mem := range memories {
			sb.WriteString("- ")
			sb.WriteString(mem.Content)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func buildReplyPrompt(history []*model.ConversationMessage, speech string) string {
	var sb strings.Builder

	if len(history) > 0 {
		sb.WriteString("Recent conversation:\n")
		for _, msg := range history {
			sb.WriteString(string(msg.Role))
			sb.WriteString(": ")
			sb.WriteString(msg.Content)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("The caller just said: ")
	sb.WriteString(speech)
	return sb.String()
}
