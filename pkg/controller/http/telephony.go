package http

import (
	"net/http"
	"strconv"

	"github.com/m-mizutani/goerr/v2"

	"github.com/everstory-ai/everstory/pkg/controller/http/twiml"
	"github.com/everstory-ai/everstory/pkg/usecase"
	"github.com/everstory-ai/everstory/pkg/utils/errutil"
	"github.com/everstory-ai/everstory/pkg/utils/logging"
)

const (
	lineSilencePrompt = "Are you still there? Take your time, I'm listening."
	lineTimeoutBye    = "It seems we got disconnected. Call me back anytime. Goodbye!"
	lineInternalError = "I'm sorry, something went wrong on my end. Please call back in a moment. Goodbye!"
)

// terminalCallStatuses are the provider statuses that finalize a call
var terminalCallStatuses = map[string]bool{
	"completed": true,
	"failed":    true,
	"busy":      true,
	"no-answer": true,
	"canceled":  true,
}

// handleTelephonyVoice answers the call-start webhook with the greeting and
// the first listen. Any internal failure still yields executable markup; the
// caller must never get a dropped connection from an error.
func (s *Server) handleTelephonyVoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		errutil.Handle(ctx, goerr.Wrap(err, "failed to parse voice webhook form"), "voice webhook")
		writeFallbackTwiML(w)
		return
	}

	callSID := r.PostFormValue("CallSid")
	from := r.PostFormValue("From")
	if callSID == "" {
		errutil.Handle(ctx, goerr.New("voice webhook without CallSid"), "voice webhook")
		writeFallbackTwiML(w)
		return
	}

	turn, err := s.uc.HandleInboundCall(ctx, callSID, from)
	if err != nil {
		errutil.Handle(ctx, err, "inbound call handling failed")
		writeFallbackTwiML(w)
		return
	}

	writeTurnTwiML(w, turn)
}

// handleTelephonyGather processes a speech result and re-arms listening. A
// silent caller gets a second chance before the hard timeout hangs up.
func (s *Server) handleTelephonyGather(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		errutil.Handle(ctx, goerr.Wrap(err, "failed to parse gather webhook form"), "gather webhook")
		writeFallbackTwiML(w)
		return
	}

	callSID := r.PostFormValue("CallSid")
	speech := r.PostFormValue("SpeechResult")
	if callSID == "" {
		errutil.Handle(ctx, goerr.New("gather webhook without CallSid"), "gather webhook")
		writeFallbackTwiML(w)
		return
	}

	if speech == "" {
		// Nothing heard: re-arm instead of dropping the caller
		resp := twiml.New(
			twiml.SpeechGather(pathTelephonyGather).Add(&twiml.Say{Text: lineSilencePrompt}),
			&twiml.Say{Text: lineTimeoutBye},
			&twiml.Hangup{},
		)
		if err := resp.Write(w); err != nil {
			errutil.Handle(ctx, err, "failed to write gather reprompt")
		}
		return
	}

	turn, err := s.uc.HandleUserInput(ctx, callSID, speech)
	if err != nil {
		errutil.Handle(ctx, err, "user input handling failed")
		writeFallbackTwiML(w)
		return
	}

	writeTurnTwiML(w, turn)
}

// handleTelephonyStatus records status transitions and finalizes the call on
// terminal statuses. The provider expects JSON, not markup.
func (s *Server) handleTelephonyStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		errutil.Handle(ctx, goerr.Wrap(err, "failed to parse status webhook form"), "status webhook")
		writeJSON(w, map[string]bool{"success": false})
		return
	}

	callSID := r.PostFormValue("CallSid")
	status := r.PostFormValue("CallStatus")
	duration, _ := strconv.Atoi(r.PostFormValue("CallDuration"))

	logging.From(ctx).Info("call status", "call_sid", callSID, "status", status, "duration", duration)

	if err := s.uc.UpdateCallStatus(ctx, callSID, status, duration); err != nil {
		errutil.Handle(ctx, err, "call status update failed")
		writeJSON(w, map[string]bool{"success": false})
		return
	}

	if terminalCallStatuses[status] {
		if err := s.uc.HandleCallEnd(ctx, callSID, duration); err != nil {
			errutil.Handle(ctx, err, "call end handling failed")
			writeJSON(w, map[string]bool{"success": false})
			return
		}
	}

	writeJSON(w, map[string]bool{"success": true})
}

// writeTurnTwiML converts an orchestrator turn into markup: play the
// synthesized audio when available, speak the text otherwise, then either
// hang up or listen for the next utterance.
func writeTurnTwiML(w http.ResponseWriter, turn *usecase.CallTurn) {
	resp := twiml.New()

	var spoken any
	if turn.AudioURL != "" {
		spoken = &twiml.Play{URL: turn.AudioURL}
	} else {
		spoken = &twiml.Say{Text: turn.Text}
	}

	if turn.ShouldEnd {
		resp.Add(spoken, &twiml.Hangup{})
	} else {
		resp.Add(
			twiml.SpeechGather(pathTelephonyGather).Add(spoken),
			twiml.SpeechGather(pathTelephonyGather).Add(&twiml.Say{Text: lineSilencePrompt}),
			&twiml.Say{Text: lineTimeoutBye},
			&twiml.Hangup{},
		)
	}

	if err := resp.Write(w); err != nil {
		logging.Default().Error("failed to write twiml turn", "error", err)
	}
}

// writeFallbackTwiML is the catch-all response for internal errors
func writeFallbackTwiML(w http.ResponseWriter) {
	resp := twiml.New(
		&twiml.Say{Text: lineInternalError},
		&twiml.Hangup{},
	)
	if err := resp.Write(w); err != nil {
		logging.Default().Error("failed to write fallback twiml", "error", err)
	}
}
