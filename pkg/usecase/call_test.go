package usecase_test

import (
	"context"
	"strings"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"

	"github.com/everstory-ai/everstory/pkg/domain/model"
	"github.com/everstory-ai/everstory/pkg/domain/types"
	"github.com/everstory-ai/everstory/pkg/repository/memory"
	"github.com/everstory-ai/everstory/pkg/service/session"
	"github.com/everstory-ai/everstory/pkg/usecase"
)

// conversationalLLM answers name extraction with the configured name and
// reply prompts with a canned response
func conversationalLLM(name string) *mockLLMClient {
	return &mockLLMClient{
		newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
			return &mockLLMSession{
				generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
					if strings.Contains(inputText(input...), "The caller just said:") {
						return &gollem.Response{Texts: []string{"That sounds lovely. What happened next?"}}, nil
					}
					return &gollem.Response{Texts: []string{name}}, nil
				},
			}, nil
		},
	}
}

func newTestUseCases(llm gollem.LLMClient) (*usecase.UseCases, *memory.Memory, *session.Store, *recordingQueue) {
	repo := memory.New()
	sessions := session.New(session.NewMemoryKV())
	queue := &recordingQueue{}
	uc := usecase.New(repo, sessions, queue, llm)
	return uc, repo, sessions, queue
}

func TestHandleInboundCall(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown caller starts onboarding", func(t *testing.T) {
		uc, repo, sessions, _ := newTestUseCases(&mockLLMClient{})

		turn, err := uc.HandleInboundCall(ctx, "CA100", "+15550001111")
		gt.NoError(t, err).Required()

		gt.Bool(t, strings.Contains(turn.Text, "what should I call you")).True()
		gt.Bool(t, turn.ShouldEnd).False()
		gt.Value(t, turn.Session.State).Equal(types.CallStateOnboarding)
		gt.Value(t, turn.Session.UserID).Equal(model.UserID(""))

		sess, err := sessions.Get(ctx, "CA100")
		gt.NoError(t, err).Required()

		call, err := repo.Call().Get(ctx, sess.CallID)
		gt.NoError(t, err).Required()
		gt.Value(t, call.CallSID).Equal("CA100")
		gt.Value(t, call.Status).Equal("initiated")
		gt.Value(t, call.Direction).Equal(types.CallDirectionInbound)
	})

	t.Run("known caller with balance resumes conversation", func(t *testing.T) {
		uc, repo, _, _ := newTestUseCases(&mockLLMClient{})

		_, err := repo.User().Create(ctx, &model.User{
			ID:            "user-1",
			PreferredName: "Rosa",
			Phone:         "+15550002222",
			Onboarded:     true,
			BalanceCents:  500,
		})
		gt.NoError(t, err).Required()

		turn, err := uc.HandleInboundCall(ctx, "CA101", "+15550002222")
		gt.NoError(t, err).Required()

		gt.Bool(t, strings.Contains(turn.Text, "Rosa")).True()
		gt.Bool(t, turn.ShouldEnd).False()
		gt.Value(t, turn.Session.State).Equal(types.CallStateActive)
		gt.Value(t, turn.Session.UserID).Equal(model.UserID("user-1"))
	})

	t.Run("known caller without a name is re-onboarded", func(t *testing.T) {
		uc, repo, _, _ := newTestUseCases(&mockLLMClient{})

		_, err := repo.User().Create(ctx, &model.User{
			ID:           "user-2",
			Phone:        "+15550003333",
			Onboarded:    false,
			BalanceCents: 500,
		})
		gt.NoError(t, err).Required()

		turn, err := uc.HandleInboundCall(ctx, "CA102", "+15550003333")
		gt.NoError(t, err).Required()

		gt.Value(t, turn.Session.State).Equal(types.CallStateOnboarding)
		gt.Bool(t, strings.Contains(turn.Text, "Welcome back")).True()
	})

	t.Run("caller without balance is turned away", func(t *testing.T) {
		uc, repo, _, _ := newTestUseCases(&mockLLMClient{})

		_, err := repo.User().Create(ctx, &model.User{
			ID:            "user-3",
			PreferredName: "Sam",
			Phone:         "+15550004444",
			Onboarded:     true,
			BalanceCents:  0,
		})
		gt.NoError(t, err).Required()

		turn, err := uc.HandleInboundCall(ctx, "CA103", "+15550004444")
		gt.NoError(t, err).Required()

		gt.Bool(t, turn.ShouldEnd).True()
		gt.Value(t, turn.Session.State).Equal(types.CallStateEnding)
		gt.Bool(t, strings.Contains(turn.Text, "out of call credit")).True()
	})
}

func TestHandleUserInputOnboarding(t *testing.T) {
	ctx := context.Background()

	t.Run("name creates a user and activates the session", func(t *testing.T) {
		uc, repo, sessions, _ := newTestUseCases(conversationalLLM("Alex"))

		_, err := uc.HandleInboundCall(ctx, "CA200", "+15550005555")
		gt.NoError(t, err).Required()

		turn, err := uc.HandleUserInput(ctx, "CA200", "You can call me Alex")
		gt.NoError(t, err).Required()

		gt.Bool(t, strings.Contains(turn.Text, "Alex")).True()
		gt.Bool(t, turn.ShouldEnd).False()
		gt.Value(t, turn.Session.State).Equal(types.CallStateActive)
		gt.Value(t, turn.Session.PreferredName).Equal("Alex")

		user, err := repo.User().GetByPhone(ctx, "+15550005555")
		gt.NoError(t, err).Required()
		gt.Value(t, user.PreferredName).Equal("Alex")
		gt.Bool(t, user.Onboarded).True()
		gt.Bool(t, user.BalanceCents > 0).True()

		// The durable call record is linked so extraction can run later
		sess, err := sessions.Get(ctx, "CA200")
		gt.NoError(t, err).Required()
		call, err := repo.Call().Get(ctx, sess.CallID)
		gt.NoError(t, err).Required()
		gt.Value(t, call.UserID).Equal(user.ID)
	})

	t.Run("no name in speech reprompts", func(t *testing.T) {
		uc, repo, _, _ := newTestUseCases(conversationalLLM("NONE"))

		_, err := uc.HandleInboundCall(ctx, "CA201", "+15550006666")
		gt.NoError(t, err).Required()

		turn, err := uc.HandleUserInput(ctx, "CA201", "Uh, what is this?")
		gt.NoError(t, err).Required()

		gt.Bool(t, strings.Contains(turn.Text, "catch your name")).True()
		gt.Value(t, turn.Session.State).Equal(types.CallStateOnboarding)

		_, err = repo.User().GetByPhone(ctx, "+15550006666")
		gt.Error(t, err)
	})

	t.Run("quoted name is unwrapped", func(t *testing.T) {
		uc, repo, _, _ := newTestUseCases(conversationalLLM(`"Maria"`))

		_, err := uc.HandleInboundCall(ctx, "CA202", "+15550007777")
		gt.NoError(t, err).Required()

		_, err = uc.HandleUserInput(ctx, "CA202", "My name is Maria")
		gt.NoError(t, err).Required()

		user, err := repo.User().GetByPhone(ctx, "+15550007777")
		gt.NoError(t, err).Required()
		gt.Value(t, user.PreferredName).Equal("Maria")
	})
}

func TestHandleUserInputActive(t *testing.T) {
	ctx := context.Background()

	setupActiveCall := func(t *testing.T, uc *usecase.UseCases, repo *memory.Memory, callSID string) {
		t.Helper()
		_, err := repo.User().Create(ctx, &model.User{
			ID:            "user-9",
			PreferredName: "Grace",
			Phone:         "+15550008888",
			Onboarded:     true,
			BalanceCents:  500,
		})
		gt.NoError(t, err).Required()

		_, err = uc.HandleInboundCall(ctx, callSID, "+15550008888")
		gt.NoError(t, err).Required()
	}

	t.Run("normal utterance gets an LLM reply", func(t *testing.T) {
		uc, repo, _, _ := newTestUseCases(conversationalLLM(""))
		setupActiveCall(t, uc, repo, "CA300")

		turn, err := uc.HandleUserInput(ctx, "CA300", "I was thinking about my grandmother's kitchen today.")
		gt.NoError(t, err).Required()

		gt.Value(t, turn.Text).Equal("That sounds lovely. What happened next?")
		gt.Bool(t, turn.ShouldEnd).False()
	})

	t.Run("goodbye ends the call with a personalized farewell", func(t *testing.T) {
		uc, repo, sessions, _ := newTestUseCases(conversationalLLM(""))
		setupActiveCall(t, uc, repo, "CA301")

		turn, err := uc.HandleUserInput(ctx, "CA301", "Alright, goodbye now!")
		gt.NoError(t, err).Required()

		gt.Bool(t, turn.ShouldEnd).True()
		gt.Bool(t, strings.Contains(turn.Text, "Grace")).True()

		sess, err := sessions.Get(ctx, "CA301")
		gt.NoError(t, err).Required()
		gt.Value(t, sess.State).Equal(types.CallStateEnding)
	})

	t.Run("LLM failure falls back to a retry line", func(t *testing.T) {
		llm := &mockLLMClient{
			newSessionFn: func(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
				return &mockLLMSession{
					generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
						return &gollem.Response{Texts: []string{""}}, nil
					},
				}, nil
			},
		}
		uc, repo, _, _ := newTestUseCases(llm)
		setupActiveCall(t, uc, repo, "CA302")

		turn, err := uc.HandleUserInput(ctx, "CA302", "Tell me something.")
		gt.NoError(t, err).Required()

		gt.Bool(t, strings.Contains(turn.Text, "didn't catch that")).True()
		gt.Bool(t, turn.ShouldEnd).False()
	})

	t.Run("transcript is persisted for both sides", func(t *testing.T) {
		uc, repo, sessions, _ := newTestUseCases(conversationalLLM(""))
		setupActiveCall(t, uc, repo, "CA303")

		_, err := uc.HandleUserInput(ctx, "CA303", "I grew up in Ohio.")
		gt.NoError(t, err).Required()

		sess, err := sessions.Get(ctx, "CA303")
		gt.NoError(t, err).Required()

		messages, err := repo.Message().ListByCall(ctx, sess.CallID)
		gt.NoError(t, err).Required()

		// greeting + user utterance + reply
		gt.Array(t, messages).Length(3).Required()
		gt.Value(t, messages[0].Role).Equal(types.MessageRoleAssistant)
		gt.Value(t, messages[1].Role).Equal(types.MessageRoleUser)
		gt.Value(t, messages[1].Content).Equal("I grew up in Ohio.")
		gt.Value(t, messages[2].Role).Equal(types.MessageRoleAssistant)
	})
}

func TestHandleUserInputLostSession(t *testing.T) {
	ctx := context.Background()
	uc, _, _, _ := newTestUseCases(&mockLLMClient{})

	turn, err := uc.HandleUserInput(ctx, "CA-never-created", "Hello?")
	gt.NoError(t, err).Required()

	gt.Bool(t, turn.ShouldEnd).True()
	gt.Bool(t, strings.Contains(turn.Text, "something went wrong")).True()
}

func TestHandleCallEnd(t *testing.T) {
	ctx := context.Background()

	t.Run("identified call enqueues cost and extraction exactly once", func(t *testing.T) {
		uc, repo, sessions, queue := newTestUseCases(&mockLLMClient{})

		_, err := repo.User().Create(ctx, &model.User{
			ID:            "user-5",
			PreferredName: "Ben",
			Phone:         "+15551110000",
			Onboarded:     true,
			BalanceCents:  500,
		})
		gt.NoError(t, err).Required()

		_, err = uc.HandleInboundCall(ctx, "CA400", "+15551110000")
		gt.NoError(t, err).Required()

		sess, err := sessions.Get(ctx, "CA400")
		gt.NoError(t, err).Required()

		// Both the telephony status webhook and the voice-AI ended event
		// land here; the second must be a no-op
		gt.NoError(t, uc.HandleCallEnd(ctx, "CA400", 120))
		gt.NoError(t, uc.HandleCallEnd(ctx, "CA400", 120))

		costJobs := queue.JobsNamed(types.JobNameCalculateCallCost)
		gt.Array(t, costJobs).Length(1).Required()
		gt.Value(t, costJobs[0].JobID).Equal("cost:" + string(sess.CallID))

		extractJobs := queue.JobsNamed(types.JobNameExtractMemories)
		gt.Array(t, extractJobs).Length(1).Required()
		gt.Value(t, extractJobs[0].JobID).Equal("extract:" + string(sess.CallID))

		_, err = sessions.Get(ctx, "CA400")
		gt.Error(t, err)
	})

	t.Run("anonymous call skips extraction", func(t *testing.T) {
		uc, _, _, queue := newTestUseCases(&mockLLMClient{})

		_, err := uc.HandleInboundCall(ctx, "CA401", "+15551112222")
		gt.NoError(t, err).Required()

		gt.NoError(t, uc.HandleCallEnd(ctx, "CA401", 30))

		gt.Array(t, queue.JobsNamed(types.JobNameCalculateCallCost)).Length(1)
		gt.Array(t, queue.JobsNamed(types.JobNameExtractMemories)).Length(0)
	})

	t.Run("unknown call SID is a no-op", func(t *testing.T) {
		uc, _, _, queue := newTestUseCases(&mockLLMClient{})

		gt.NoError(t, uc.HandleCallEnd(ctx, "CA-unknown", 60))
		gt.Array(t, queue.Jobs()).Length(0)
	})
}

func TestHandleOutboundCallStart(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an outbound call with an active session", func(t *testing.T) {
		uc, repo, sessions, _ := newTestUseCases(&mockLLMClient{})

		_, err := repo.User().Create(ctx, &model.User{
			ID:            "user-8",
			PreferredName: "Walt",
			Phone:         "+15550008888",
			Onboarded:     true,
			BalanceCents:  500,
		})
		gt.NoError(t, err).Required()

		sess, err := uc.HandleOutboundCallStart(ctx, "CA180", "+15550008888", "user-8")
		gt.NoError(t, err).Required()

		gt.Value(t, sess.State).Equal(types.CallStateActive)
		gt.Value(t, sess.UserID).Equal(model.UserID("user-8"))
		gt.Value(t, sess.PreferredName).Equal("Walt")

		call, err := repo.Call().Get(ctx, sess.CallID)
		gt.NoError(t, err).Required()
		gt.Value(t, call.Direction).Equal(types.CallDirectionOutbound)
		gt.Value(t, call.CallSID).Equal("CA180")
		gt.Value(t, call.UserID).Equal(model.UserID("user-8"))

		_, err = sessions.Get(ctx, "CA180")
		gt.NoError(t, err)
	})

	t.Run("unknown user is an error", func(t *testing.T) {
		uc, _, _, _ := newTestUseCases(&mockLLMClient{})

		_, err := uc.HandleOutboundCallStart(ctx, "CA181", "+15550009999", "user-nobody")
		gt.Error(t, err)
	})
}

func TestUpdateCallStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("known call gets status and duration", func(t *testing.T) {
		uc, repo, sessions, _ := newTestUseCases(&mockLLMClient{})

		_, err := uc.HandleInboundCall(ctx, "CA500", "+15551113333")
		gt.NoError(t, err).Required()

		gt.NoError(t, uc.UpdateCallStatus(ctx, "CA500", "in-progress", 0))
		gt.NoError(t, uc.UpdateCallStatus(ctx, "CA500", "completed", 95))

		sess, err := sessions.Get(ctx, "CA500")
		gt.NoError(t, err).Required()

		call, err := repo.Call().Get(ctx, sess.CallID)
		gt.NoError(t, err).Required()
		gt.Value(t, call.Status).Equal("completed")
		gt.Number(t, call.DurationSec).Equal(95)
	})

	t.Run("unknown call SID is ignored", func(t *testing.T) {
		uc, _, _, _ := newTestUseCases(&mockLLMClient{})
		gt.NoError(t, uc.UpdateCallStatus(ctx, "CA-ghost", "completed", 10))
	})
}

func TestIsGoodbye(t *testing.T) {
	cases := []struct {
		speech string
		want   bool
	}{
		{"Goodbye!", true},
		{"okay bye now", true},
		{"I have to hang up", true},
		{"please end call", true},
		{"BYE", true},
		{"I bought a new bicycle", false},
		{"", false},
	}

	for _, tc := range cases {
		t.Run(tc.speech, func(t *testing.T) {
			gt.Value(t, usecase.IsGoodbye(tc.speech)).Equal(tc.want)
		})
	}
}
