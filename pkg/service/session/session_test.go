package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/everstory-ai/everstory/pkg/domain/model"
	"github.com/everstory-ai/everstory/pkg/domain/types"
	"github.com/everstory-ai/everstory/pkg/service/session"
)

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := session.New(session.NewMemoryKV())

	t.Run("create then get returns the same session", func(t *testing.T) {
		created, err := store.Create(ctx, "CA001", "+15551234567",
			model.WithSessionState(types.CallStateOnboarding),
			model.WithSessionCall("call-1"),
		)
		gt.NoError(t, err).Required()
		gt.Value(t, created.CreatedAt).Equal(created.UpdatedAt)

		got, err := store.Get(ctx, "CA001")
		gt.NoError(t, err).Required()
		gt.Value(t, got.State).Equal(types.CallStateOnboarding)
		gt.Value(t, got.CallID).Equal(model.CallID("call-1"))
		gt.Value(t, got.CallerPhone).Equal("+15551234567")
	})

	t.Run("update strictly increases updatedAt", func(t *testing.T) {
		before, err := store.Get(ctx, "CA001")
		gt.NoError(t, err).Required()

		updated, err := store.Update(ctx, "CA001", func(s *model.CallSession) {
			s.State = types.CallStateActive
		})
		gt.NoError(t, err).Required()
		gt.Value(t, updated.State).Equal(types.CallStateActive)
		gt.Bool(t, updated.UpdatedAt.After(before.UpdatedAt)).True()

		again, err := store.Update(ctx, "CA001", func(s *model.CallSession) {
			s.MessageCount++
		})
		gt.NoError(t, err).Required()
		gt.Bool(t, again.UpdatedAt.After(updated.UpdatedAt)).True()
	})

	t.Run("delete removes the session", func(t *testing.T) {
		gt.NoError(t, store.Delete(ctx, "CA001"))

		_, err := store.Get(ctx, "CA001")
		gt.Bool(t, errors.Is(err, session.ErrSessionNotFound)).True()
	})

	t.Run("deleting a missing session is an error", func(t *testing.T) {
		err := store.Delete(ctx, "CA001")
		gt.Bool(t, errors.Is(err, session.ErrSessionNotFound)).True()
	})

	t.Run("get of a never-created session fails", func(t *testing.T) {
		_, err := store.Get(ctx, "CA-unknown")
		gt.Bool(t, errors.Is(err, session.ErrSessionNotFound)).True()
	})
}

func TestSessionExpiry(t *testing.T) {
	ctx := context.Background()
	store := session.New(session.NewMemoryKV(), session.WithTTL(30*time.Millisecond))

	_, err := store.Create(ctx, "CA002", "+15550000000")
	gt.NoError(t, err).Required()

	time.Sleep(60 * time.Millisecond)

	_, err = store.Get(ctx, "CA002")
	gt.Bool(t, errors.Is(err, session.ErrSessionNotFound)).True()
}

func TestSessionTTLRefresh(t *testing.T) {
	ctx := context.Background()
	store := session.New(session.NewMemoryKV(), session.WithTTL(80*time.Millisecond))

	_, err := store.Create(ctx, "CA003", "+15550000000")
	gt.NoError(t, err).Required()

	// Keep touching before expiry; the session must survive past the
	// original TTL window
	for i := 0; i < 4; i++ {
		time.Sleep(40 * time.Millisecond)
		_, err := store.Update(ctx, "CA003", func(s *model.CallSession) {
			s.MessageCount++
		})
		gt.NoError(t, err).Required()
	}

	got, err := store.Get(ctx, "CA003")
	gt.NoError(t, err).Required()
	gt.Number(t, got.MessageCount).Equal(4)
}

func TestSessionContext(t *testing.T) {
	ctx := context.Background()
	store := session.New(session.NewMemoryKV())

	_, err := store.Create(ctx, "CA004", "+15550000000")
	gt.NoError(t, err).Required()

	t.Run("missing key returns empty", func(t *testing.T) {
		v, err := store.GetContext(ctx, "CA004", "last_intent")
		gt.NoError(t, err)
		gt.Value(t, v).Equal("")
	})

	t.Run("set then get round-trips", func(t *testing.T) {
		gt.NoError(t, store.SetContext(ctx, "CA004", "last_intent", "storytelling"))

		v, err := store.GetContext(ctx, "CA004", "last_intent")
		gt.NoError(t, err)
		gt.Value(t, v).Equal("storytelling")
	})
}
