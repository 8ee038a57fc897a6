package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/everstory-ai/everstory/pkg/domain/interfaces"
	"github.com/everstory-ai/everstory/pkg/domain/model"
	"github.com/everstory-ai/everstory/pkg/domain/types"
	"github.com/everstory-ai/everstory/pkg/utils/logging"
)

// ErrSessionNotFound is returned when a session key is absent: never created,
// already deleted, or TTL-expired. Callers must treat this as "conversation
// lost" and degrade, not crash.
var ErrSessionNotFound = errors.New("call session not found")

// KV is the TTL-expiring key/value backend underneath the session store.
// Get must report a missing or expired key as ErrSessionNotFound.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Touch(ctx context.Context, key string, ttl time.Duration) error
}

// Store manages CallSession state on top of a TTL KV backend. Every
// successful write refreshes the TTL.
type Store struct {
	kv  KV
	ttl time.Duration
}

var _ interfaces.SessionStore = &Store{}

// Option customizes the store
type Option func(*Store)

// WithTTL overrides the default session TTL
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// New creates a session store over the given KV backend
func New(kv KV, opts ...Option) *Store {
	s := &Store{
		kv:  kv,
		ttl: model.SessionTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Create(ctx context.Context, callSID, callerPhone string, opts ...model.SessionOption) (*model.CallSession, error) {
	now := time.Now().UTC()
	sess := &model.CallSession{
		CallSID:     callSID,
		State:       types.CallStateIdentifying,
		CallerPhone: callerPhone,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, opt := range opts {
		opt(sess)
	}

	if err := s.put(ctx, sess); err != nil {
		return nil, err
	}

	logging.From(ctx).Info("call session created",
		"call_sid", callSID,
		"state", sess.State,
		"user_id", sess.UserID,
	)
	return sess.Clone(), nil
}

func (s *Store) Get(ctx context.Context, callSID string) (*model.CallSession, error) {
	raw, err := s.kv.Get(ctx, model.SessionKey(callSID))
	if err != nil {
		return nil, err
	}

	var sess model.CallSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, goerr.Wrap(err, "failed to decode call session", goerr.V("callSID", callSID))
	}

	return &sess, nil
}

func (s *Store) Update(ctx context.Context, callSID string, mutate func(*model.CallSession)) (*model.CallSession, error) {
	sess, err := s.Get(ctx, callSID)
	if err != nil {
		return nil, err
	}

	mutate(sess)

	// UpdatedAt must strictly increase even within clock resolution
	now := time.Now().UTC()
	if !now.After(sess.UpdatedAt) {
		now = sess.UpdatedAt.Add(time.Millisecond)
	}
	sess.UpdatedAt = now

	if err := s.put(ctx, sess); err != nil {
		return nil, err
	}

	logging.From(ctx).Debug("call session updated",
		"call_sid", callSID,
		"state", sess.State,
		"message_count", sess.MessageCount,
	)
	return sess.Clone(), nil
}

func (s *Store) Delete(ctx context.Context, callSID string) error {
	if err := s.kv.Delete(ctx, model.SessionKey(callSID)); err != nil {
		return err
	}

	logging.From(ctx).Info("call session deleted", "call_sid", callSID)
	return nil
}

func (s *Store) Extend(ctx context.Context, callSID string) error {
	return s.kv.Touch(ctx, model.SessionKey(callSID), s.ttl)
}

func (s *Store) SetContext(ctx context.Context, callSID, key, value string) error {
	_, err := s.Update(ctx, callSID, func(sess *model.CallSession) {
		if sess.Context == nil {
			sess.Context = make(map[string]string)
		}
		sess.Context[key] = value
	})
	return err
}

func (s *Store) GetContext(ctx context.Context, callSID, key string) (string, error) {
	sess, err := s.Get(ctx, callSID)
	if err != nil {
		return "", err
	}
	return sess.Context[key], nil
}

func (s *Store) put(ctx context.Context, sess *model.CallSession) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return goerr.Wrap(err, "failed to encode call session", goerr.V("callSID", sess.CallSID))
	}
	return s.kv.Set(ctx, model.SessionKey(sess.CallSID), raw, s.ttl)
}
