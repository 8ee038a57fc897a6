package session

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const sessionCollection = "call_sessions"

type sessionDoc struct {
	Key       string    `firestore:"Key"`
	Value     []byte    `firestore:"Value"`
	ExpiresAt time.Time `firestore:"ExpiresAt"`
}

// FirestoreKV is a TTL KV backend on a Firestore collection. Expiry is
// enforced at read time via the ExpiresAt field; a Firestore TTL policy on
// the same field reclaims abandoned documents eventually.
type FirestoreKV struct {
	client *firestore.Client
}

var _ KV = &FirestoreKV{}

// NewFirestoreKV creates a Firestore-backed TTL store over an existing client
func NewFirestoreKV(client *firestore.Client) *FirestoreKV {
	return &FirestoreKV{client: client}
}

func (f *FirestoreKV) Get(ctx context.Context, key string) ([]byte, error) {
	doc, err := f.client.Collection(sessionCollection).Doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrSessionNotFound
		}
		return nil, goerr.Wrap(err, "failed to get session document", goerr.V("key", key))
	}

	var d sessionDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal session document", goerr.V("key", key))
	}

	if time.Now().UTC().After(d.ExpiresAt) {
		// Expired but not yet reclaimed by the TTL policy
		return nil, ErrSessionNotFound
	}

	return d.Value, nil
}

func (f *FirestoreKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	doc := &sessionDoc{
		Key:       key,
		Value:     value,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	if _, err := f.client.Collection(sessionCollection).Doc(key).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to set session document", goerr.V("key", key))
	}
	return nil
}

func (f *FirestoreKV) Delete(ctx context.Context, key string) error {
	docRef := f.client.Collection(sessionCollection).Doc(key)

	if _, err := f.Get(ctx, key); err != nil {
		return err
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete session document", goerr.V("key", key))
	}
	return nil
}

func (f *FirestoreKV) Touch(ctx context.Context, key string, ttl time.Duration) error {
	docRef := f.client.Collection(sessionCollection).Doc(key)

	if _, err := f.Get(ctx, key); err != nil {
		return err
	}

	if _, err := docRef.Update(ctx, []firestore.Update{
		{Path: "ExpiresAt", Value: time.Now().UTC().Add(ttl)},
	}); err != nil {
		return goerr.Wrap(err, "failed to touch session document", goerr.V("key", key))
	}
	return nil
}
