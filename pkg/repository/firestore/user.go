package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/everstory-ai/everstory/pkg/domain/model"
)

type userDoc struct {
	ID            model.UserID `firestore:"ID"`
	PreferredName string       `firestore:"PreferredName,omitempty"`
	Phone         string       `firestore:"Phone"`
	Onboarded     bool         `firestore:"Onboarded"`
	BalanceCents  int          `firestore:"BalanceCents"`
	CreatedAt     time.Time    `firestore:"CreatedAt"`
	UpdatedAt     time.Time    `firestore:"UpdatedAt"`
}

func toUserDoc(u *model.User) *userDoc {
	return &userDoc{
		ID:            u.ID,
		PreferredName: u.PreferredName,
		Phone:         u.Phone,
		Onboarded:     u.Onboarded,
		BalanceCents:  u.BalanceCents,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func fromUserDoc(d *userDoc) *model.User {
	return &model.User{
		ID:            d.ID,
		PreferredName: d.PreferredName,
		Phone:         d.Phone,
		Onboarded:     d.Onboarded,
		BalanceCents:  d.BalanceCents,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

type userRepository struct {
	client *firestore.Client
}

func (r *userRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	if user.ID == "" {
		user.ID = model.NewUserID()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	docRef := r.client.Collection(collectionUsers).Doc(string(user.ID))
	if _, err := docRef.Set(ctx, toUserDoc(user)); err != nil {
		return nil, goerr.Wrap(err, "failed to create user", goerr.V("userID", user.ID))
	}

	return user, nil
}

func (r *userRepository) Get(ctx context.Context, id model.UserID) (*model.User, error) {
	doc, err := r.client.Collection(collectionUsers).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "user not found", goerr.V("userID", id))
		}
		return nil, goerr.Wrap(err, "failed to get user", goerr.V("userID", id))
	}

	var d userDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal user", goerr.V("userID", id))
	}

	return fromUserDoc(&d), nil
}

func (r *userRepository) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	iter := r.client.Collection(collectionUsers).
		Where("Phone", "==", phone).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, goerr.Wrap(ErrNotFound, "user not found", goerr.V("phone", phone))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query user", goerr.V("phone", phone))
	}

	var d userDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal user", goerr.V("phone", phone))
	}

	return fromUserDoc(&d), nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	docRef := r.client.Collection(collectionUsers).Doc(string(user.ID))
	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "user not found", goerr.V("userID", user.ID))
		}
		return goerr.Wrap(err, "failed to get user", goerr.V("userID", user.ID))
	}

	if _, err := docRef.Set(ctx, toUserDoc(user)); err != nil {
		return goerr.Wrap(err, "failed to update user", goerr.V("userID", user.ID))
	}

	return nil
}
