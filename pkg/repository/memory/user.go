package memory

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/everstory-ai/everstory/pkg/domain/model"
)

type userRepository struct {
	mu    sync.RWMutex
	users map[model.UserID]*model.User
}

func newUserRepository() *userRepository {
	return &userRepository{
		users: make(map[model.UserID]*model.User),
	}
}

func copyUser(u *model.User) *model.User {
	copied := *u
	return &copied
}

func (r *userRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := copyUser(user)
	if created.ID == "" {
		created.ID = model.NewUserID()
	}
	now := time.Now().UTC()
	created.CreatedAt = now
	created.UpdatedAt = now

	r.users[created.ID] = created
	return copyUser(created), nil
}

func (r *userRepository) Get(ctx context.Context, id model.UserID) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "user not found", goerr.V("userID", id))
	}
	return copyUser(user), nil
}

func (r *userRepository) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Phone == phone {
			return copyUser(u), nil
		}
	}
	return nil, goerr.Wrap(ErrNotFound, "user not found", goerr.V("phone", phone))
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.users[user.ID]
	if !exists {
		return goerr.Wrap(ErrNotFound, "user not found", goerr.V("userID", user.ID))
	}

	updated := copyUser(user)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	r.users[user.ID] = updated
	return nil
}
