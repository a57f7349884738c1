package memory

import (
	"context"
	"errors"
	"sync"

	"go.pilab.hu/codegrant/domain"
)

// UserRepository is an in-memory domain.UserRepository. The memory backend
// has no external user directory, so profiles are seeded through AddUser.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

var _ domain.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates an empty in-memory user store.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users: make(map[string]domain.User),
	}
}

// AddUser seeds a user profile. Profiles are keyed by ID; adding an existing
// ID replaces the profile.
func (r *UserRepository) AddUser(user *domain.User) error {
	if user == nil || user.ID == "" {
		return errors.New("user must carry an ID")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = cloneUser(user)
	return nil
}

// GetUserByID fetches a user profile by its ID.
func (r *UserRepository) GetUserByID(_ context.Context, userID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := cloneUser(&user)
	return &out, nil
}

func cloneUser(u *domain.User) domain.User {
	out := *u
	if u.Address != nil {
		address := *u.Address
		out.Address = &address
	}
	if u.Privileges != nil {
		out.Privileges = append([]string(nil), u.Privileges...)
	}
	return out
}
