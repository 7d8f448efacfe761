package identity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository persists user accounts.
type Repository interface {
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, role Role) ([]*User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Usernames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// InMemoryRepository is a thread-safe in-memory account store used in tests
// and local development.
type InMemoryRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*User
}

// NewInMemoryRepository creates a new in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{users: make(map[uuid.UUID]*User)}
}

// Create stores a new user, rejecting duplicate emails.
func (r *InMemoryRepository) Create(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == user.Email {
			return ErrEmailTaken
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

// Update overwrites role, password, profile fields and the active flag.
func (r *InMemoryRepository) Update(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	user.UpdatedAt = time.Now().UTC()
	user.CreatedAt = existing.CreatedAt
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

// Delete removes a user.
func (r *InMemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

// GetByID returns a copy of the user.
func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

// GetByEmail looks up a user by normalized email.
func (r *InMemoryRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, ErrUserNotFound
}

// List returns users newest first, filtered by role when set.
func (r *InMemoryRepository) List(ctx context.Context, role Role) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*User, 0, len(r.users))
	for _, user := range r.users {
		if role != "" && user.Role != role {
			continue
		}
		copied := *user
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// SetActive toggles the active flag.
func (r *InMemoryRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.IsActive = active
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// Usernames resolves display names; unknown ids are omitted.
func (r *InMemoryRepository) Usernames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		if user, ok := r.users[id]; ok {
			out[id] = user.Username
		}
	}
	return out, nil
}
