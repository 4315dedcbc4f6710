package user

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/wichananm65/marketplace-backend/internal/apperr"
)

var (
	ErrNotFound           = apperr.New(apperr.ErrNotFound, "user not found")
	ErrInvalidCredentials = apperr.New(apperr.ErrUnauthorized, "invalid email or password")
	ErrEmailExists        = apperr.New(apperr.ErrConflict, "email already exists")
)

type Repository interface {
	List(ctx context.Context) ([]User, error)
	GetByID(ctx context.Context, id int) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, id int, upd ProfileUpdate) (User, error)
	Delete(ctx context.Context, id int) error
}

type InMemoryRepository struct {
	mu     sync.RWMutex
	users  []User
	nextID int
}

func NewInMemoryRepository(seed []User) *InMemoryRepository {
	repo := &InMemoryRepository{
		users:  make([]User, 0, len(seed)),
		nextID: 1,
	}

	maxID := 0
	for _, u := range seed {
		repo.users = append(repo.users, u)
		if u.ID > maxID {
			maxID = u.ID
		}
	}

	repo.nextID = maxID + 1
	return repo
}

func (r *InMemoryRepository) List(_ context.Context) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]User, len(r.users))
	copy(users, r.users)
	return users, nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id int) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *InMemoryRepository) GetByEmail(_ context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *InMemoryRepository) Create(_ context.Context, u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return User{}, ErrEmailExists
		}
	}
	u.ID = r.nextID
	r.nextID++
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	r.users = append(r.users, u)
	return u, nil
}

func (r *InMemoryRepository) Update(_ context.Context, id int, upd ProfileUpdate) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i := range r.users {
		if r.users[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return User{}, ErrNotFound
	}
	if upd.Email != nil {
		for _, other := range r.users {
			if other.ID != id && strings.EqualFold(other.Email, *upd.Email) {
				return User{}, ErrEmailExists
			}
		}
		r.users[idx].Email = *upd.Email
	}
	if upd.Name != nil {
		r.users[idx].Name = *upd.Name
	}
	r.users[idx].UpdatedAt = time.Now().UTC()
	return r.users[idx], nil
}

func (r *InMemoryRepository) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.users {
		if r.users[i].ID == id {
			r.users = append(r.users[:i], r.users[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
