package address

import (
	"context"
	"sync"
	"time"

	"github.com/wichananm65/marketplace-backend/internal/apperr"
)

var (
	ErrNotFound = apperr.New(apperr.ErrNotFound, "address not found")
	ErrNotOwner = apperr.New(apperr.ErrForbidden, "address belongs to another user")
)

type Repository interface {
	List(ctx context.Context, userID int) ([]Address, error)
	GetByID(ctx context.Context, id int) (Address, error)
	Create(ctx context.Context, userID int, in Input) (Address, error)
	// Update and Delete only touch addresses owned by userID.
	Update(ctx context.Context, userID, id int, in Input) (Address, error)
	Delete(ctx context.Context, userID, id int) error
}

// InMemoryRepository for tests
type InMemoryRepository struct {
	mu     sync.RWMutex
	data   []Address
	nextID int
}

func NewInMemoryRepository(seed []Address) *InMemoryRepository {
	r := &InMemoryRepository{data: make([]Address, 0, len(seed)), nextID: 1}
	for _, a := range seed {
		r.data = append(r.data, a)
		if a.ID >= r.nextID {
			r.nextID = a.ID + 1
		}
	}
	return r
}

func (r *InMemoryRepository) List(_ context.Context, userID int) ([]Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Address, 0)
	for _, a := range r.data {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id int) (Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.data {
		if a.ID == id {
			return a, nil
		}
	}
	return Address{}, ErrNotFound
}

func (r *InMemoryRepository) Create(_ context.Context, userID int, in Input) (Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	a := Address{ID: r.nextID, UserID: userID, CreatedAt: now, UpdatedAt: now}
	a.apply(in)
	r.nextID++
	r.data = append(r.data, a)
	return a, nil
}

func (r *InMemoryRepository) Update(_ context.Context, userID, id int, in Input) (Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.data {
		if r.data[i].ID == id && r.data[i].UserID == userID {
			r.data[i].apply(in)
			r.data[i].UpdatedAt = time.Now().UTC()
			return r.data[i], nil
		}
	}
	return Address{}, ErrNotFound
}

func (r *InMemoryRepository) Delete(_ context.Context, userID, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.data {
		if r.data[i].ID == id && r.data[i].UserID == userID {
			r.data = append(r.data[:i], r.data[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
