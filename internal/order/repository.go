package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wichananm65/marketplace-backend/internal/apperr"
)

var (
	ErrNotFound = apperr.New(apperr.ErrNotFound, "order not found")
	// ErrStatusChanged means the order left the expected status before the
	// update landed.
	ErrStatusChanged = apperr.New(apperr.ErrInvalidStatusTransition, "order status changed concurrently")
)

type Repository interface {
	Create(ctx context.Context, o Order) (Order, error)
	GetByID(ctx context.Context, id int) (Order, error)
	// ListByUser returns newest first.
	ListByUser(ctx context.Context, userID int) ([]Order, error)
	List(ctx context.Context, f Filter) ([]Order, error)
	// UpdateStatusIf sets the status to `to` only while it is still `from`.
	UpdateStatusIf(ctx context.Context, id int, from, to string) (Order, error)
	Delete(ctx context.Context, id int) error
}

// InMemoryRepository is a simple implementation for tests and local runs.
type InMemoryRepository struct {
	mu     sync.RWMutex
	orders []Order
	nextID int
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{orders: make([]Order, 0), nextID: 1}
}

func cloneOrder(o Order) Order {
	o.Items = append([]Line(nil), o.Items...)
	return o
}

func (r *InMemoryRepository) Create(_ context.Context, o Order) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o.ID = r.nextID
	r.nextID++
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	r.orders = append(r.orders, cloneOrder(o))
	return cloneOrder(o), nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id int) (Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.orders {
		if o.ID == id {
			return cloneOrder(o), nil
		}
	}
	return Order{}, ErrNotFound
}

func (r *InMemoryRepository) collect(keep func(Order) bool) []Order {
	r.mu.RLock()
	out := make([]Order, 0)
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, cloneOrder(o))
		}
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *InMemoryRepository) ListByUser(_ context.Context, userID int) ([]Order, error) {
	return r.collect(func(o Order) bool { return o.UserID == userID }), nil
}

func (r *InMemoryRepository) List(_ context.Context, f Filter) ([]Order, error) {
	return r.collect(func(o Order) bool { return f.Status == "" || o.Status == f.Status }), nil
}

func (r *InMemoryRepository) UpdateStatusIf(_ context.Context, id int, from, to string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.orders {
		if r.orders[i].ID != id {
			continue
		}
		if r.orders[i].Status != from {
			return Order{}, ErrStatusChanged
		}
		r.orders[i].Status = to
		r.orders[i].UpdatedAt = time.Now().UTC()
		return cloneOrder(r.orders[i]), nil
	}
	return Order{}, ErrNotFound
}

func (r *InMemoryRepository) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.orders {
		if r.orders[i].ID == id {
			r.orders = append(r.orders[:i], r.orders[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
