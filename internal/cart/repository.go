package cart

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/wichananm65/marketplace-backend/internal/apperr"
)

var (
	ErrItemNotFound    = apperr.New(apperr.ErrNotFound, "item not in cart")
	ErrInvalidQuantity = apperr.New(apperr.ErrInvalidQuantity, "quantity must be at least 1")
	// ErrOverLimit is returned by repositories when a change would push a
	// line above the caller's limit. The service turns it into a stock error.
	ErrOverLimit = errors.New("cart: quantity over limit")
)

// Repository stores cart lines. Quantity changes are applied atomically
// against limit so two concurrent adds cannot both pass a stale check.
type Repository interface {
	Lines(ctx context.Context, userID int) ([]Line, error)
	// Add increments the line by qty, creating it if needed. On ErrOverLimit
	// the returned int is the line's current quantity.
	Add(ctx context.Context, userID, productID, qty, limit int) (int, error)
	// Adjust applies delta to an existing line.
	Adjust(ctx context.Context, userID, productID, delta, limit int) (int, error)
	Remove(ctx context.Context, userID, productID int) error
	Clear(ctx context.Context, userID int) error
}

// InMemoryRepository is used for tests and local scenarios.
type InMemoryRepository struct {
	mu    sync.RWMutex
	carts map[int]map[int]int
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{carts: make(map[int]map[int]int)}
}

func (r *InMemoryRepository) Lines(_ context.Context, userID int) ([]Line, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lines := make([]Line, 0, len(r.carts[userID]))
	for pid, qty := range r.carts[userID] {
		lines = append(lines, Line{ProductID: pid, Quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

func (r *InMemoryRepository) Add(_ context.Context, userID, productID, qty, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.carts[userID]
	current := c[productID]
	if qty > limit-current {
		return current, ErrOverLimit
	}
	if c == nil {
		c = make(map[int]int)
		r.carts[userID] = c
	}
	c[productID] = current + qty
	return c[productID], nil
}

func (r *InMemoryRepository) Adjust(_ context.Context, userID, productID, delta, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.carts[userID][productID]
	if !ok {
		return 0, ErrItemNotFound
	}
	if delta < 1-current {
		return current, ErrInvalidQuantity
	}
	if delta > limit-current {
		return current, ErrOverLimit
	}
	next := current + delta
	r.carts[userID][productID] = next
	return next, nil
}

func (r *InMemoryRepository) Remove(_ context.Context, userID, productID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.carts[userID]; ok {
		delete(c, productID)
		if len(c) == 0 {
			delete(r.carts, userID)
		}
	}
	return nil
}

func (r *InMemoryRepository) Clear(_ context.Context, userID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, userID)
	return nil
}
