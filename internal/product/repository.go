package product

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wichananm65/marketplace-backend/internal/apperr"
)

var (
	ErrNotFound        = apperr.New(apperr.ErrNotFound, "product not found")
	ErrInvalidQuantity = apperr.New(apperr.ErrInvalidQuantity, "quantity must be positive")
	ErrAlreadyReviewed = apperr.New(apperr.ErrAlreadyReviewed, "product already reviewed by this user")
)

type Repository interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	Categories(ctx context.Context) ([]Category, error)
	GetByID(ctx context.Context, id int) (Product, error)
	// GetByIDs skips ids that do not exist.
	GetByIDs(ctx context.Context, ids []int) ([]Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, id int, patch Patch) (Product, error)
	Delete(ctx context.Context, id int) error
	// DecrementStock subtracts qty only if at least qty units remain.
	DecrementStock(ctx context.Context, id, qty int) error
	IncrementStock(ctx context.Context, id, qty int) error
	AddReview(ctx context.Context, id int, r Review) (Product, error)
	// Reset replaces all products with the provided list (used for dev / seeding)
	Reset(ctx context.Context, products []Product) error
}

// InMemoryRepository is a simple in-memory implementation useful for tests and
// seeding local data.
type InMemoryRepository struct {
	mu       sync.RWMutex
	storage  []Product
	nextID   int
	reviewID int
}

func NewInMemoryRepository(seed []Product) *InMemoryRepository {
	r := &InMemoryRepository{
		storage: make([]Product, 0, len(seed)),
		nextID:  1,
	}

	maxID := 0
	for _, p := range seed {
		r.storage = append(r.storage, p)
		if p.ID > maxID {
			maxID = p.ID
		}
	}

	r.nextID = maxID + 1
	return r
}

func (r *InMemoryRepository) indexOf(id int) int {
	for i := range r.storage {
		if r.storage[i].ID == id {
			return i
		}
	}
	return -1
}

// clone copies slices so callers never alias repository state.
func clone(p Product) Product {
	p.Sizes = append([]string(nil), p.Sizes...)
	p.Colors = append([]string(nil), p.Colors...)
	p.Images = append([]string(nil), p.Images...)
	p.Reviews = append([]Review(nil), p.Reviews...)
	return p
}

func (r *InMemoryRepository) List(_ context.Context, f Filter) ([]Product, error) {
	f = f.normalize()
	r.mu.RLock()
	out := make([]Product, 0, len(r.storage))
	for _, p := range r.storage {
		if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
			continue
		}
		p = clone(p)
		p.Reviews = nil
		out = append(out, p)
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch f.Sort {
		case SortPriceLow:
			if !a.Price.Equal(b.Price) {
				return a.Price.LessThan(b.Price)
			}
		case SortPriceHigh:
			if !a.Price.Equal(b.Price) {
				return a.Price.GreaterThan(b.Price)
			}
		case SortName:
			if a.Name != b.Name {
				return a.Name < b.Name
			}
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})

	if f.Offset >= len(out) {
		return []Product{}, nil
	}
	out = out[f.Offset:]
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *InMemoryRepository) Categories(_ context.Context) ([]Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := map[string]int{}
	for _, p := range r.storage {
		if p.Category != "" {
			counts[p.Category]++
		}
	}
	out := make([]Category, 0, len(counts))
	for name, n := range counts {
		out = append(out, Category{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id int) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return clone(r.storage[i]), nil
	}
	return Product{}, ErrNotFound
}

func (r *InMemoryRepository) GetByIDs(_ context.Context, ids []int) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Product, 0, len(ids))
	for _, id := range ids {
		if i := r.indexOf(id); i >= 0 {
			out = append(out, clone(r.storage[i]))
		}
	}
	return out, nil
}

func (r *InMemoryRepository) Create(_ context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		p.ID = r.nextID
		r.nextID++
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	r.storage = append(r.storage, clone(p))
	return p, nil
}

func (r *InMemoryRepository) Update(_ context.Context, id int, patch Patch) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return Product{}, ErrNotFound
	}
	if patch.IsEmpty() {
		return clone(r.storage[i]), nil
	}
	p := clone(r.storage[i])
	patch.apply(&p)
	p.UpdatedAt = time.Now().UTC()
	r.storage[i] = p
	return clone(p), nil
}

func (r *InMemoryRepository) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexOf(id); i >= 0 {
		r.storage = append(r.storage[:i], r.storage[i+1:]...)
		return nil
	}
	return ErrNotFound
}

func (r *InMemoryRepository) DecrementStock(_ context.Context, id, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	p := &r.storage[i]
	if p.Stock < qty {
		return &apperr.StockError{ProductID: id, ProductName: p.Name, Requested: qty, Available: p.Stock}
	}
	p.Stock -= qty
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *InMemoryRepository) IncrementStock(_ context.Context, id, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	r.storage[i].Stock += qty
	r.storage[i].UpdatedAt = time.Now().UTC()
	return nil
}

func (r *InMemoryRepository) AddReview(_ context.Context, id int, rv Review) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return Product{}, ErrNotFound
	}
	p := &r.storage[i]
	for _, existing := range p.Reviews {
		if existing.UserID == rv.UserID {
			return Product{}, ErrAlreadyReviewed
		}
	}
	r.reviewID++
	rv.ID = r.reviewID
	rv.CreatedAt = time.Now().UTC()
	p.Reviews = append(p.Reviews, rv)

	sum := 0
	for _, x := range p.Reviews {
		sum += x.Rating
	}
	p.NumReviews = len(p.Reviews)
	p.Rating = float64(sum) / float64(p.NumReviews)
	return clone(*p), nil
}

// Reset replaces the whole in-memory storage with the provided products.
func (r *InMemoryRepository) Reset(_ context.Context, products []Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storage = make([]Product, 0, len(products))
	maxID := 0
	now := time.Now().UTC()
	for _, p := range products {
		if p.ID == 0 {
			p.ID = r.nextID
			r.nextID++
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt, p.UpdatedAt = now, now
		}
		r.storage = append(r.storage, clone(p))
		if p.ID > maxID {
			maxID = p.ID
		}
	}
	if maxID >= r.nextID {
		r.nextID = maxID + 1
	}
	return nil
}
