package cart

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/wichananm65/marketplace-backend/internal/apperr"
	"github.com/wichananm65/marketplace-backend/internal/lock"
	"github.com/wichananm65/marketplace-backend/internal/product"
)

// ProductReader is the part of the catalog the cart needs.
type ProductReader interface {
	GetByID(ctx context.Context, id int) (product.Product, error)
	GetByIDs(ctx context.Context, ids []int) ([]product.Product, error)
}

// Service orchestrates cart operations.
type Service struct {
	repo        Repository
	products    ProductReader
	locker      lock.Locker
	lockTimeout time.Duration
}

func NewService(repo Repository, products ProductReader, locker lock.Locker, lockTimeout time.Duration) *Service {
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	return &Service{repo: repo, products: products, locker: locker, lockTimeout: lockTimeout}
}

// withUserLock runs fn while holding the user's cart lock.
func (s *Service) withUserLock(ctx context.Context, userID int, fn func() error) error {
	lctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	unlock, err := s.locker.Lock(lctx, LockKey(userID))
	cancel()
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// AddItem adds qty units of a product. qty 0 means 1; a negative qty is
// applied as a decrement of the existing line.
func (s *Service) AddItem(ctx context.Context, userID, productID, qty int) (Cart, error) {
	if qty < 0 {
		return s.SetQuantityDelta(ctx, userID, productID, qty)
	}
	if qty == 0 {
		qty = 1
	}

	err := s.withUserLock(ctx, userID, func() error {
		p, err := s.products.GetByID(ctx, productID)
		if err != nil {
			return err
		}
		if qty > p.Stock {
			return &apperr.StockError{ProductID: p.ID, ProductName: p.Name, Requested: qty, Available: p.Stock}
		}
		current, err := s.repo.Add(ctx, userID, productID, qty, p.Stock)
		if errors.Is(err, ErrOverLimit) {
			return &apperr.StockError{ProductID: p.ID, ProductName: p.Name, Requested: current + qty, Available: p.Stock}
		}
		return err
	})
	if err != nil {
		return Cart{}, err
	}
	return s.GetCart(ctx, userID)
}

// SetQuantityDelta changes an existing line by delta. The result must stay
// between 1 and the product's stock; decrements are always allowed.
func (s *Service) SetQuantityDelta(ctx context.Context, userID, productID, delta int) (Cart, error) {
	if delta == 0 || delta < -math.MaxInt32 {
		return Cart{}, apperr.New(apperr.ErrInvalidQuantity, "delta must be a non-zero stock-sized number")
	}

	err := s.withUserLock(ctx, userID, func() error {
		limit := math.MaxInt32
		var p product.Product
		if delta > 0 {
			var err error
			if p, err = s.products.GetByID(ctx, productID); err != nil {
				return err
			}
			limit = p.Stock
			if delta > limit {
				return &apperr.StockError{ProductID: p.ID, ProductName: p.Name, Requested: delta, Available: p.Stock}
			}
		}
		current, err := s.repo.Adjust(ctx, userID, productID, delta, limit)
		if errors.Is(err, ErrOverLimit) {
			return &apperr.StockError{ProductID: p.ID, ProductName: p.Name, Requested: current + delta, Available: p.Stock}
		}
		return err
	})
	if err != nil {
		return Cart{}, err
	}
	return s.GetCart(ctx, userID)
}

// RemoveItem is idempotent.
func (s *Service) RemoveItem(ctx context.Context, userID, productID int) (Cart, error) {
	err := s.withUserLock(ctx, userID, func() error {
		return s.repo.Remove(ctx, userID, productID)
	})
	if err != nil {
		return Cart{}, err
	}
	return s.GetCart(ctx, userID)
}

func (s *Service) Clear(ctx context.Context, userID int) error {
	return s.withUserLock(ctx, userID, func() error {
		return s.repo.Clear(ctx, userID)
	})
}

// Lines returns the stored lines without product data.
func (s *Service) Lines(ctx context.Context, userID int) ([]Line, error) {
	return s.repo.Lines(ctx, userID)
}

// GetCart returns an empty cart for users who never added anything.
func (s *Service) GetCart(ctx context.Context, userID int) (Cart, error) {
	lines, err := s.repo.Lines(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	ids := make([]int, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return Cart{}, err
	}
	return buildCart(userID, lines, products), nil
}
