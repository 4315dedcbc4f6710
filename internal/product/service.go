package product

import (
	"context"
	"strings"

	"github.com/wichananm65/marketplace-backend/internal/apperr"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, f Filter) ([]Product, error) {
	return s.repo.List(ctx, f.normalize())
}

func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return s.repo.Categories(ctx)
}

func (s *Service) GetByID(ctx context.Context, id int) (Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByIDs(ctx context.Context, ids []int) ([]Product, error) {
	return s.repo.GetByIDs(ctx, ids)
}

func (s *Service) Create(ctx context.Context, p Product) (Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Product{}, apperr.New(apperr.ErrInvalidInput, "name is required")
	}
	if p.Price.IsNegative() {
		return Product{}, apperr.New(apperr.ErrInvalidInput, "price must be >= 0")
	}
	if p.Stock < 0 {
		return Product{}, apperr.New(apperr.ErrInvalidInput, "stock must be >= 0")
	}
	p.ID = 0
	p.Rating, p.NumReviews, p.Reviews = 0, 0, nil
	return s.repo.Create(ctx, p)
}

func (s *Service) Update(ctx context.Context, id int, patch Patch) (Product, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return Product{}, apperr.New(apperr.ErrInvalidInput, "name cannot be empty")
	}
	if patch.Price != nil && patch.Price.IsNegative() {
		return Product{}, apperr.New(apperr.ErrInvalidInput, "price must be >= 0")
	}
	if patch.Stock != nil && *patch.Stock < 0 {
		return Product{}, apperr.New(apperr.ErrInvalidInput, "stock must be >= 0")
	}
	return s.repo.Update(ctx, id, patch)
}

func (s *Service) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) AddReview(ctx context.Context, id int, rv Review) (Product, error) {
	if rv.Rating < 1 || rv.Rating > 5 {
		return Product{}, apperr.New(apperr.ErrInvalidInput, "rating must be between 1 and 5")
	}
	rv.Comment = strings.TrimSpace(rv.Comment)
	return s.repo.AddReview(ctx, id, rv)
}

// ResetProducts replaces all products with the given list (used for dev / seeding).
func (s *Service) ResetProducts(ctx context.Context, products []Product) error {
	for _, p := range products {
		if p.Price.IsNegative() || p.Stock < 0 {
			return apperr.Newf(apperr.ErrInvalidInput, "invalid seed product %q", p.Name)
		}
	}
	return s.repo.Reset(ctx, products)
}
