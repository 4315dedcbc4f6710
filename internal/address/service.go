package address

import (
	"context"
	"strings"

	"github.com/wichananm65/marketplace-backend/internal/apperr"
)

// Service orchestrates saved address operations.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, userID int) ([]Address, error) {
	return s.repo.List(ctx, userID)
}

// Get returns an address the user owns. Anyone else's address is Forbidden.
func (s *Service) Get(ctx context.Context, userID, id int) (Address, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Address{}, err
	}
	if a.UserID != userID {
		return Address{}, ErrNotOwner
	}
	return a, nil
}

func normalize(in Input) (Input, error) {
	in.Label = strings.TrimSpace(in.Label)
	in.Address = strings.TrimSpace(in.Address)
	in.City = strings.TrimSpace(in.City)
	in.ZipCode = strings.TrimSpace(in.ZipCode)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Address == "" {
		return in, apperr.New(apperr.ErrInvalidInput, "address is required")
	}
	return in, nil
}

func (s *Service) Create(ctx context.Context, userID int, in Input) (Address, error) {
	in, err := normalize(in)
	if err != nil {
		return Address{}, err
	}
	return s.repo.Create(ctx, userID, in)
}

func (s *Service) Update(ctx context.Context, userID, id int, in Input) (Address, error) {
	in, err := normalize(in)
	if err != nil {
		return Address{}, err
	}
	return s.repo.Update(ctx, userID, id, in)
}

func (s *Service) Delete(ctx context.Context, userID, id int) error {
	return s.repo.Delete(ctx, userID, id)
}
