package order

import (
	"context"

	"github.com/wichananm65/marketplace-backend/internal/apperr"
)

var ErrNotOwner = apperr.New(apperr.ErrForbidden, "order belongs to another user")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the order if the caller owns it or is an admin.
func (s *Service) Get(ctx context.Context, id, callerID int, admin bool) (Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !admin && o.UserID != callerID {
		return Order{}, ErrNotOwner
	}
	return o, nil
}

func (s *Service) ListByUser(ctx context.Context, userID int) ([]Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) List(ctx context.Context, f Filter) ([]Order, error) {
	if f.Status != "" && !ValidStatus(f.Status) {
		return nil, apperr.Newf(apperr.ErrInvalidInput, "unknown status %q", f.Status)
	}
	return s.repo.List(ctx, f)
}

// UpdateStatus moves an order forward. The write is conditional on the
// status read here, so two admins racing cannot both succeed.
func (s *Service) UpdateStatus(ctx context.Context, id int, to string) (Order, error) {
	if !ValidStatus(to) {
		return Order{}, apperr.Newf(apperr.ErrInvalidInput, "unknown status %q", to)
	}
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !CanTransition(o.Status, to) {
		return Order{}, apperr.Newf(apperr.ErrInvalidStatusTransition, "cannot change order status from %s to %s", o.Status, to)
	}
	return s.repo.UpdateStatusIf(ctx, id, o.Status, to)
}
