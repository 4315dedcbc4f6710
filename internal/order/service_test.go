package order

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/wichananm65/marketplace-backend/internal/apperr"
)

func seedOrder(t *testing.T, repo Repository, userID int) Order {
	t.Helper()
	o, err := repo.Create(context.Background(), New(userID, []Line{
		{ProductID: 1, Name: "Trail Sneakers", Price: decimal.NewFromInt(1000), Quantity: 2},
		{ProductID: 2, Name: "Canvas Tote", Price: decimal.RequireFromString("450.50"), Quantity: 1},
	}, ShippingDetails{Address: "1 Main St"}))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return o
}

func TestNew_TotalMatchesLines(t *testing.T) {
	o := seedOrder(t, NewInMemoryRepository(), 7)
	if !o.TotalAmount.Equal(decimal.RequireFromString("2450.50")) {
		t.Fatalf("expected total 2450.50, got %s", o.TotalAmount)
	}
	if o.Status != StatusPending || o.PaymentMethod != PaymentCOD || o.PaymentStatus != PaymentPending {
		t.Fatalf("unexpected defaults %+v", o)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{StatusPending, StatusShipped, true},
		{StatusPending, StatusCancelled, true},
		{StatusShipped, StatusDelivered, true},
		{StatusPending, StatusDelivered, false},
		{StatusDelivered, StatusPending, false},
		{StatusCancelled, StatusPending, false},
		{StatusShipped, StatusShipped, false},
		{StatusShipped, StatusCancelled, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Errorf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestUpdateStatus(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()
	o := seedOrder(t, repo, 7)

	if _, err := svc.UpdateStatus(ctx, o.ID, "lost"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown status, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, o.ID, StatusPending); !errors.Is(err, apperr.ErrInvalidStatusTransition) {
		t.Fatalf("expected same-status rejection, got %v", err)
	}
	for _, next := range []string{StatusShipped, StatusDelivered} {
		if _, err := svc.UpdateStatus(ctx, o.ID, next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}
	if _, err := svc.UpdateStatus(ctx, o.ID, StatusPending); !errors.Is(err, apperr.ErrInvalidStatusTransition) {
		t.Fatalf("delivered -> pending must be rejected, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, 404, StatusShipped); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateStatus_ConcurrentAdminsOneWins(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(repo)
	o := seedOrder(t, repo, 7)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for _, to := range []string{StatusShipped, StatusCancelled, StatusShipped, StatusCancelled} {
		wg.Add(1)
		go func(to string) {
			defer wg.Done()
			if _, err := svc.UpdateStatus(context.Background(), o.ID, to); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else if !errors.Is(err, apperr.ErrInvalidStatusTransition) {
				t.Errorf("unexpected error: %v", err)
			}
		}(to)
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one transition out of pending, got %d", wins)
	}
}

func TestGet_OwnerOrAdmin(t *testing.T) {
	repo := NewInMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()
	o := seedOrder(t, repo, 7)

	if _, err := svc.Get(ctx, o.ID, 7, false); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if _, err := svc.Get(ctx, o.ID, 8, false); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.Get(ctx, o.ID, 1, true); err != nil {
		t.Fatalf("admin read: %v", err)
	}
}

func TestListByUser_NewestFirst(t *testing.T) {
	repo := NewInMemoryRepository()
	first := seedOrder(t, repo, 7)
	seedOrder(t, repo, 8)
	second := seedOrder(t, repo, 7)

	got, _ := NewService(repo).ListByUser(context.Background(), 7)
	if len(got) != 2 || got[0].ID != second.ID || got[1].ID != first.ID {
		t.Fatalf("unexpected order list %+v", got)
	}
	if _, err := NewService(repo).List(context.Background(), Filter{Status: "weird"}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid status filter, got %v", err)
	}
}
