package product

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wichananm65/marketplace-backend/internal/apperr"
)

func TestInMemoryDecrementStock_NeverNegative(t *testing.T) {
	repo := NewInMemoryRepository([]Product{{ID: 1, Name: "Wool Beanie", Price: decimal.NewFromInt(390), Stock: 10}})
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.DecrementStock(ctx, 1, 1)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if errors.Is(err, apperr.ErrInsufficientStock) {
				fail++
			} else {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 10 || fail != 15 {
		t.Fatalf("expected 10 successes and 15 stock errors, got %d/%d", ok, fail)
	}
	p, _ := repo.GetByID(ctx, 1)
	if p.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", p.Stock)
	}
}

func TestInMemoryDecrementStock_Errors(t *testing.T) {
	repo := NewInMemoryRepository([]Product{{ID: 1, Name: "Trail Sneakers", Stock: 3}})
	ctx := context.Background()

	err := repo.DecrementStock(ctx, 1, 5)
	var se *apperr.StockError
	if !errors.As(err, &se) || se.Requested != 5 || se.Available != 3 {
		t.Fatalf("expected stock error, got %v", err)
	}
	if err := repo.DecrementStock(ctx, 2, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.DecrementStock(ctx, 1, -1); !errors.Is(err, apperr.ErrInvalidQuantity) {
		t.Fatalf("expected invalid quantity, got %v", err)
	}
	p, _ := repo.GetByID(ctx, 1)
	if p.Stock != 3 {
		t.Fatalf("failed decrements must not change stock, got %d", p.Stock)
	}
}

func TestInMemoryList_FilterSortPage(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := NewInMemoryRepository([]Product{
		{ID: 1, Name: "Canvas Tote", Category: "Accessories", Price: decimal.NewFromInt(450), CreatedAt: base},
		{ID: 2, Name: "Wool Beanie", Category: "Accessories", Price: decimal.NewFromInt(390), CreatedAt: base.Add(time.Hour)},
		{ID: 3, Name: "Trail Sneakers", Category: "Shoes", Price: decimal.NewFromInt(3200), CreatedAt: base.Add(2 * time.Hour)},
	})
	ctx := context.Background()

	ids := func(ps []Product) []int {
		out := make([]int, len(ps))
		for i, p := range ps {
			out[i] = p.ID
		}
		return out
	}
	cases := []struct {
		name string
		f    Filter
		want []int
	}{
		{"default newest", Filter{}, []int{3, 2, 1}},
		{"category case-insensitive", Filter{Category: "accessories"}, []int{2, 1}},
		{"search", Filter{Search: "BEAN"}, []int{2}},
		{"price low", Filter{Sort: SortPriceLow}, []int{2, 1, 3}},
		{"price high", Filter{Sort: SortPriceHigh}, []int{3, 1, 2}},
		{"name", Filter{Sort: SortName}, []int{1, 3, 2}},
		{"page", Filter{Sort: SortName, Limit: 1, Offset: 1}, []int{3}},
		{"past end", Filter{Offset: 10}, []int{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repo.List(ctx, tc.f)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			g := ids(got)
			if len(g) != len(tc.want) {
				t.Fatalf("got %v want %v", g, tc.want)
			}
			for i := range g {
				if g[i] != tc.want[i] {
					t.Fatalf("got %v want %v", g, tc.want)
				}
			}
		})
	}

	cats, _ := repo.Categories(ctx)
	if len(cats) != 2 || cats[0].Name != "Accessories" || cats[0].Count != 2 {
		t.Fatalf("unexpected categories %+v", cats)
	}
}

func TestInMemoryAddReview(t *testing.T) {
	repo := NewInMemoryRepository([]Product{{ID: 1, Name: "Linen Shirt"}})
	ctx := context.Background()

	if _, err := repo.AddReview(ctx, 1, Review{UserID: 7, Rating: 5}); err != nil {
		t.Fatalf("first review: %v", err)
	}
	p, err := repo.AddReview(ctx, 1, Review{UserID: 8, Rating: 2})
	if err != nil {
		t.Fatalf("second review: %v", err)
	}
	if p.NumReviews != 2 || p.Rating != 3.5 {
		t.Fatalf("expected 2 reviews averaging 3.5, got %d / %v", p.NumReviews, p.Rating)
	}
	if _, err := repo.AddReview(ctx, 1, Review{UserID: 7, Rating: 1}); !errors.Is(err, apperr.ErrAlreadyReviewed) {
		t.Fatalf("expected already reviewed, got %v", err)
	}
	if _, err := repo.AddReview(ctx, 99, Review{UserID: 7, Rating: 1}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetByIDs_SkipsUnknown(t *testing.T) {
	repo := NewInMemoryRepository([]Product{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}})
	got, err := repo.GetByIDs(context.Background(), []int{2, 5, 1})
	if err != nil || len(got) != 2 {
		t.Fatalf("expected 2 products, got %d err %v", len(got), err)
	}
}

func TestServiceUpdate_RejectsNegativeValues(t *testing.T) {
	svc := NewService(NewInMemoryRepository([]Product{{ID: 1, Name: "a", Stock: 2}}))
	ctx := context.Background()

	neg := -1
	if _, err := svc.Update(ctx, 1, Patch{Stock: &neg}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	price := decimal.NewFromInt(-5)
	if _, err := svc.Update(ctx, 1, Patch{Price: &price}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	p, err := svc.Update(ctx, 1, Patch{})
	if err != nil || p.Stock != 2 {
		t.Fatalf("empty patch should return unchanged product, got %+v err %v", p, err)
	}
}
