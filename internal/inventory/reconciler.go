// Package inventory prices a cart against the live catalog right before an
// order is placed. It never writes.
package inventory

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/wichananm65/marketplace-backend/internal/apperr"
	"github.com/wichananm65/marketplace-backend/internal/cart"
	"github.com/wichananm65/marketplace-backend/internal/order"
	"github.com/wichananm65/marketplace-backend/internal/product"
)

type CatalogReader interface {
	GetByID(ctx context.Context, id int) (product.Product, error)
}

// Quote is the priced snapshot of a cart. Lines keep cart order.
type Quote struct {
	Lines       []order.Line
	TotalAmount decimal.Decimal
}

type Reconciler struct {
	catalog       CatalogReader
	maxConcurrent int
}

func NewReconciler(catalog CatalogReader, maxConcurrent int) *Reconciler {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &Reconciler{catalog: catalog, maxConcurrent: maxConcurrent}
}

// Reconcile re-reads every product, checks stock and captures the current
// price. When several lines fail, the error of the first one in cart order
// is returned.
func (r *Reconciler) Reconcile(ctx context.Context, lines []cart.Line) (Quote, error) {
	out := make([]order.Line, len(lines))
	errs := make([]error, len(lines))

	var g errgroup.Group
	g.SetLimit(r.maxConcurrent)
	for idx := range lines {
		g.Go(func() error {
			errs[idx] = r.priceLine(ctx, lines[idx], &out[idx])
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return Quote{}, err
		}
	}
	return Quote{Lines: out, TotalAmount: order.Total(out)}, nil
}

func (r *Reconciler) priceLine(ctx context.Context, l cart.Line, dst *order.Line) error {
	if l.Quantity <= 0 {
		return apperr.Newf(apperr.ErrInvalidQuantity, "quantity for product %d must be positive", l.ProductID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := r.catalog.GetByID(ctx, l.ProductID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Newf(apperr.ErrNotFound, "product %d is no longer available", l.ProductID)
		}
		return err
	}
	if p.Stock < l.Quantity {
		return &apperr.StockError{ProductID: p.ID, ProductName: p.Name, Requested: l.Quantity, Available: p.Stock}
	}

	*dst = order.Line{ProductID: p.ID, Name: p.Name, Price: p.Price, Quantity: l.Quantity}
	return nil
}
