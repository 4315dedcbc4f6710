package checkout

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sort"

	"github.com/wichananm65/marketplace-backend/internal/apperr"
	"github.com/wichananm65/marketplace-backend/internal/cart"
	"github.com/wichananm65/marketplace-backend/internal/database"
	"github.com/wichananm65/marketplace-backend/internal/metrics"
	"github.com/wichananm65/marketplace-backend/internal/order"
	"github.com/wichananm65/marketplace-backend/internal/product"
)

// UnitOfWork applies the write half of a checkout: decrement every line,
// create the order and delete the cart. Either all of it persists or none.
type UnitOfWork interface {
	Place(ctx context.Context, o order.Order) (order.Order, error)
}

// byProduct returns the lines ordered by product id. Concurrent checkouts
// touching the same products then take row locks in the same order.
func byProduct(lines []order.Line) []order.Line {
	out := append([]order.Line(nil), lines...)
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

func decrementError(productID int, err error) error {
	var se *apperr.StockError
	if errors.As(err, &se) {
		metrics.StockConflicts.Inc()
		return err
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Newf(apperr.ErrNotFound, "product %d is no longer available", productID)
	}
	return err
}

// TxUnitOfWork runs the whole placement inside one PostgreSQL transaction.
type TxUnitOfWork struct {
	db       *sql.DB
	products *product.PostgresRepository
	orders   *order.PostgresRepository
	carts    *cart.PostgresRepository
}

func NewTxUnitOfWork(db *sql.DB) *TxUnitOfWork {
	return &TxUnitOfWork{
		db:       db,
		products: product.NewPostgresRepository(db),
		orders:   order.NewPostgresRepository(db),
		carts:    cart.NewPostgresRepository(db),
	}
}

func (u *TxUnitOfWork) Place(ctx context.Context, o order.Order) (order.Order, error) {
	var placed order.Order
	err := database.ExecTx(ctx, u.db, func(tx *sql.Tx) error {
		products := u.products.WithTx(tx)
		for _, l := range byProduct(o.Items) {
			if err := products.DecrementStock(ctx, l.ProductID, l.Quantity); err != nil {
				return decrementError(l.ProductID, err)
			}
		}
		created, err := u.orders.WithTx(tx).Create(ctx, o)
		if err != nil {
			return err
		}
		if err := u.carts.WithTx(tx).Clear(ctx, o.UserID); err != nil {
			return err
		}
		placed = created
		return nil
	})
	if err != nil {
		return order.Order{}, err
	}
	return placed, nil
}

// StockWriter is the catalog side of a saga.
type StockWriter interface {
	DecrementStock(ctx context.Context, id, qty int) error
	IncrementStock(ctx context.Context, id, qty int) error
}

type OrderWriter interface {
	Create(ctx context.Context, o order.Order) (order.Order, error)
	Delete(ctx context.Context, id int) error
}

type CartClearer interface {
	Clear(ctx context.Context, userID int) error
}

// SagaUnitOfWork is used when the stores share no transaction. Every applied
// step records its inverse; on failure the inverses run newest first.
type SagaUnitOfWork struct {
	products StockWriter
	orders   OrderWriter
	carts    CartClearer
	logger   *slog.Logger
}

func NewSagaUnitOfWork(products StockWriter, orders OrderWriter, carts CartClearer, logger *slog.Logger) *SagaUnitOfWork {
	if logger == nil {
		logger = slog.Default()
	}
	return &SagaUnitOfWork{products: products, orders: orders, carts: carts, logger: logger}
}

type compensation struct {
	name string
	undo func(ctx context.Context) error
}

func (u *SagaUnitOfWork) Place(ctx context.Context, o order.Order) (placed order.Order, err error) {
	var applied []compensation
	defer func() {
		if err != nil {
			u.compensate(ctx, o.UserID, applied)
		}
	}()

	for _, l := range byProduct(o.Items) {
		if err := u.products.DecrementStock(ctx, l.ProductID, l.Quantity); err != nil {
			return order.Order{}, decrementError(l.ProductID, err)
		}
		id, qty := l.ProductID, l.Quantity
		applied = append(applied, compensation{
			name: "restock",
			undo: func(ctx context.Context) error { return u.products.IncrementStock(ctx, id, qty) },
		})
	}

	created, err := u.orders.Create(ctx, o)
	if err != nil {
		return order.Order{}, err
	}
	applied = append(applied, compensation{
		name: "delete order",
		undo: func(ctx context.Context) error { return u.orders.Delete(ctx, created.ID) },
	})

	if err := u.carts.Clear(ctx, o.UserID); err != nil {
		return order.Order{}, err
	}
	return created, nil
}

// compensate runs even if the request context is already cancelled.
func (u *SagaUnitOfWork) compensate(ctx context.Context, userID int, applied []compensation) {
	ctx = context.WithoutCancel(ctx)
	for i := len(applied) - 1; i >= 0; i-- {
		c := applied[i]
		metrics.Compensations.Inc()
		if err := c.undo(ctx); err != nil {
			u.logger.Error("compensation failed", "step", c.name, "user_id", userID, "err", err)
			continue
		}
		u.logger.Warn("compensation applied", "step", c.name, "user_id", userID)
	}
}

var (
	_ UnitOfWork = (*TxUnitOfWork)(nil)
	_ UnitOfWork = (*SagaUnitOfWork)(nil)
)
