package checkout

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"github.com/wichananm65/marketplace-backend/internal/apperr"
	"github.com/wichananm65/marketplace-backend/internal/cart"
	"github.com/wichananm65/marketplace-backend/internal/logging"
	"github.com/wichananm65/marketplace-backend/internal/order"
	"github.com/wichananm65/marketplace-backend/internal/product"
)

// drainingStock empties one product right before it is decremented, as a
// concurrent checkout would.
type drainingStock struct {
	*product.InMemoryRepository
	drain int
}

func (d *drainingStock) DecrementStock(ctx context.Context, id, qty int) error {
	if id == d.drain {
		zero := 0
		if _, err := d.Update(ctx, id, product.Patch{Stock: &zero}); err != nil {
			return err
		}
	}
	return d.InMemoryRepository.DecrementStock(ctx, id, qty)
}

type failingClear struct{}

func (failingClear) Clear(context.Context, int) error { return errors.New("connection reset") }

func twoLineOrder() order.Order {
	return order.New(7, []order.Line{
		{ProductID: 2, Name: "Canvas Tote", Price: decimal.NewFromInt(450), Quantity: 2},
		{ProductID: 1, Name: "Trail Sneakers", Price: decimal.NewFromInt(1000), Quantity: 1},
	}, order.ShippingDetails{Address: "1 Main St"})
}

func seedCatalog() *product.InMemoryRepository {
	return product.NewInMemoryRepository([]product.Product{
		{ID: 1, Name: "Trail Sneakers", Price: decimal.NewFromInt(1000), Stock: 5},
		{ID: 2, Name: "Canvas Tote", Price: decimal.NewFromInt(450), Stock: 5},
	})
}

func stockOf(t *testing.T, r product.Repository, id int) int {
	t.Helper()
	p, err := r.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get %d: %v", id, err)
	}
	return p.Stock
}

func TestSaga_RestocksWhenLaterLineIsDrained(t *testing.T) {
	ctx := context.Background()
	catalog := seedCatalog()
	orders := order.NewInMemoryRepository()
	carts := cart.NewInMemoryRepository()
	uow := NewSagaUnitOfWork(&drainingStock{InMemoryRepository: catalog, drain: 2}, orders, carts, logging.Discard())

	_, err := uow.Place(ctx, twoLineOrder())
	var se *apperr.StockError
	if !errors.As(err, &se) || se.ProductID != 2 {
		t.Fatalf("expected stock error for product 2, got %v", err)
	}
	if s := stockOf(t, catalog, 1); s != 5 {
		t.Fatalf("product 1 not restocked, stock %d", s)
	}
	if all, _ := orders.List(ctx, order.Filter{}); len(all) != 0 {
		t.Fatalf("expected no orders, got %d", len(all))
	}
}

func TestSaga_UndoesOrderWhenCartClearFails(t *testing.T) {
	ctx := context.Background()
	catalog := seedCatalog()
	orders := order.NewInMemoryRepository()
	uow := NewSagaUnitOfWork(catalog, orders, failingClear{}, logging.Discard())

	if _, err := uow.Place(ctx, twoLineOrder()); err == nil {
		t.Fatalf("expected failure")
	}
	if stockOf(t, catalog, 1) != 5 || stockOf(t, catalog, 2) != 5 {
		t.Fatalf("stock not restored: %d %d", stockOf(t, catalog, 1), stockOf(t, catalog, 2))
	}
	if all, _ := orders.List(ctx, order.Filter{}); len(all) != 0 {
		t.Fatalf("order not removed, got %d", len(all))
	}
}

func TestTxUnitOfWork_Commit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	decrement := regexp.QuoteMeta("UPDATE products SET stock = stock - $2")
	mock.ExpectBegin()
	// lines are applied in product id order
	mock.ExpectExec(decrement).WithArgs(1, 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(decrement).WithArgs(2, 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO orders").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(31, time.Now(), time.Now()))
	mock.ExpectExec("INSERT INTO order_lines").WithArgs(31, 1, 2, "Canvas Tote", sqlmock.AnyArg(), 2, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO order_lines").WithArgs(31, 2, 1, "Trail Sneakers", sqlmock.AnyArg(), 1, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cart_items WHERE user_id = $1")).WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	o, err := NewTxUnitOfWork(db).Place(context.Background(), twoLineOrder())
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if o.ID != 31 || !o.TotalAmount.Equal(decimal.NewFromInt(1900)) || o.Items[0].ProductID != 2 {
		t.Fatalf("unexpected order %+v", o)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTxUnitOfWork_RollsBackOnShortStock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	decrement := regexp.QuoteMeta("UPDATE products SET stock = stock - $2")
	mock.ExpectBegin()
	mock.ExpectExec(decrement).WithArgs(1, 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(decrement).WithArgs(2, 2).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, stock FROM products WHERE id = $1")).WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"name", "stock"}).AddRow("Canvas Tote", 1))
	mock.ExpectRollback()

	_, err = NewTxUnitOfWork(db).Place(context.Background(), twoLineOrder())
	var se *apperr.StockError
	if !errors.As(err, &se) || se.ProductName != "Canvas Tote" || se.Available != 1 {
		t.Fatalf("expected stock error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
