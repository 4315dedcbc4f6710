package order

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/wichananm65/marketplace-backend/internal/database"
)

// PostgresRepository keeps order headers in orders and their lines in
// order_lines. A repository returned by WithTx runs on that transaction.
type PostgresRepository struct {
	db   database.DBTX
	conn *sql.DB
}

const orderColumns = `id, user_id, total_amount, status, payment_status, payment_method,
	shipping_address, shipping_city, shipping_zip, shipping_phone, created_at, updated_at`

const (
	insertOrderQuery = `
		INSERT INTO orders (user_id, total_amount, status, payment_status, payment_method,
			shipping_address, shipping_city, shipping_zip, shipping_phone)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, created_at, updated_at`
	insertOrderLineQuery = `
		INSERT INTO order_lines (order_id, line_no, product_id, name, price, quantity, size)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`
	getOrderQuery         = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	listOrdersByUserQuery = `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	listOrdersQuery       = `SELECT ` + orderColumns + ` FROM orders WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC, id DESC`
	listOrderLinesQuery   = `
		SELECT order_id, product_id, name, price, quantity, size
		FROM order_lines WHERE order_id = ANY($1)
		ORDER BY order_id, line_no`
	updateOrderStatusQuery = `UPDATE orders SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`
	orderExistsQuery       = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`
	deleteOrderQuery       = `DELETE FROM orders WHERE id = $1`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, conn: db}
}

// WithTx binds the repository to tx. The caller owns commit and rollback.
func (r *PostgresRepository) WithTx(tx *sql.Tx) *PostgresRepository {
	return &PostgresRepository{db: tx}
}

func (r *PostgresRepository) inTx(ctx context.Context, fn func(q database.DBTX) error) error {
	if r.conn == nil {
		return fn(r.db)
	}
	return database.ExecTx(ctx, r.conn, func(tx *sql.Tx) error { return fn(tx) })
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(s rowScanner) (Order, error) {
	var o Order
	err := s.Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.ShippingDetails.Address, &o.ShippingDetails.City, &o.ShippingDetails.ZipCode, &o.ShippingDetails.Phone,
		&o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (r *PostgresRepository) Create(ctx context.Context, o Order) (Order, error) {
	err := r.inTx(ctx, func(q database.DBTX) error {
		s := o.ShippingDetails
		err := q.QueryRowContext(ctx, insertOrderQuery,
			o.UserID, o.TotalAmount, o.Status, o.PaymentStatus, o.PaymentMethod,
			s.Address, s.City, s.ZipCode, s.Phone,
		).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return err
		}
		for i, l := range o.Items {
			if _, err := q.ExecContext(ctx, insertOrderLineQuery,
				o.ID, i+1, l.ProductID, l.Name, l.Price, l.Quantity, l.Size); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int) (Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, getOrderQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	orders := []Order{o}
	if err := r.attachLines(ctx, orders); err != nil {
		return Order{}, err
	}
	return orders[0], nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int) ([]Order, error) {
	return r.list(ctx, listOrdersByUserQuery, userID)
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]Order, error) {
	return r.list(ctx, listOrdersQuery, f.Status)
}

func (r *PostgresRepository) list(ctx context.Context, query string, arg any) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	orders := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// attachLines loads the lines of all orders in one query.
func (r *PostgresRepository) attachLines(ctx context.Context, orders []Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	index := make(map[int]int, len(orders))
	for i, o := range orders {
		ids[i] = int64(o.ID)
		index[o.ID] = i
		orders[i].Items = make([]Line, 0)
	}

	rows, err := r.db.QueryContext(ctx, listOrderLinesQuery, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID int
			l       Line
		)
		if err := rows.Scan(&orderID, &l.ProductID, &l.Name, &l.Price, &l.Quantity, &l.Size); err != nil {
			return err
		}
		if i, ok := index[orderID]; ok {
			orders[i].Items = append(orders[i].Items, l)
		}
	}
	return rows.Err()
}

func (r *PostgresRepository) UpdateStatusIf(ctx context.Context, id int, from, to string) (Order, error) {
	res, err := r.db.ExecContext(ctx, updateOrderStatusQuery, id, from, to)
	if err != nil {
		return Order{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Order{}, err
	}
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, orderExistsQuery, id).Scan(&exists); err != nil {
			return Order{}, err
		}
		if !exists {
			return Order{}, ErrNotFound
		}
		return Order{}, ErrStatusChanged
	}
	return r.GetByID(ctx, id)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, deleteOrderQuery, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
