package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/wichananm65/marketplace-backend/internal/apperr"
	"github.com/wichananm65/marketplace-backend/internal/database"
)

// PostgresRepository stores products in the products table. A repository
// returned by WithTx runs every statement on that transaction.
type PostgresRepository struct {
	db   database.DBTX
	conn *sql.DB
}

const productColumns = `id, name, description, price, category, sizes, colors, images, stock, rating, num_reviews, created_at, updated_at`

const (
	getProductByIDQuery  = `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	getProductsByIDQuery = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1) ORDER BY id`
	insertProductQuery   = `
		INSERT INTO products (name, description, price, category, sizes, colors, images, stock)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING ` + productColumns
	insertProductWithIDQuery = `
		INSERT INTO products (id, name, description, price, category, sizes, colors, images, stock)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	updateProductQuery = `
		UPDATE products
		SET name = COALESCE($2, name),
			description = COALESCE($3, description),
			price = COALESCE($4::numeric, price),
			category = COALESCE($5, category),
			stock = COALESCE($6::int, stock),
			images = COALESCE($7::text[], images),
			sizes = COALESCE($8::text[], sizes),
			colors = COALESCE($9::text[], colors),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + productColumns
	deleteProductQuery = `DELETE FROM products WHERE id = $1`

	decrementStockQuery = `UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1 AND stock >= $2`
	incrementStockQuery = `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`
	stockProbeQuery     = `SELECT name, stock FROM products WHERE id = $1`

	categoriesQuery = `
		SELECT category, COUNT(*) FROM products
		WHERE category <> ''
		GROUP BY category
		ORDER BY category`

	lockProductQuery   = `SELECT id FROM products WHERE id = $1 FOR UPDATE`
	insertReviewQuery  = `INSERT INTO product_reviews (product_id, user_id, name, rating, comment) VALUES ($1,$2,$3,$4,$5)`
	refreshRatingQuery = `
		UPDATE products p
		SET rating = s.avg, num_reviews = s.n, updated_at = now()
		FROM (SELECT COALESCE(AVG(rating), 0) AS avg, COUNT(*) AS n FROM product_reviews WHERE product_id = $1) s
		WHERE p.id = $1`
	listReviewsQuery = `
		SELECT id, user_id, name, rating, comment, created_at
		FROM product_reviews WHERE product_id = $1
		ORDER BY created_at, id`

	deleteAllProductsQuery = `DELETE FROM products`
	resetSequenceQuery     = `SELECT setval(pg_get_serial_sequence('products', 'id'), GREATEST((SELECT MAX(id) FROM products), 1))`
)

var sortClauses = map[string]string{
	SortNewest:    "created_at DESC, id DESC",
	SortPriceLow:  "price ASC, id ASC",
	SortPriceHigh: "price DESC, id ASC",
	SortName:      "name ASC, id ASC",
}

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

func scanProduct(s rowScanner) (Product, error) {
	var p Product
	err := s.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category,
		pq.Array(&p.Sizes), pq.Array(&p.Colors), pq.Array(&p.Images),
		&p.Stock, &p.Rating, &p.NumReviews, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]Product, error) {
	f = f.normalize()

	var (
		sb    strings.Builder
		args  []any
		where []string
	)
	sb.WriteString(`SELECT ` + productColumns + ` FROM products`)
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("lower(category) = lower($%d)", len(args)))
	}
	if f.Search != "" {
		args = append(args, f.Search)
		where = append(where, fmt.Sprintf("name ILIKE '%%' || $%d || '%%'", len(args)))
	}
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY " + sortClauses[f.Sort])
	args = append(args, f.Limit, f.Offset)
	fmt.Fprintf(&sb, " LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Categories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, categoriesQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int) (Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, getProductByIDQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}

	rows, err := r.db.QueryContext(ctx, listReviewsQuery, id)
	if err != nil {
		return Product{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var rv Review
		if err := rows.Scan(&rv.ID, &rv.UserID, &rv.Name, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return Product{}, err
		}
		p.Reviews = append(p.Reviews, rv)
	}
	return p, rows.Err()
}

func (r *PostgresRepository) GetByIDs(ctx context.Context, ids []int) ([]Product, error) {
	if len(ids) == 0 {
		return []Product{}, nil
	}
	keys := make([]int64, len(ids))
	for i, id := range ids {
		keys[i] = int64(id)
	}

	rows, err := r.db.QueryContext(ctx, getProductsByIDQuery, pq.Array(keys))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Product, 0, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Create(ctx context.Context, p Product) (Product, error) {
	row := r.db.QueryRowContext(ctx, insertProductQuery,
		p.Name, p.Description, p.Price, p.Category,
		pq.Array(nonNil(p.Sizes)), pq.Array(nonNil(p.Colors)), pq.Array(nonNil(p.Images)), p.Stock)
	return scanProduct(row)
}

func (r *PostgresRepository) Update(ctx context.Context, id int, patch Patch) (Product, error) {
	if patch.IsEmpty() {
		return r.GetByID(ctx, id)
	}
	row := r.db.QueryRowContext(ctx, updateProductQuery, id,
		orNil(patch.Name), orNil(patch.Description), orNil(patch.Price), orNil(patch.Category),
		orNil(patch.Stock), arrayOrNil(patch.Images), arrayOrNil(patch.Sizes), arrayOrNil(patch.Colors))
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *PostgresRepository) Delete(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, deleteProductQuery, id)
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

// DecrementStock relies on the conditional UPDATE for correctness. The probe
// that follows a miss only shapes the error.
func (r *PostgresRepository) DecrementStock(ctx context.Context, id, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	res, err := r.db.ExecContext(ctx, decrementStockQuery, id, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var (
		name  string
		stock int
	)
	if err := r.db.QueryRowContext(ctx, stockProbeQuery, id).Scan(&name, &stock); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return &apperr.StockError{ProductID: id, ProductName: name, Requested: qty, Available: stock}
}

func (r *PostgresRepository) IncrementStock(ctx context.Context, id, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	res, err := r.db.ExecContext(ctx, incrementStockQuery, id, qty)
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

func (r *PostgresRepository) AddReview(ctx context.Context, id int, rv Review) (Product, error) {
	err := r.inTx(ctx, func(q database.DBTX) error {
		var locked int
		if err := q.QueryRowContext(ctx, lockProductQuery, id).Scan(&locked); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if _, err := q.ExecContext(ctx, insertReviewQuery, id, rv.UserID, rv.Name, rv.Rating, rv.Comment); err != nil {
			if database.IsUniqueViolation(err) {
				return ErrAlreadyReviewed
			}
			return err
		}
		_, err := q.ExecContext(ctx, refreshRatingQuery, id)
		return err
	})
	if err != nil {
		return Product{}, err
	}
	return r.GetByID(ctx, id)
}

// Reset deletes all products (and their reviews) and inserts the given list.
func (r *PostgresRepository) Reset(ctx context.Context, products []Product) error {
	return r.inTx(ctx, func(q database.DBTX) error {
		if _, err := q.ExecContext(ctx, deleteAllProductsQuery); err != nil {
			return err
		}
		for _, p := range products {
			var err error
			if p.ID > 0 {
				_, err = q.ExecContext(ctx, insertProductWithIDQuery, p.ID,
					p.Name, p.Description, p.Price, p.Category,
					pq.Array(nonNil(p.Sizes)), pq.Array(nonNil(p.Colors)), pq.Array(nonNil(p.Images)), p.Stock)
			} else {
				_, err = q.ExecContext(ctx, insertProductQuery,
					p.Name, p.Description, p.Price, p.Category,
					pq.Array(nonNil(p.Sizes)), pq.Array(nonNil(p.Colors)), pq.Array(nonNil(p.Images)), p.Stock)
			}
			if err != nil {
				return fmt.Errorf("insert %q: %w", p.Name, err)
			}
		}
		_, err := q.ExecContext(ctx, resetSequenceQuery)
		return err
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orNil[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func arrayOrNil(p *[]string) any {
	if p == nil {
		return nil
	}
	return pq.Array(nonNil(*p))
}
