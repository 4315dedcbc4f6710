package cart

import (
	"context"
	"database/sql"
	"errors"

	"github.com/wichananm65/marketplace-backend/internal/database"
)

// PostgresRepository stores one row per (user, product) in cart_items.
type PostgresRepository struct {
	db database.DBTX
}

const (
	listLinesQuery = `SELECT product_id, quantity FROM cart_items WHERE user_id = $1 ORDER BY product_id`
	// the insert path and the conflict path both enforce the limit
	addLineQuery = `
		INSERT INTO cart_items (user_id, product_id, quantity)
		SELECT $1::int, $2::int, $3::int WHERE $3::int <= $4::int
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
		WHERE EXCLUDED.quantity <= $4::int - cart_items.quantity
		RETURNING quantity`
	adjustLineQuery = `
		UPDATE cart_items
		SET quantity = quantity + $3, updated_at = now()
		WHERE user_id = $1 AND product_id = $2 AND $3 BETWEEN 1 - quantity AND $4 - quantity
		RETURNING quantity`
	lineQuantityQuery = `SELECT quantity FROM cart_items WHERE user_id = $1 AND product_id = $2`
	removeLineQuery   = `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`
	clearCartQuery    = `DELETE FROM cart_items WHERE user_id = $1`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// WithTx binds the repository to tx. The caller owns commit and rollback.
func (r *PostgresRepository) WithTx(tx *sql.Tx) *PostgresRepository {
	return &PostgresRepository{db: tx}
}

func (r *PostgresRepository) Lines(ctx context.Context, userID int) ([]Line, error) {
	rows, err := r.db.QueryContext(ctx, listLinesQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]Line, 0)
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ProductID, &l.Quantity); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *PostgresRepository) currentQuantity(ctx context.Context, userID, productID int) (int, bool, error) {
	var qty int
	err := r.db.QueryRowContext(ctx, lineQuantityQuery, userID, productID).Scan(&qty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return qty, true, nil
}

func (r *PostgresRepository) Add(ctx context.Context, userID, productID, qty, limit int) (int, error) {
	var next int
	err := r.db.QueryRowContext(ctx, addLineQuery, userID, productID, qty, limit).Scan(&next)
	if err == nil {
		return next, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	current, _, err := r.currentQuantity(ctx, userID, productID)
	if err != nil {
		return 0, err
	}
	return current, ErrOverLimit
}

func (r *PostgresRepository) Adjust(ctx context.Context, userID, productID, delta, limit int) (int, error) {
	var next int
	err := r.db.QueryRowContext(ctx, adjustLineQuery, userID, productID, delta, limit).Scan(&next)
	if err == nil {
		return next, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	current, ok, err := r.currentQuantity(ctx, userID, productID)
	switch {
	case err != nil:
		return 0, err
	case !ok:
		return 0, ErrItemNotFound
	case delta < 1-current:
		return current, ErrInvalidQuantity
	default:
		return current, ErrOverLimit
	}
}

func (r *PostgresRepository) Remove(ctx context.Context, userID, productID int) error {
	_, err := r.db.ExecContext(ctx, removeLineQuery, userID, productID)
	return err
}

func (r *PostgresRepository) Clear(ctx context.Context, userID int) error {
	_, err := r.db.ExecContext(ctx, clearCartQuery, userID)
	return err
}
