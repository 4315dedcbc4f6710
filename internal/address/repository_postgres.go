package address

import (
	"context"
	"database/sql"
	"errors"
)

type PostgresRepository struct {
	db *sql.DB
}

const addressColumns = `id, user_id, label, address, city, zip_code, phone, created_at, updated_at`

const (
	listAddressesQuery = `SELECT ` + addressColumns + ` FROM addresses WHERE user_id = $1 ORDER BY id`
	getAddressQuery    = `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1`
	insertAddressQuery = `
		INSERT INTO addresses (user_id, label, address, city, zip_code, phone)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING ` + addressColumns
	updateAddressQuery = `
		UPDATE addresses
		SET label = $3, address = $4, city = $5, zip_code = $6, phone = $7, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + addressColumns
	deleteAddressQuery = `DELETE FROM addresses WHERE id = $1 AND user_id = $2`
)

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAddress(s rowScanner) (Address, error) {
	var a Address
	err := s.Scan(&a.ID, &a.UserID, &a.Label, &a.Address, &a.City, &a.ZipCode, &a.Phone, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Address{}, ErrNotFound
	}
	return a, err
}

func (r *PostgresRepository) List(ctx context.Context, userID int) ([]Address, error) {
	rows, err := r.db.QueryContext(ctx, listAddressesQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Address, 0)
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int) (Address, error) {
	return scanAddress(r.db.QueryRowContext(ctx, getAddressQuery, id))
}

func (r *PostgresRepository) Create(ctx context.Context, userID int, in Input) (Address, error) {
	return scanAddress(r.db.QueryRowContext(ctx, insertAddressQuery,
		userID, in.Label, in.Address, in.City, in.ZipCode, in.Phone))
}

func (r *PostgresRepository) Update(ctx context.Context, userID, id int, in Input) (Address, error) {
	return scanAddress(r.db.QueryRowContext(ctx, updateAddressQuery,
		id, userID, in.Label, in.Address, in.City, in.ZipCode, in.Phone))
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id int) error {
	res, err := r.db.ExecContext(ctx, deleteAddressQuery, id, userID)
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
