package repository

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"
)

type CustomerRepo struct {
	db *sql.DB
}

func NewCustomerRepo(db *sql.DB) *CustomerRepo {
	return &CustomerRepo{db: db}
}

// VisitCount counts the customer's earlier orders that were not cancelled.
func (r *CustomerRepo) VisitCount(ctx context.Context, phone string) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM orders WHERE customer_phone = $1 AND status <> 'cancelled'`
	if err := r.db.QueryRowContext(ctx, query, phone).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count customer visits")
	}
	return n, nil
}
