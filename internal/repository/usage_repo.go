package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"

	"github.com/Cheertaboi/pos-offer-service/internal/models"
)

type UsageRepo struct {
	db *sql.DB
}

func NewUsageRepo(db *sql.DB) *UsageRepo {
	return &UsageRepo{db: db}
}

// recordUsage consumes one use of the offer and stores the usage row inside
// tx. The offer row is locked first so concurrent sessions cannot overrun
// usage_limit.
func recordUsage(ctx context.Context, tx *sql.Tx, rec models.UsageRecord) error {
	count, limit, err := lockUsage(ctx, tx, rec.OfferID)
	if err != nil {
		return err
	}
	if limit.Valid && int64(count) >= limit.Int64 {
		return models.ErrUsageLimitReached
	}

	freeItems, err := json.Marshal(rec.FreeItems)
	if err != nil {
		return errors.Wrap(err, "encode free items")
	}
	insert := `
		INSERT INTO offer_usages
		(id, offer_id, order_id, session_id, customer_phone, channel, discount_amount, free_items, used_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	phone := sql.NullString{String: rec.CustomerPhone, Valid: rec.CustomerPhone != ""}
	if _, err := tx.ExecContext(ctx, insert, rec.ID, rec.OfferID, rec.OrderID, rec.SessionID,
		phone, string(rec.Channel), rec.Discount, freeItems, rec.UsedAt); err != nil {
		return errors.Wrap(err, "insert offer usage")
	}

	return incrementUsage(ctx, tx, rec.OfferID)
}

// lockUsage reads the offer counters and locks the row for update.
func lockUsage(ctx context.Context, tx *sql.Tx, offerID string) (int, sql.NullInt64, error) {
	var (
		count int
		limit sql.NullInt64
	)
	query := `
		SELECT usage_count, usage_limit
		FROM offers
		WHERE id = $1
		FOR UPDATE
	`
	err := tx.QueryRowContext(ctx, query, offerID).Scan(&count, &limit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, limit, errors.Wrapf(models.ErrOfferNotFound, "offer %s", offerID)
		}
		return 0, limit, errors.Wrap(err, "lock offer usage")
	}
	return count, limit, nil
}

func incrementUsage(ctx context.Context, tx *sql.Tx, offerID string) error {
	query := `
		UPDATE offers
		SET usage_count = usage_count + 1,
		    updated_at = $2
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, query, offerID, time.Now().UTC()); err != nil {
		return errors.Wrap(err, "increment offer usage")
	}
	return nil
}

func (r *UsageRepo) SessionHasUsage(ctx context.Context, sessionID string) (bool, error) {
	var used bool
	query := `SELECT EXISTS (SELECT 1 FROM offer_usages WHERE session_id = $1)`
	if err := r.db.QueryRowContext(ctx, query, sessionID).Scan(&used); err != nil {
		return false, errors.Wrap(err, "check session usage")
	}
	return used, nil
}
