package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/go-faster/errors"

	"github.com/Cheertaboi/pos-offer-service/internal/models"
)

// SessionRepo reads and binds the offer lock columns of dining_sessions.
// The session rows themselves are owned by the table service.
type SessionRepo struct {
	db *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) LoadSession(ctx context.Context, id string) (models.SessionRecord, error) {
	query := `
		SELECT channel, locked_offer_id, locked_offer_data, offer_applied_at, locked_by_guest
		FROM dining_sessions
		WHERE id = $1
	`
	var (
		channel  string
		offerID  sql.NullString
		data     []byte
		lockedAt sql.NullTime
		byGuest  bool
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&channel, &offerID, &data, &lockedAt, &byGuest)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SessionRecord{}, errors.Wrapf(models.ErrSessionNotFound, "session %s", id)
		}
		return models.SessionRecord{}, errors.Wrap(err, "query session")
	}

	rec := models.SessionRecord{ID: id, Channel: models.Channel(channel)}
	if !offerID.Valid {
		return rec, nil
	}

	lock := &models.SessionOfferLock{
		OfferID:       offerID.String,
		LockedAt:      lockedAt.Time,
		LockedByGuest: byGuest,
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &lock.Snapshot); err != nil {
			return models.SessionRecord{}, errors.Wrap(err, "decode locked offer data")
		}
	}
	rec.Lock = lock
	return rec, nil
}

// BindOffer stores lock on the session and consumes one use of its offer in
// a single transaction. The session update only matches while
// locked_offer_id is still NULL. When it matches nothing the transaction is
// rolled back, no usage is recorded and the lock that won is returned with
// won=false. A reached usage_limit rolls the lock back too.
func (r *SessionRepo) BindOffer(ctx context.Context, id string, lock models.SessionOfferLock, usage models.UsageRecord) (models.SessionOfferLock, bool, error) {
	data, err := json.Marshal(lock.Snapshot)
	if err != nil {
		return models.SessionOfferLock{}, false, errors.Wrap(err, "encode locked offer data")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.SessionOfferLock{}, false, errors.Wrap(err, "begin tx")
	}
	done := false
	defer func() {
		if !done {
			_ = tx.Rollback()
		}
	}()

	query := `
		UPDATE dining_sessions
		SET locked_offer_id = $2,
		    locked_offer_data = $3,
		    offer_applied_at = $4,
		    locked_by_guest = $5
		WHERE id = $1 AND locked_offer_id IS NULL
	`
	res, err := tx.ExecContext(ctx, query, id, lock.OfferID, data, lock.LockedAt, lock.LockedByGuest)
	if err != nil {
		return models.SessionOfferLock{}, false, errors.Wrap(err, "set session lock")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.SessionOfferLock{}, false, errors.Wrap(err, "rows affected")
	}

	if n == 0 {
		done = true
		if err := tx.Rollback(); err != nil {
			return models.SessionOfferLock{}, false, errors.Wrap(err, "tx rollback")
		}
		rec, err := r.LoadSession(ctx, id)
		if err != nil {
			return models.SessionOfferLock{}, false, err
		}
		if rec.Lock == nil {
			return models.SessionOfferLock{}, false, errors.New("session lock cleared while binding")
		}
		return *rec.Lock, false, nil
	}

	if err := recordUsage(ctx, tx, usage); err != nil {
		return models.SessionOfferLock{}, false, err
	}

	if err := tx.Commit(); err != nil {
		return models.SessionOfferLock{}, false, errors.Wrap(err, "tx commit")
	}
	done = true
	return lock, true, nil
}

func (r *SessionRepo) ClearLock(ctx context.Context, id string) error {
	query := `
		UPDATE dining_sessions
		SET locked_offer_id = NULL,
		    locked_offer_data = NULL,
		    offer_applied_at = NULL,
		    locked_by_guest = FALSE
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return errors.Wrap(err, "clear session lock")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.Wrapf(models.ErrSessionNotFound, "session %s", id)
	}
	return nil
}
