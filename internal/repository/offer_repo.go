package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/go-faster/errors"
	"github.com/lib/pq"

	"github.com/Cheertaboi/pos-offer-service/internal/models"
)

type OfferRepo struct {
	db    *sql.DB
	items *ItemRepo
}

func NewOfferRepo(db *sql.DB, items *ItemRepo) *OfferRepo {
	return &OfferRepo{db: db, items: items}
}

const offerColumns = `
	id, name, description, is_active, priority, offer_type, conditions, benefits,
	start_date, end_date, valid_hours_start, valid_hours_end, valid_days,
	target_customer_type, usage_limit, usage_count, promo_code,
	enabled_for_dine_in, enabled_for_takeaway, application_type, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *OfferRepo) ActiveOffers(ctx context.Context, ch models.Channel) ([]models.Offer, error) {
	var gate string
	switch ch {
	case models.ChannelDineIn:
		gate = "enabled_for_dine_in"
	case models.ChannelTakeaway:
		gate = "enabled_for_takeaway"
	default:
		return nil, models.ErrInvalidChannel
	}

	query := `SELECT` + offerColumns + `
		FROM offers
		WHERE is_active = TRUE AND ` + gate + ` = TRUE
		ORDER BY priority DESC, created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "query active offers")
	}
	defer rows.Close()

	var offers []models.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate offers")
	}
	if len(offers) == 0 {
		return offers, nil
	}

	ids := make([]string, len(offers))
	for i := range offers {
		ids[i] = offers[i].ID
	}
	items, err := r.items.ListForOffers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range offers {
		offers[i].Items = items[offers[i].ID]
	}
	return offers, nil
}

func (r *OfferRepo) OfferByID(ctx context.Context, id string) (*models.Offer, error) {
	query := `SELECT` + offerColumns + ` FROM offers WHERE id = $1`

	o, err := scanOffer(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(models.ErrOfferNotFound, "offer %s", id)
		}
		return nil, err
	}

	items, err := r.items.ListForOffers(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	o.Items = items[id]
	return &o, nil
}

func scanOffer(row rowScanner) (models.Offer, error) {
	var (
		o           models.Offer
		description sql.NullString
		conditions  []byte
		benefits    []byte
		startDate   sql.NullTime
		endDate     sql.NullTime
		hoursStart  sql.NullString
		hoursEnd    sql.NullString
		days        []string
		usageLimit  sql.NullInt64
		promoCode   sql.NullString
		appType     sql.NullString
		offerType   string
		target      string
	)

	err := row.Scan(
		&o.ID,
		&o.Name,
		&description,
		&o.IsActive,
		&o.Priority,
		&offerType,
		&conditions,
		&benefits,
		&startDate,
		&endDate,
		&hoursStart,
		&hoursEnd,
		pq.Array(&days),
		&target,
		&usageLimit,
		&o.UsageCount,
		&promoCode,
		&o.EnabledForDineIn,
		&o.EnabledForTakeaway,
		&appType,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return o, err
		}
		return o, errors.Wrap(err, "scan offer")
	}

	o.Description = description.String
	o.OfferType = models.OfferType(offerType)
	o.TargetCustomerType = models.CustomerType(target)
	o.PromoCode = promoCode.String
	o.ValidDays = days
	o.Conditions = conditions
	o.Benefits = benefits
	o.ApplicationType = models.ApplicationSessionLevel
	if appType.Valid && appType.String != "" {
		o.ApplicationType = models.ApplicationType(appType.String)
	}
	if startDate.Valid {
		t := startDate.Time
		o.StartDate = &t
	}
	if endDate.Valid {
		t := endDate.Time
		o.EndDate = &t
	}
	if hoursStart.Valid {
		s := hoursStart.String
		o.ValidHoursStart = &s
	}
	if hoursEnd.Valid {
		s := hoursEnd.String
		o.ValidHoursEnd = &s
	}
	if usageLimit.Valid {
		n := int(usageLimit.Int64)
		o.UsageLimit = &n
	}

	o.Terms, o.TermsErr = models.ParseTerms(o.OfferType, conditions, benefits)
	if o.TermsErr != nil {
		slog.Warn("offer has invalid terms", "offer_id", o.ID, "offer_type", offerType, "error", o.TermsErr)
	}
	return o, nil
}

// CreateOffer inserts the offer and its item links in one transaction and
// fills in the generated id and creation time.
func (r *OfferRepo) CreateOffer(ctx context.Context, o *models.Offer) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	insertOffer := `
		INSERT INTO offers
		(name, description, is_active, priority, offer_type, conditions, benefits,
		 start_date, end_date, valid_hours_start, valid_hours_end, valid_days,
		 target_customer_type, usage_limit, promo_code,
		 enabled_for_dine_in, enabled_for_takeaway, application_type, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,NOW(),NOW())
		RETURNING id, created_at
	`
	var days interface{}
	if len(o.ValidDays) > 0 {
		days = pq.Array(o.ValidDays)
	}
	err = tx.QueryRowContext(ctx, insertOffer,
		o.Name,
		nullString(o.Description),
		o.IsActive,
		o.Priority,
		string(o.OfferType),
		jsonDocument(o.Conditions),
		jsonDocument(o.Benefits),
		o.StartDate,
		o.EndDate,
		o.ValidHoursStart,
		o.ValidHoursEnd,
		days,
		string(o.TargetCustomerType),
		o.UsageLimit,
		nullString(o.PromoCode),
		o.EnabledForDineIn,
		o.EnabledForTakeaway,
		string(o.ApplicationType),
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "insert offer")
	}

	if len(o.Items) > 0 {
		stmt := `
			INSERT INTO offer_items
			(offer_id, menu_item_id, menu_category_id, item_type, is_required, quantity, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		for i, it := range o.Items {
			if _, err := tx.ExecContext(ctx, stmt, o.ID, nullString(it.MenuItemID), nullString(it.MenuCategoryID),
				string(it.ItemType), it.IsRequired, it.Quantity, i); err != nil {
				return errors.Wrap(err, "insert offer item")
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "tx commit")
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func jsonDocument(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte("{}")
	}
	return raw
}
