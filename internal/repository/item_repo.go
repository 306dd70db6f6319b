package repository

import (
	"context"
	"database/sql"

	"github.com/go-faster/errors"
	"github.com/lib/pq"

	"github.com/Cheertaboi/pos-offer-service/internal/models"
)

type ItemRepo struct {
	db *sql.DB
}

func NewItemRepo(db *sql.DB) *ItemRepo {
	return &ItemRepo{db: db}
}

// ListForOffers loads the item/category links of the given offers, keyed by
// offer id, in the order the operator configured them.
func (r *ItemRepo) ListForOffers(ctx context.Context, offerIDs []string) (map[string][]models.OfferItem, error) {
	query := `
		SELECT oi.offer_id, COALESCE(oi.menu_item_id, ''), COALESCE(oi.menu_category_id, ''),
		       oi.item_type, COALESCE(mi.name, ''), COALESCE(mi.price, 0),
		       oi.is_required, oi.quantity
		FROM offer_items oi
		LEFT JOIN menu_items mi ON mi.id = oi.menu_item_id
		WHERE oi.offer_id = ANY($1::uuid[])
		ORDER BY oi.offer_id, oi.sort_order, oi.id
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(offerIDs))
	if err != nil {
		return nil, errors.Wrap(err, "query offer items")
	}
	defer rows.Close()

	out := make(map[string][]models.OfferItem, len(offerIDs))
	for rows.Next() {
		var (
			offerID  string
			it       models.OfferItem
			itemType string
		)
		if err := rows.Scan(&offerID, &it.MenuItemID, &it.MenuCategoryID, &itemType,
			&it.Name, &it.Price, &it.IsRequired, &it.Quantity); err != nil {
			return nil, errors.Wrap(err, "scan offer item")
		}
		it.ItemType = models.ItemType(itemType)
		out[offerID] = append(out[offerID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate offer items")
	}
	return out, nil
}

// MenuItem loads one active menu item as a free-item candidate.
func (r *ItemRepo) MenuItem(ctx context.Context, id string) (models.FreeItem, error) {
	query := `
		SELECT id, name, price, category_id
		FROM menu_items
		WHERE id = $1 AND is_active = TRUE
	`
	var it models.FreeItem
	err := r.db.QueryRowContext(ctx, query, id).Scan(&it.ID, &it.Name, &it.Price, &it.CategoryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.FreeItem{}, errors.Wrapf(models.ErrMenuItemNotFound, "menu item %s", id)
		}
		return models.FreeItem{}, errors.Wrap(err, "query menu item")
	}
	return it, nil
}
