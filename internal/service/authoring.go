package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-faster/errors"

	"github.com/Cheertaboi/pos-offer-service/internal/models"
)

var weekdays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// CreateOffer validates offer, stores it with its item links and re-evaluates
// every open session against the new catalog.
func (c *Coordinator) CreateOffer(ctx context.Context, offer *models.Offer) (*models.Offer, error) {
	if c.writer == nil {
		return nil, errors.New("offer authoring not configured")
	}
	if err := validateOffer(offer); err != nil {
		return nil, err
	}
	if err := c.writer.CreateOffer(ctx, offer); err != nil {
		return nil, errors.Wrap(err, "create offer")
	}
	slog.Info("offer created", "offer_id", offer.ID, "offer_type", offer.OfferType, "items", len(offer.Items))

	c.RefreshCatalog(ctx)
	return offer, nil
}

// validateOffer rejects what the evaluator would otherwise report on every
// evaluation. On success offer.Terms is set and defaults are filled in.
func validateOffer(o *models.Offer) error {
	o.Name = strings.TrimSpace(o.Name)
	if o.Name == "" {
		return errors.Wrap(models.ErrInvalidOffer, "name is required")
	}

	terms, err := models.ParseTerms(o.OfferType, o.Conditions, o.Benefits)
	if err != nil {
		var fe *models.FieldError
		if errors.Is(err, models.ErrUnknownOfferType) || errors.As(err, &fe) {
			return err
		}
		return errors.Wrapf(models.ErrInvalidOffer, "terms: %v", err)
	}
	o.Terms, o.TermsErr = terms, nil

	o.PromoCode = strings.TrimSpace(o.PromoCode)
	if o.OfferType == models.OfferPromoCode && o.PromoCode == "" {
		return &models.FieldError{Field: "promo_code"}
	}

	if o.StartDate != nil && o.EndDate != nil && o.EndDate.Before(*o.StartDate) {
		return errors.Wrap(models.ErrInvalidOffer, "end_date is before start_date")
	}
	if (o.ValidHoursStart == nil) != (o.ValidHoursEnd == nil) {
		return errors.Wrap(models.ErrInvalidOffer, "valid_hours_start and valid_hours_end must be set together")
	}
	for _, h := range []*string{o.ValidHoursStart, o.ValidHoursEnd} {
		if h == nil {
			continue
		}
		if _, err := parseClock(*h); err != nil {
			return errors.Wrapf(models.ErrInvalidOffer, "hour %q", *h)
		}
	}
	for i, d := range o.ValidDays {
		d = strings.ToLower(strings.TrimSpace(d))
		if !weekdays[d] {
			return errors.Wrapf(models.ErrInvalidOffer, "valid day %q", o.ValidDays[i])
		}
		o.ValidDays[i] = d
	}

	if o.UsageLimit != nil && *o.UsageLimit < 0 {
		return errors.Wrap(models.ErrInvalidOffer, "usage_limit must not be negative")
	}
	if o.TargetCustomerType == "" {
		o.TargetCustomerType = models.CustomerAll
	}
	switch o.ApplicationType {
	case "":
		o.ApplicationType = models.ApplicationSessionLevel
	case models.ApplicationSessionLevel, models.ApplicationOrderLevel:
	default:
		return errors.Wrapf(models.ErrInvalidOffer, "application_type %q", o.ApplicationType)
	}

	for i, it := range o.Items {
		if it.MenuItemID == "" && it.MenuCategoryID == "" {
			return errors.Wrapf(models.ErrInvalidOffer, "item %d needs menu_item_id or menu_category_id", i)
		}
		switch it.ItemType {
		case models.ItemBuy, models.ItemGetFree, models.ItemAddon, models.ItemDiscount, models.ItemFreeThreshold:
		default:
			return errors.Wrapf(models.ErrInvalidOffer, "item %d has item_type %q", i, it.ItemType)
		}
		if it.Quantity <= 0 {
			o.Items[i].Quantity = 1
		}
	}
	return nil
}
