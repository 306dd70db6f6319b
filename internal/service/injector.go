package service

import (
	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/pos-offer-service/internal/models"
)

// Reconcile replaces the free-item group of cart in one step: every free
// line is dropped, then the grants of result (if eligible) are appended as
// zero-price lines tagged with offerID. Grants already paid for in the cart
// are realised through the discount and are not added again. The input
// slice is never modified.
func Reconcile(cart []models.CartItem, offerID string, result *models.EligibilityResult) []models.CartItem {
	out := models.PaidItems(cart)
	if result == nil || !result.IsEligible || offerID == "" {
		return out
	}
	for _, fi := range result.FreeItems {
		if fi.InCart || fi.Quantity <= 0 {
			continue
		}
		out = append(out, models.CartItem{
			ID:            fi.ID,
			Name:          fi.Name,
			Price:         decimal.Zero,
			Quantity:      fi.Quantity,
			CategoryID:    fi.CategoryID,
			IsFree:        true,
			LinkedOfferID: offerID,
		})
	}
	return out
}

// StripFree removes every free line regardless of the offer that granted it.
func StripFree(cart []models.CartItem) []models.CartItem {
	return Reconcile(cart, "", nil)
}
