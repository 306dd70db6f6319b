package models

import "github.com/shopspring/decimal"

type ActionType string

const ActionSelectFreeItem ActionType = "select_free_item"

// EligibilityResult is recomputed from scratch on every evaluation and never
// patched in place.
type EligibilityResult struct {
	OfferID            string          `json:"offer_id"`
	IsEligible         bool            `json:"is_eligible"`
	Reason             string          `json:"reason,omitempty"`
	Discount           decimal.Decimal `json:"discount"`
	FreeItems          []FreeItem      `json:"free_items,omitempty"`
	RequiresUserAction bool            `json:"requires_user_action,omitempty"`
	ActionType         ActionType      `json:"action_type,omitempty"`
	AvailableFreeItems []OfferItem     `json:"available_free_items,omitempty"`
}

func Ineligible(offerID, reason string) EligibilityResult {
	return EligibilityResult{OfferID: offerID, Reason: reason, Discount: decimal.Zero}
}
