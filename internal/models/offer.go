package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type OfferType string

const (
	OfferCartPercentage    OfferType = "cart_percentage"
	OfferCartFlatAmount    OfferType = "cart_flat_amount"
	OfferMinOrderDiscount  OfferType = "min_order_discount"
	OfferCartThresholdItem OfferType = "cart_threshold_item"
	OfferItemBuyGetFree    OfferType = "item_buy_get_free"
	OfferItemFreeAddon     OfferType = "item_free_addon"
	OfferItemPercentage    OfferType = "item_percentage"
	OfferTimeBased         OfferType = "time_based"
	OfferCustomerBased     OfferType = "customer_based"
	OfferComboMeal         OfferType = "combo_meal"
	OfferPromoCode         OfferType = "promo_code"
)

type CustomerType string

const (
	CustomerAll       CustomerType = "all"
	CustomerFirstTime CustomerType = "first_time"
	CustomerReturning CustomerType = "returning"
	CustomerLoyalty   CustomerType = "loyalty"
)

type ItemType string

const (
	ItemBuy           ItemType = "buy"
	ItemGetFree       ItemType = "get_free"
	ItemAddon         ItemType = "addon"
	ItemDiscount      ItemType = "discount"
	ItemFreeThreshold ItemType = "free_threshold"
)

type Channel string

const (
	ChannelDineIn   Channel = "dine_in"
	ChannelTakeaway Channel = "takeaway"
)

func (c Channel) Valid() bool {
	return c == ChannelDineIn || c == ChannelTakeaway
}

type ApplicationType string

const (
	ApplicationSessionLevel ApplicationType = "session_level"
	ApplicationOrderLevel   ApplicationType = "order_level"
)

// Offer is an operator-authored promotion as loaded from the catalog.
// Terms holds the typed conditions/benefits; when decoding failed Terms is
// nil and TermsErr says why.
type Offer struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	Priority    int       `json:"priority"`
	OfferType   OfferType `json:"offer_type"`

	Conditions json.RawMessage `json:"conditions,omitempty"`
	Benefits   json.RawMessage `json:"benefits,omitempty"`
	Terms      Terms           `json:"-"`
	TermsErr   error           `json:"-"`

	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	ValidHoursStart *string    `json:"valid_hours_start,omitempty"` // "HH:MM"
	ValidHoursEnd   *string    `json:"valid_hours_end,omitempty"`
	ValidDays       []string   `json:"valid_days,omitempty"`

	TargetCustomerType CustomerType `json:"target_customer_type"`
	UsageLimit         *int         `json:"usage_limit,omitempty"`
	UsageCount         int          `json:"usage_count"`
	PromoCode          string       `json:"-"`

	EnabledForDineIn   bool            `json:"enabled_for_dine_in"`
	EnabledForTakeaway bool            `json:"enabled_for_takeaway"`
	ApplicationType    ApplicationType `json:"application_type"`

	Items     []OfferItem `json:"items,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// EnabledFor reports whether the offer is visible on the given channel.
func (o *Offer) EnabledFor(ch Channel) bool {
	switch ch {
	case ChannelDineIn:
		return o.EnabledForDineIn
	case ChannelTakeaway:
		return o.EnabledForTakeaway
	}
	return false
}

// OfferItem links an offer to a menu item or a whole category. Name and
// Price are joined from the menu when MenuItemID is set.
type OfferItem struct {
	MenuItemID     string          `json:"menu_item_id,omitempty"`
	MenuCategoryID string          `json:"menu_category_id,omitempty"`
	ItemType       ItemType        `json:"item_type"`
	Name           string          `json:"name,omitempty"`
	Price          decimal.Decimal `json:"price"`
	IsRequired     bool            `json:"is_required,omitempty"`
	Quantity       int             `json:"quantity,omitempty"`
}

// Matches reports whether a cart line is covered by this link.
func (oi OfferItem) Matches(it CartItem) bool {
	if oi.MenuItemID != "" {
		return oi.MenuItemID == it.ID
	}
	return oi.MenuCategoryID != "" && oi.MenuCategoryID == it.CategoryID
}

// OfferSnapshot is the frozen copy of an offer stored with a session lock.
type OfferSnapshot struct {
	OfferID    string          `json:"offer_id"`
	Name       string          `json:"name"`
	OfferType  OfferType       `json:"offer_type"`
	Conditions json.RawMessage `json:"conditions,omitempty"`
	Benefits   json.RawMessage `json:"benefits,omitempty"`
	LockedAt   time.Time       `json:"locked_at"`
}

func (o *Offer) Snapshot(at time.Time) OfferSnapshot {
	return OfferSnapshot{
		OfferID:    o.ID,
		Name:       o.Name,
		OfferType:  o.OfferType,
		Conditions: o.Conditions,
		Benefits:   o.Benefits,
		LockedAt:   at,
	}
}
