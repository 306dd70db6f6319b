package models

import (
	"bytes"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Terms is the typed conditions/benefits payload of an offer. There is one
// implementation per OfferType; the set is closed.
type Terms interface {
	Type() OfferType
	Common() CommonConditions
	validate() error
}

// CommonConditions are read by the universal pre-checks for every offer type.
type CommonConditions struct {
	MinAmount      *decimal.Decimal `json:"min_amount,omitempty"`
	MinOrdersCount *int             `json:"min_orders_count,omitempty"`
}

func (c CommonConditions) Common() CommonConditions { return c }

// ValueBenefit is the shared "percentage or flat" benefit shape.
type ValueBenefit struct {
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
	DiscountAmount     *decimal.Decimal `json:"discount_amount,omitempty"`
	MaxDiscountAmount  *decimal.Decimal `json:"max_discount_amount,omitempty"`
}

func (v ValueBenefit) validateValue() error {
	if v.DiscountPercentage != nil && v.DiscountPercentage.IsPositive() {
		return nil
	}
	if v.DiscountAmount != nil && v.DiscountAmount.IsPositive() {
		return nil
	}
	return &FieldError{Field: "discount_percentage or discount_amount"}
}

type CartPercentageTerms struct {
	CommonConditions
	DiscountPercentage decimal.Decimal  `json:"discount_percentage"`
	MaxDiscountAmount  *decimal.Decimal `json:"max_discount_amount,omitempty"`
}

func (*CartPercentageTerms) Type() OfferType { return OfferCartPercentage }

func (t *CartPercentageTerms) validate() error {
	if !t.DiscountPercentage.IsPositive() {
		return &FieldError{Field: "discount_percentage"}
	}
	return nil
}

type CartFlatAmountTerms struct {
	CommonConditions
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

func (*CartFlatAmountTerms) Type() OfferType { return OfferCartFlatAmount }

func (t *CartFlatAmountTerms) validate() error {
	if !t.DiscountAmount.IsPositive() {
		return &FieldError{Field: "discount_amount"}
	}
	return nil
}

type MinOrderDiscountTerms struct {
	CommonConditions
	ValueBenefit
	ThresholdAmount decimal.Decimal `json:"threshold_amount"`
}

func (*MinOrderDiscountTerms) Type() OfferType { return OfferMinOrderDiscount }

func (t *MinOrderDiscountTerms) validate() error {
	if !t.ThresholdAmount.IsPositive() {
		return &FieldError{Field: "threshold_amount"}
	}
	return t.validateValue()
}

type CartThresholdItemTerms struct {
	CommonConditions
	ThresholdAmount decimal.Decimal  `json:"threshold_amount"`
	MaxPrice        *decimal.Decimal `json:"max_price,omitempty"`
}

func (*CartThresholdItemTerms) Type() OfferType { return OfferCartThresholdItem }

func (t *CartThresholdItemTerms) validate() error {
	if !t.ThresholdAmount.IsPositive() {
		return &FieldError{Field: "threshold_amount"}
	}
	return nil
}

type ItemBuyGetFreeTerms struct {
	CommonConditions
	BuyQuantity int  `json:"buy_quantity"`
	GetQuantity int  `json:"get_quantity"`
	GetSameItem bool `json:"get_same_item"`
}

func (*ItemBuyGetFreeTerms) Type() OfferType { return OfferItemBuyGetFree }

func (t *ItemBuyGetFreeTerms) validate() error {
	if t.BuyQuantity <= 0 {
		return &FieldError{Field: "buy_quantity"}
	}
	if t.GetQuantity <= 0 {
		t.GetQuantity = 1
	}
	return nil
}

type ItemFreeAddonTerms struct {
	CommonConditions
	MaxFreePrice *decimal.Decimal `json:"max_free_price,omitempty"`
}

func (*ItemFreeAddonTerms) Type() OfferType { return OfferItemFreeAddon }

func (*ItemFreeAddonTerms) validate() error { return nil }

type ItemPercentageTerms struct {
	CommonConditions
	DiscountPercentage decimal.Decimal  `json:"discount_percentage"`
	MaxDiscountAmount  *decimal.Decimal `json:"max_discount_amount,omitempty"`
}

func (*ItemPercentageTerms) Type() OfferType { return OfferItemPercentage }

func (t *ItemPercentageTerms) validate() error {
	if !t.DiscountPercentage.IsPositive() {
		return &FieldError{Field: "discount_percentage"}
	}
	return nil
}

type TimeBasedTerms struct {
	CommonConditions
	ValueBenefit
	Categories []string `json:"categories,omitempty"`
}

func (*TimeBasedTerms) Type() OfferType { return OfferTimeBased }

func (t *TimeBasedTerms) validate() error { return t.validateValue() }

type CustomerBasedTerms struct {
	CommonConditions
	ValueBenefit
}

func (*CustomerBasedTerms) Type() OfferType { return OfferCustomerBased }

func (t *CustomerBasedTerms) validate() error { return t.validateValue() }

type ComboMealTerms struct {
	CommonConditions
	ComboPrice decimal.Decimal `json:"combo_price"`
}

func (*ComboMealTerms) Type() OfferType { return OfferComboMeal }

func (t *ComboMealTerms) validate() error {
	if !t.ComboPrice.IsPositive() {
		return &FieldError{Field: "combo_price"}
	}
	return nil
}

type PromoCodeTerms struct {
	CommonConditions
	ValueBenefit
}

func (*PromoCodeTerms) Type() OfferType { return OfferPromoCode }

func (t *PromoCodeTerms) validate() error { return t.validateValue() }

func newTerms(t OfferType) (Terms, error) {
	switch t {
	case OfferCartPercentage:
		return &CartPercentageTerms{}, nil
	case OfferCartFlatAmount:
		return &CartFlatAmountTerms{}, nil
	case OfferMinOrderDiscount:
		return &MinOrderDiscountTerms{}, nil
	case OfferCartThresholdItem:
		return &CartThresholdItemTerms{}, nil
	case OfferItemBuyGetFree:
		return &ItemBuyGetFreeTerms{}, nil
	case OfferItemFreeAddon:
		return &ItemFreeAddonTerms{}, nil
	case OfferItemPercentage:
		return &ItemPercentageTerms{}, nil
	case OfferTimeBased:
		return &TimeBasedTerms{}, nil
	case OfferCustomerBased:
		return &CustomerBasedTerms{}, nil
	case OfferComboMeal:
		return &ComboMealTerms{}, nil
	case OfferPromoCode:
		return &PromoCodeTerms{}, nil
	}
	return nil, errors.Wrapf(ErrUnknownOfferType, "%q", string(t))
}

// ParseTerms decodes the stored conditions and benefits documents into the
// payload for offerType and checks its required fields.
func ParseTerms(offerType OfferType, conditions, benefits json.RawMessage) (Terms, error) {
	terms, err := newTerms(offerType)
	if err != nil {
		return nil, err
	}
	for _, raw := range []json.RawMessage{conditions, benefits} {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			continue
		}
		if err := json.Unmarshal(raw, terms); err != nil {
			return nil, errors.Wrap(err, "decode offer terms")
		}
	}
	if err := terms.validate(); err != nil {
		return nil, err
	}
	return terms, nil
}

// Validate checks the required fields of a hand-built payload.
func Validate(t Terms) error {
	if t == nil {
		return ErrUnknownOfferType
	}
	return t.validate()
}
