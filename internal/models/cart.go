package models

import "github.com/shopspring/decimal"

// CartItem is one line of a cart. Free lines carry a zero price and the id of
// the offer that granted them.
type CartItem struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
	CategoryID    string          `json:"category_id,omitempty"`
	IsFree        bool            `json:"is_free,omitempty"`
	LinkedOfferID string          `json:"linked_offer_id,omitempty"`
}

func (it CartItem) LineTotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// FreeItem is a grant of free units produced by an offer. Price is the menu
// price of one unit, kept for usage records. InCart grants are units already
// paid for in the cart and are realised through the discount instead of a
// new line.
type FreeItem struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	CategoryID string          `json:"category_id,omitempty"`
	InCart     bool            `json:"in_cart,omitempty"`
}

// CartTotal sums the paid lines of a cart.
func CartTotal(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		if it.IsFree {
			continue
		}
		total = total.Add(it.LineTotal())
	}
	return total
}

// PaidItems returns the cart without free lines.
func PaidItems(items []CartItem) []CartItem {
	out := make([]CartItem, 0, len(items))
	for _, it := range items {
		if !it.IsFree {
			out = append(out, it)
		}
	}
	return out
}
