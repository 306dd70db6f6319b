package service

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/pos-offer-service/internal/models"
)

// calculate dispatches on the payload type. A non-empty reason means the
// offer does not apply.
func (e *Evaluator) calculate(offer *models.Offer, in EvalInput) (grant, string) {
	links := offer.Items
	if in.OfferItems != nil {
		links = in.OfferItems
	}
	paid := models.PaidItems(in.Items)

	switch t := offer.Terms.(type) {
	case *models.CartPercentageTerms:
		d := percentOf(in.Total, t.DiscountPercentage)
		return grant{discount: capAt(d, t.MaxDiscountAmount)}, ""

	case *models.CartFlatAmountTerms:
		return grant{discount: t.DiscountAmount}, ""

	case *models.MinOrderDiscountTerms:
		if in.Total.LessThan(t.ThresholdAmount) {
			return grant{}, e.shortfall(t.ThresholdAmount, in.Total)
		}
		return grant{discount: valueDiscount(in.Total, t.ValueBenefit)}, ""

	case *models.CartThresholdItemTerms:
		return e.thresholdItem(t, links, paid, in.Total)

	case *models.ItemBuyGetFreeTerms:
		return buyGetFree(t, links, paid)

	case *models.ItemFreeAddonTerms:
		return freeAddon(t, links, paid, in.chosenFreeItem())

	case *models.ItemPercentageTerms:
		base := decimal.Zero
		for _, it := range paid {
			if linkedAs(links, it, models.ItemDiscount, models.ItemBuy) {
				base = base.Add(percentOf(it.LineTotal(), t.DiscountPercentage))
			}
		}
		if base.IsZero() {
			return grant{}, "Add an eligible item to avail this offer"
		}
		return grant{discount: capAt(base, t.MaxDiscountAmount)}, ""

	case *models.TimeBasedTerms:
		if (offer.ValidHoursStart == nil || offer.ValidHoursEnd == nil) && len(offer.ValidDays) == 0 {
			return grant{}, "Offer has no time window configured"
		}
		base := in.Total
		if len(t.Categories) > 0 {
			base = categoryTotal(paid, t.Categories)
			if base.IsZero() {
				return grant{}, "Add items from eligible categories to avail this offer"
			}
		}
		return grant{discount: valueDiscount(base, t.ValueBenefit)}, ""

	case *models.CustomerBasedTerms:
		return grant{discount: valueDiscount(in.Total, t.ValueBenefit)}, ""

	case *models.ComboMealTerms:
		return comboMeal(t, links, paid)

	case *models.PromoCodeTerms:
		switch {
		case offer.PromoCode == "":
			return grant{}, "Offer is missing promo_code"
		case in.PromoCode == "":
			return grant{}, "Enter a promo code to apply this offer"
		case in.PromoCode != offer.PromoCode:
			return grant{}, "Invalid promo code"
		}
		return grant{discount: valueDiscount(in.Total, t.ValueBenefit)}, ""
	}
	return grant{}, "Unknown offer type"
}

func (e *Evaluator) shortfall(threshold, total decimal.Decimal) string {
	return fmt.Sprintf("Add %s more to unlock", e.money(threshold.Sub(total)))
}

func capAt(d decimal.Decimal, limit *decimal.Decimal) decimal.Decimal {
	if limit != nil && limit.IsPositive() && d.GreaterThan(*limit) {
		return *limit
	}
	return d
}

func valueDiscount(base decimal.Decimal, v models.ValueBenefit) decimal.Decimal {
	if v.DiscountPercentage != nil && v.DiscountPercentage.IsPositive() {
		return capAt(percentOf(base, *v.DiscountPercentage), v.MaxDiscountAmount)
	}
	if v.DiscountAmount != nil {
		return *v.DiscountAmount
	}
	return decimal.Zero
}

func linkedAs(links []models.OfferItem, it models.CartItem, types ...models.ItemType) bool {
	for _, l := range links {
		for _, t := range types {
			if l.ItemType == t && l.Matches(it) {
				return true
			}
		}
	}
	return false
}

func linksOfType(links []models.OfferItem, t models.ItemType) []models.OfferItem {
	var out []models.OfferItem
	for _, l := range links {
		if l.ItemType == t {
			out = append(out, l)
		}
	}
	return out
}

func categoryTotal(paid []models.CartItem, categories []string) decimal.Decimal {
	set := make(map[string]bool, len(categories))
	for _, c := range categories {
		set[c] = true
	}
	total := decimal.Zero
	for _, it := range paid {
		if set[it.CategoryID] {
			total = total.Add(it.LineTotal())
		}
	}
	return total
}

func unitsInCart(paid []models.CartItem, id string) int {
	n := 0
	for _, it := range paid {
		if it.ID == id {
			n += it.Quantity
		}
	}
	return n
}

// grantUnits hands out qty free units of item. Up to spare units already
// sitting in the cart as paid lines are discounted in place; the rest become
// lines the injector adds at zero price.
func grantUnits(item models.FreeItem, qty, spare int) grant {
	covered := qty
	if spare < covered {
		covered = spare
	}
	if covered < 0 {
		covered = 0
	}

	var g grant
	g.discount = decimal.Zero
	if covered > 0 {
		c := item
		c.Quantity = covered
		c.InCart = true
		g.discount = item.Price.Mul(decimal.NewFromInt(int64(covered)))
		g.freeItems = append(g.freeItems, c)
	}
	if rest := qty - covered; rest > 0 {
		r := item
		r.Quantity = rest
		g.freeItems = append(g.freeItems, r)
	}
	return g
}

func freeFromLink(l models.OfferItem) models.FreeItem {
	return models.FreeItem{ID: l.MenuItemID, Name: l.Name, Price: l.Price, CategoryID: l.MenuCategoryID}
}

func freeFromLine(it models.CartItem) models.FreeItem {
	return models.FreeItem{ID: it.ID, Name: it.Name, Price: it.Price, CategoryID: it.CategoryID}
}

func (e *Evaluator) thresholdItem(t *models.CartThresholdItemTerms, links []models.OfferItem, paid []models.CartItem, total decimal.Decimal) (grant, string) {
	if total.LessThan(t.ThresholdAmount) {
		return grant{}, e.shortfall(t.ThresholdAmount, total)
	}
	for _, l := range linksOfType(links, models.ItemFreeThreshold) {
		if l.MenuItemID == "" {
			continue
		}
		if t.MaxPrice != nil && l.Price.GreaterThan(*t.MaxPrice) {
			continue
		}
		return grantUnits(freeFromLink(l), 1, unitsInCart(paid, l.MenuItemID)), ""
	}
	return grant{}, "No free item available for this offer"
}

// cheapest orders by price and keeps the input order between equal prices.
func cheapest[T any](xs []T, price func(T) decimal.Decimal) (T, bool) {
	var zero T
	if len(xs) == 0 {
		return zero, false
	}
	sorted := make([]T, len(xs))
	copy(sorted, xs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return price(sorted[i]).LessThan(price(sorted[j]))
	})
	return sorted[0], true
}

func buyGetFree(t *models.ItemBuyGetFreeTerms, links []models.OfferItem, paid []models.CartItem) (grant, string) {
	if t.BuyQuantity <= 0 {
		return grant{}, "Offer is missing buy_quantity"
	}
	buyLinks := linksOfType(links, models.ItemBuy)
	if len(buyLinks) == 0 {
		return grant{}, "Offer has no qualifying items configured"
	}

	var matched []models.CartItem
	units := 0
	for _, it := range paid {
		if linkedAs(buyLinks, it, models.ItemBuy) {
			matched = append(matched, it)
			units += it.Quantity
		}
	}
	if units < t.BuyQuantity {
		return grant{}, fmt.Sprintf("Add %s more to unlock", plural(t.BuyQuantity-units, "qualifying item"))
	}
	getQty := t.GetQuantity
	if getQty <= 0 {
		getQty = 1
	}
	extra := units - t.BuyQuantity

	if t.GetSameItem {
		line, _ := cheapest(matched, func(it models.CartItem) decimal.Decimal { return it.Price })
		spare := extra
		if line.Quantity < spare {
			spare = line.Quantity
		}
		return grantUnits(freeFromLine(line), getQty, spare), ""
	}

	var candidates []models.OfferItem
	for _, l := range linksOfType(links, models.ItemGetFree) {
		if l.MenuItemID != "" {
			candidates = append(candidates, l)
		}
	}
	pick, ok := cheapest(candidates, func(l models.OfferItem) decimal.Decimal { return l.Price })
	if !ok {
		return grant{}, "No free item available for this offer"
	}
	spare := unitsInCart(paid, pick.MenuItemID)
	if linkedAs(buyLinks, models.CartItem{ID: pick.MenuItemID, CategoryID: pick.MenuCategoryID}, models.ItemBuy) && extra < spare {
		spare = extra
	}
	return grantUnits(freeFromLink(pick), getQty, spare), ""
}

func freeAddon(t *models.ItemFreeAddonTerms, links []models.OfferItem, paid []models.CartItem, chosen *models.FreeItem) (grant, string) {
	buyLinks := linksOfType(links, models.ItemBuy)
	if len(buyLinks) == 0 {
		return grant{}, "Offer has no qualifying items configured"
	}
	hasMain := false
	for _, it := range paid {
		if linkedAs(buyLinks, it, models.ItemBuy) {
			hasMain = true
			break
		}
	}
	if !hasMain {
		return grant{}, "Add a main item to unlock a free add-on"
	}

	var available []models.OfferItem
	for _, l := range linksOfType(links, models.ItemAddon) {
		if l.MenuItemID != "" && overCap(l.Price, t.MaxFreePrice) {
			continue
		}
		available = append(available, l)
	}
	if len(available) == 0 {
		return grant{}, "No free add-on available for this offer"
	}

	if chosen != nil && chosen.ID != "" {
		for _, l := range available {
			switch {
			case l.MenuItemID != "":
				if l.MenuItemID == chosen.ID {
					return grantUnits(freeFromLink(l), 1, unitsInCart(paid, l.MenuItemID)), ""
				}
			case l.MenuCategoryID != "" && l.MenuCategoryID == chosen.CategoryID:
				if overCap(chosen.Price, t.MaxFreePrice) {
					continue
				}
				item := *chosen
				item.Quantity, item.InCart = 0, false
				return grantUnits(item, 1, unitsInCart(paid, item.ID)), ""
			}
		}
	}
	return grant{discount: decimal.Zero, requiresAction: true, available: available}, ""
}

func overCap(price decimal.Decimal, limit *decimal.Decimal) bool {
	return limit != nil && price.GreaterThan(*limit)
}

func comboMeal(t *models.ComboMealTerms, links []models.OfferItem, paid []models.CartItem) (grant, string) {
	selected := decimal.Zero
	configured := false
	for _, l := range links {
		if l.MenuItemID == "" {
			continue
		}
		configured = true
		need := l.Quantity
		if need <= 0 {
			need = 1
		}
		have := unitsInCart(paid, l.MenuItemID)
		if l.IsRequired && have < need {
			name := l.Name
			if name == "" {
				name = "the remaining combo items"
			}
			if need > 1 {
				return grant{}, fmt.Sprintf("Add %d x %s to complete the combo", need-have, name)
			}
			return grant{}, fmt.Sprintf("Add %s to complete the combo", name)
		}
		take := have
		if take > need {
			take = need
		}
		if take > 0 {
			selected = selected.Add(linePrice(paid, l).Mul(decimal.NewFromInt(int64(take))))
		}
	}
	if !configured {
		return grant{}, "Offer has no combo items configured"
	}
	return grant{discount: decimal.Max(decimal.Zero, selected.Sub(t.ComboPrice))}, ""
}

// linePrice prefers the price on the cart line over the catalog link.
func linePrice(paid []models.CartItem, l models.OfferItem) decimal.Decimal {
	for _, it := range paid {
		if it.ID == l.MenuItemID {
			return it.Price
		}
	}
	return l.Price
}
