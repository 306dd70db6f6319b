package service

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/pos-offer-service/internal/cache"
	"github.com/Cheertaboi/pos-offer-service/internal/models"
)

type EventKind string

const (
	EventCartChanged      EventKind = "cart_changed"
	EventCustomerChanged  EventKind = "customer_changed"
	EventPromoCodeChanged EventKind = "promo_code_changed"
	EventChannelChanged   EventKind = "channel_changed"
	EventCatalogChanged   EventKind = "catalog_changed"
)

// Event is one input change that triggers a full re-evaluation.
type Event struct {
	Kind      EventKind
	Cart      []models.CartItem
	Phone     string
	PromoCode string
	Channel   models.Channel
}

// SessionView is the read model handed to the UI after every mutation.
type SessionView struct {
	SessionID        string                              `json:"session_id"`
	Channel          models.Channel                      `json:"channel"`
	Cart             []models.CartItem                   `json:"cart"`
	CartTotal        decimal.Decimal                     `json:"cart_total"`
	CustomerPhone    string                              `json:"customer_phone,omitempty"`
	SelectedOfferID  string                              `json:"selected_offer_id,omitempty"`
	SelectedBy       models.Actor                        `json:"selected_by,omitempty"`
	Selected         *models.EligibilityResult           `json:"selected,omitempty"`
	Discount         decimal.Decimal                     `json:"discount"`
	PayableTotal     decimal.Decimal                     `json:"payable_total"`
	Lock             *models.SessionOfferLock            `json:"lock,omitempty"`
	SelectorDisabled bool                                `json:"selector_disabled"`
	Notice           string                              `json:"notice,omitempty"`
	BestOfferID      string                              `json:"best_offer_id,omitempty"`
	Results          map[string]models.EligibilityResult `json:"results"`
	// ResultsStale is set while the latest inputs have not been evaluated.
	ResultsStale bool `json:"results_stale"`
}

// session is the in-memory state of one dining session. Every field is
// guarded by mu.
type session struct {
	mu sync.Mutex

	id        string
	channel   models.Channel
	cart      []models.CartItem
	phone     string
	promoCode string

	selectedOfferID string
	selectedBy      models.Actor
	freeChoice      *models.FreeItem

	lock          *models.SessionOfferLock
	usageRecorded bool

	offers  []models.Offer
	results *cache.ResultCache
	gen     uint64
	notice  string
}

func newSession(rec models.SessionRecord, usageRecorded bool) *session {
	s := &session{
		id:            rec.ID,
		channel:       rec.Channel,
		lock:          rec.Lock,
		usageRecorded: usageRecorded,
		results:       cache.NewResultCache(),
	}
	if !s.channel.Valid() {
		s.channel = models.ChannelDineIn
	}
	if s.lock != nil {
		s.selectedOfferID = s.lock.OfferID
	}
	return s
}

func (s *session) input(freeChoice *models.FreeItem) EvalInput {
	cart := models.PaidItems(s.cart)
	in := EvalInput{
		Items:            cart,
		Total:            models.CartTotal(cart),
		CustomerPhone:    s.phone,
		PromoCode:        s.promoCode,
		SelectedFreeItem: freeChoice,
	}
	if freeChoice != nil {
		in.SelectedFreeItemID = freeChoice.ID
	}
	return in
}

func (s *session) findOffer(id string) *models.Offer {
	for i := range s.offers {
		if s.offers[i].ID == id {
			return &s.offers[i]
		}
	}
	return nil
}

func (s *session) view() SessionView {
	total := models.CartTotal(s.cart)
	v := SessionView{
		SessionID:        s.id,
		Channel:          s.channel,
		Cart:             append([]models.CartItem(nil), s.cart...),
		CartTotal:        total,
		CustomerPhone:    s.phone,
		SelectedOfferID:  s.selectedOfferID,
		SelectedBy:       s.selectedBy,
		Discount:         decimal.Zero,
		Lock:             s.lock,
		SelectorDisabled: s.lock != nil || s.usageRecorded,
		Notice:           s.notice,
		Results:          map[string]models.EligibilityResult{},
	}
	// results of older inputs are never shown against the current cart
	if s.results.Generation() == s.gen {
		v.Results = s.results.All()
	} else {
		v.ResultsStale = true
	}
	if s.selectedOfferID != "" {
		if r, ok := v.Results[s.selectedOfferID]; ok {
			v.Selected = &r
			if r.IsEligible {
				v.Discount = r.Discount
			}
		}
	}
	v.PayableTotal = total.Sub(v.Discount)
	v.BestOfferID = s.bestOffer(v.Results)
	return v
}

// bestOffer picks the eligible offer with the largest discount. Catalog
// order already puts higher priority first, so the first maximum wins ties.
func (s *session) bestOffer(results map[string]models.EligibilityResult) string {
	best := ""
	bestDiscount := decimal.Zero
	for i := range s.offers {
		r, ok := results[s.offers[i].ID]
		if !ok || !r.IsEligible {
			continue
		}
		if best == "" || r.Discount.GreaterThan(bestDiscount) {
			best = s.offers[i].ID
			bestDiscount = r.Discount
		}
	}
	return best
}
